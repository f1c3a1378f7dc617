// File: internal/store/store.go
// Package store persists per-label interaction counters across runs. The
// on-disk format is a two-column CSV (label,count) so the numbers stay
// greppable and spreadsheet-friendly.
package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"go.uber.org/zap"
)

// Counters maps a label to the number of times it has been acted on.
type Counters map[string]int

// Clone returns an independent copy of the counters.
func (c Counters) Clone() Counters {
	out := make(Counters, len(c))
	for label, n := range c {
		out[label] = n
	}
	return out
}

// Store loads and saves a counter set.
type Store interface {
	Load() (Counters, error)
	Save(Counters) error
}

// FileStore is the CSV-backed Store implementation.
type FileStore struct {
	path string
	log  *zap.Logger
}

// NewFileStore creates a FileStore rooted at path, creating the parent
// directory if needed.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("counter file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{
		path: path,
		log:  logger.Named("store"),
	}, nil
}

// Load reads the counter file. A missing file yields an empty counter set;
// malformed rows are logged and skipped so one bad line never loses the rest.
func (s *FileStore) Load() (Counters, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Counters{}, nil
		}
		return nil, fmt.Errorf("failed to open counter file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse counter file: %w", err)
	}

	counters := make(Counters, len(records))
	for i, rec := range records {
		if len(rec) != 2 {
			s.log.Warn("Skipping malformed counter row", zap.Int("line", i+1), zap.Strings("fields", rec))
			continue
		}
		n, err := strconv.Atoi(rec[1])
		if err != nil {
			s.log.Warn("Skipping counter row with non-numeric count", zap.Int("line", i+1), zap.String("label", rec[0]))
			continue
		}
		counters[rec[0]] = n
	}
	return counters, nil
}

// Save writes the full counter set, replacing the previous file atomically
// via a temp-file rename.
func (s *FileStore) Save(counters Counters) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".counters-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp counter file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	for _, label := range sortedLabels(counters) {
		if err := w.Write([]string{label, strconv.Itoa(counters[label])}); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write counter row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush counter file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp counter file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace counter file: %w", err)
	}
	return nil
}

// sortedLabels keeps the file diff-stable between saves.
func sortedLabels(counters Counters) []string {
	labels := make([]string, 0, len(counters))
	for label := range counters {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
