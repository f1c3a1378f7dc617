package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "label_counts.csv")
	s, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestFileStore_LoadMissingFile(t *testing.T) {
	s := newTestStore(t)

	counters, err := s.Load()

	require.NoError(t, err)
	assert.Empty(t, counters)
	assert.NotNil(t, counters)
}

func TestFileStore_SaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	want := Counters{"coding": 12, "gaming": 3, "social media": 40}

	require.NoError(t, s.Save(want))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileStore_SaveReplacesPreviousContents(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Save(Counters{"coding": 1, "gaming": 2}))
	require.NoError(t, s.Save(Counters{"coding": 5}))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, Counters{"coding": 5}, got)
}

func TestFileStore_LoadSkipsMalformedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "label_counts.csv")
	raw := "coding,4\njust-one-field\ngaming,not-a-number\nnews,7\n"
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	s, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, Counters{"coding": 4, "news": 7}, got)
}

func TestFileStore_SaveIsSorted(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(Counters{"zebra": 1, "alpha": 2}))

	raw, err := os.ReadFile(s.path)
	require.NoError(t, err)
	assert.Equal(t, "alpha,2\nzebra,1\n", string(raw))
}

func TestFileStore_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "label_counts.csv")

	s, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Save(Counters{"coding": 1}))

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestNewFileStore_EmptyPath(t *testing.T) {
	_, err := NewFileStore("", zap.NewNop())
	require.Error(t, err)
}

func TestCounters_Clone(t *testing.T) {
	orig := Counters{"coding": 1}
	cl := orig.Clone()
	cl["coding"] = 99

	assert.Equal(t, 1, orig["coding"])
}
