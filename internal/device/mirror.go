// File: internal/device/mirror.go
package device

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/droidpilot-cli/internal/config"
)

// Mirror owns the scrcpy process that mirrors the handset to the desktop.
// It doubles as the WindowLocator: the mirrored surface exists exactly as
// long as the scrcpy process is alive.
type Mirror struct {
	cfg config.MirrorConfig
	log *zap.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan struct{}
}

// NewMirror builds a mirror manager; the process is not started yet.
func NewMirror(cfg config.MirrorConfig, logger *zap.Logger) *Mirror {
	return &Mirror{
		cfg: cfg,
		log: logger.Named("mirror"),
	}
}

// Start launches scrcpy and waits the configured settle time for its window
// to come up. Calling Start while the mirror runs is an error.
func (m *Mirror) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.cmd != nil {
		m.mu.Unlock()
		return fmt.Errorf("mirror already running")
	}

	cmd := exec.Command(m.cfg.ScrcpyPath, mirrorArgs(m.cfg)...)
	if err := cmd.Start(); err != nil {
		m.mu.Unlock()
		if execErr, ok := err.(*exec.Error); ok && execErr.Err == exec.ErrNotFound {
			return fmt.Errorf("scrcpy executable not found at %q: %w", m.cfg.ScrcpyPath, err)
		}
		return fmt.Errorf("failed to launch scrcpy: %w", err)
	}

	exited := make(chan struct{})
	m.cmd = cmd
	m.exited = exited
	m.mu.Unlock()

	m.log.Info("Launched scrcpy mirror",
		zap.String("title", m.cfg.WindowTitle), zap.Int("pid", cmd.Process.Pid))

	go func() {
		err := cmd.Wait()
		close(exited)
		if err != nil {
			m.log.Warn("scrcpy process exited with error", zap.Error(err))
		} else {
			m.log.Info("scrcpy process exited")
		}
	}()

	// Give scrcpy a moment to initialize before the first Find.
	if err := sleep(ctx, m.cfg.StartupWait); err != nil {
		return err
	}
	return m.Find(ctx, m.cfg.WindowTitle)
}

// Find reports whether a live mirrored surface with the given title exists.
func (m *Mirror) Find(_ context.Context, title string) error {
	m.mu.Lock()
	cmd, exited := m.cmd, m.exited
	m.mu.Unlock()

	if title != m.cfg.WindowTitle {
		return fmt.Errorf("no mirror window titled %q", title)
	}
	if cmd == nil {
		return fmt.Errorf("mirror window %q not found: scrcpy not started", title)
	}
	select {
	case <-exited:
		return fmt.Errorf("mirror window %q not found: scrcpy has exited", title)
	default:
		return nil
	}
}

// Stop terminates scrcpy, escalating to a hard kill if the process does not
// exit within the configured timeout.
func (m *Mirror) Stop() error {
	m.mu.Lock()
	cmd, exited := m.cmd, m.exited
	m.cmd = nil
	m.exited = nil
	m.mu.Unlock()

	if cmd == nil {
		return nil
	}

	select {
	case <-exited:
		return nil
	default:
	}

	m.log.Info("Terminating scrcpy process")
	if err := cmd.Process.Signal(terminateSignal); err != nil {
		m.log.Warn("Failed to signal scrcpy, killing", zap.Error(err))
		_ = cmd.Process.Kill()
		return nil
	}

	select {
	case <-exited:
		return nil
	case <-time.After(m.cfg.StopTimeout):
		m.log.Warn("scrcpy did not terminate within timeout, killing")
		if err := cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to kill scrcpy: %w", err)
		}
		<-exited
		return nil
	}
}

// mirrorArgs assembles the scrcpy command line.
func mirrorArgs(cfg config.MirrorConfig) []string {
	return []string{
		"--window-title", cfg.WindowTitle,
		"--max-size", strconv.Itoa(cfg.MaxSize),
		"--window-x", "0",
		"--window-y", "0",
	}
}
