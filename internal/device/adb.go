// File: internal/device/adb.go
package device

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/droidpilot-cli/internal/config"
)

// Android key event codes used by the actuator.
const (
	keycodePower = "26"
	keycodeMenu  = "82"
	keycodeEnter = "66"
)

// ADB is the production Actuator, driving the handset through the adb
// binary. Command dispatch is rate-limited so bursts of gestures cannot
// flood the adb server.
type ADB struct {
	path     string
	limiter  *rate.Limiter
	log      *zap.Logger
	fallback struct{ width, height int }
}

// NewADB builds the adb-backed actuator from device configuration.
func NewADB(cfg config.DeviceConfig, logger *zap.Logger) *ADB {
	a := &ADB{
		path:    cfg.ADBPath,
		limiter: rate.NewLimiter(rate.Limit(cfg.CommandRate), cfg.CommandBurst),
		log:     logger.Named("adb"),
	}
	a.fallback.width = cfg.FallbackWidth
	a.fallback.height = cfg.FallbackHeight
	return a
}

// run executes one adb command and returns its trimmed stdout.
func (a *ADB) run(ctx context.Context, args ...string) (string, error) {
	out, err := a.runRaw(ctx, args...)
	return strings.TrimSpace(string(out)), err
}

// runRaw executes one adb command and returns raw stdout bytes. Failures are
// logged here once so call sites can treat them as no-ops.
func (a *ADB) runRaw(ctx context.Context, args ...string) ([]byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, a.path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		a.log.Error("adb command failed",
			zap.Strings("args", args),
			zap.String("stderr", strings.TrimSpace(stderr.String())),
			zap.Error(err),
		)
		return nil, fmt.Errorf("adb %s: %w", strings.Join(args, " "), err)
	}
	return stdout.Bytes(), nil
}

func (a *ADB) keyevent(ctx context.Context, code string) error {
	_, err := a.run(ctx, "shell", "input", "keyevent", code)
	return err
}

// Wake turns the screen on and sends the menu key, which dismisses simple
// lock screens on most handsets.
func (a *ADB) Wake(ctx context.Context) error {
	a.log.Info("Turning on screen")
	if err := a.keyevent(ctx, keycodePower); err != nil {
		return err
	}
	if err := sleep(ctx, time.Second); err != nil {
		return err
	}
	if err := a.keyevent(ctx, keycodeMenu); err != nil {
		return err
	}
	return sleep(ctx, time.Second)
}

// SwipeUnlock swipes from the bottom-middle toward the top-middle.
func (a *ADB) SwipeUnlock(ctx context.Context) error {
	a.log.Info("Performing swipe to unlock")
	if err := a.Swipe(ctx, 300, 1000, 300, 500, 100*time.Millisecond); err != nil {
		return err
	}
	return sleep(ctx, time.Second)
}

// EnterCredential types the credential and confirms with the enter key.
func (a *ADB) EnterCredential(ctx context.Context, text string) error {
	a.log.Info("Entering credential")
	if _, err := a.run(ctx, "shell", "input", "text", text); err != nil {
		return err
	}
	if err := sleep(ctx, 500*time.Millisecond); err != nil {
		return err
	}
	if err := a.keyevent(ctx, keycodeEnter); err != nil {
		return err
	}
	return sleep(ctx, 500*time.Millisecond)
}

// ScreenOff turns the screen off.
func (a *ADB) ScreenOff(ctx context.Context) error {
	a.log.Info("Turning off screen")
	return a.keyevent(ctx, keycodePower)
}

// MoveAndClick taps the given coordinate.
func (a *ADB) MoveAndClick(ctx context.Context, x, y int) error {
	_, err := a.run(ctx, "shell", "input", "tap", strconv.Itoa(x), strconv.Itoa(y))
	return err
}

// Swipe drags between two coordinates over the given duration.
func (a *ADB) Swipe(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) error {
	_, err := a.run(ctx, "shell", "input", "swipe",
		strconv.Itoa(x1), strconv.Itoa(y1),
		strconv.Itoa(x2), strconv.Itoa(y2),
		strconv.Itoa(int(duration.Milliseconds())),
	)
	return err
}

// DevicePing lists connected devices, keeping the adb server connection warm.
func (a *ADB) DevicePing(ctx context.Context) error {
	_, err := a.run(ctx, "devices")
	return err
}

// ScreenSize queries `wm size`. Detection failures fall back to the
// configured default resolution so startup can always establish a
// coordinate space.
func (a *ADB) ScreenSize(ctx context.Context) (int, int) {
	out, err := a.run(ctx, "shell", "wm", "size")
	if err == nil {
		if w, h, perr := parseScreenSize(out); perr == nil {
			return w, h
		} else {
			a.log.Error("Failed to parse screen size", zap.String("output", out), zap.Error(perr))
		}
	}
	a.log.Warn("Could not detect screen size, using fallback resolution",
		zap.Int("width", a.fallback.width), zap.Int("height", a.fallback.height))
	return a.fallback.width, a.fallback.height
}

// CaptureFrame grabs a PNG screenshot of the display.
func (a *ADB) CaptureFrame(ctx context.Context) ([]byte, error) {
	return a.runRaw(ctx, "exec-out", "screencap", "-p")
}

// parseScreenSize extracts WxH from `wm size` output of the form
// "Physical size: 1080x1920".
func parseScreenSize(out string) (int, int, error) {
	const marker = "Physical size:"
	idx := strings.Index(out, marker)
	if idx < 0 {
		return 0, 0, fmt.Errorf("no physical size in output %q", out)
	}
	sizeStr := strings.TrimSpace(out[idx+len(marker):])
	// Trailing lines (e.g. "Override size:") may follow.
	if nl := strings.IndexAny(sizeStr, "\r\n"); nl >= 0 {
		sizeStr = strings.TrimSpace(sizeStr[:nl])
	}
	parts := strings.Split(sizeStr, "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed size %q", sizeStr)
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed width %q: %w", parts[0], err)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed height %q: %w", parts[1], err)
	}
	return w, h, nil
}

// sleep pauses for d, respecting context cancellation.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
