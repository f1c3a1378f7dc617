// File: internal/device/device.go
// The device package owns every channel to the physical handset: the adb
// input/actuation transport and the scrcpy mirror process that makes the
// screen visible on the desk. Everything above this package talks to the
// handset through the interfaces defined here.
package device

import (
	"context"
	"time"
)

// Actuator abstracts the low-level actuation transport to the handset.
// All operations are best-effort: transport failures are logged by the
// implementation and surfaced as errors the caller may treat as no-ops.
type Actuator interface {
	// Wake turns the screen on and nudges past simple lock screens.
	Wake(ctx context.Context) error
	// SwipeUnlock performs the generic bottom-to-middle unlock swipe.
	SwipeUnlock(ctx context.Context) error
	// EnterCredential types the credential and confirms it.
	EnterCredential(ctx context.Context, text string) error
	// ScreenOff turns the screen off.
	ScreenOff(ctx context.Context) error
	// MoveAndClick taps the given device coordinate.
	MoveAndClick(ctx context.Context, x, y int) error
	// Swipe drags from (x1,y1) to (x2,y2) over the given duration.
	Swipe(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) error
	// DevicePing issues a lightweight command keeping the control channel warm.
	DevicePing(ctx context.Context) error
	// ScreenSize reports the handset resolution, falling back to a fixed
	// default when detection fails.
	ScreenSize(ctx context.Context) (width, height int)
	// CaptureFrame grabs a PNG screenshot of the handset display.
	CaptureFrame(ctx context.Context) ([]byte, error)
}

// WindowLocator finds the mirrored display surface a session interacts with.
type WindowLocator interface {
	// Find reports nil when a live surface with the given title exists,
	// bringing it to the foreground where the platform allows.
	Find(ctx context.Context, title string) error
}
