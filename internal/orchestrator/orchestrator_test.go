package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/droidpilot-cli/internal/config"
)

// -- Fakes --

type fakeActuator struct {
	pings atomic.Int32
}

func (f *fakeActuator) Wake(context.Context) error                   { return nil }
func (f *fakeActuator) SwipeUnlock(context.Context) error            { return nil }
func (f *fakeActuator) EnterCredential(context.Context, string) error { return nil }
func (f *fakeActuator) ScreenOff(context.Context) error              { return nil }
func (f *fakeActuator) MoveAndClick(context.Context, int, int) error { return nil }
func (f *fakeActuator) Swipe(context.Context, int, int, int, int, time.Duration) error {
	return nil
}
func (f *fakeActuator) DevicePing(context.Context) error { f.pings.Add(1); return nil }
func (f *fakeActuator) ScreenSize(context.Context) (int, int) {
	return 1080, 1920
}
func (f *fakeActuator) CaptureFrame(context.Context) ([]byte, error) {
	return []byte{0x89}, nil
}

type fakeMirror struct {
	starts   atomic.Int32
	stops    atomic.Int32
	startErr error
}

func (f *fakeMirror) Start(context.Context) error {
	f.starts.Add(1)
	return f.startErr
}
func (f *fakeMirror) Find(context.Context, string) error { return nil }
func (f *fakeMirror) Stop() error                        { f.stops.Add(1); return nil }

type fakePerceiver struct{}

func (fakePerceiver) Classify(context.Context, []byte, []string) (map[string]float64, error) {
	return map[string]float64{}, nil
}

// -- Harness --

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Store.DataDir = t.TempDir()
	cfg.Heartbeat.Interval = 10 * time.Millisecond
	// A negative tolerance keeps triggers from ever matching the real wall
	// clock, so lifecycle tests never spawn an actual session.
	cfg.Schedule.Tolerance = -time.Nanosecond
	return cfg
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *fakeActuator, *fakeMirror) {
	t.Helper()
	act := &fakeActuator{}
	mir := &fakeMirror{}
	o, err := New(testConfig(t), act, mir, zap.NewNop(), WithPerceiver(fakePerceiver{}))
	require.NoError(t, err)
	return o, act, mir
}

// -- Tests --

func TestNew_NilDependencies(t *testing.T) {
	_, err := New(nil, &fakeActuator{}, &fakeMirror{}, zap.NewNop())
	require.Error(t, err)

	_, err = New(config.NewDefaultConfig(), nil, &fakeMirror{}, zap.NewNop())
	require.Error(t, err)

	_, err = New(config.NewDefaultConfig(), &fakeActuator{}, nil, zap.NewNop())
	require.Error(t, err)
}

func TestOrchestrator_StartStopLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	o, act, mir := newTestOrchestrator(t)

	require.NoError(t, o.Start("p", config.UnlockNoPin, ""))

	running, triggers := o.Status()
	assert.True(t, running)
	assert.Len(t, triggers, 3)

	// The heartbeat should start pinging right away.
	require.Eventually(t, func() bool { return act.pings.Load() >= 1 },
		2*time.Second, 5*time.Millisecond)

	require.NoError(t, o.Stop())

	running, _ = o.Status()
	assert.False(t, running)
	assert.Equal(t, int32(1), mir.starts.Load())
	assert.Equal(t, int32(1), mir.stops.Load())
}

func TestOrchestrator_StartIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	o, _, mir := newTestOrchestrator(t)

	require.NoError(t, o.Start("u", config.UnlockNoPin, ""))
	require.NoError(t, o.Start("u", config.UnlockNoPin, ""))

	assert.Equal(t, int32(1), mir.starts.Load(), "second Start must not restart the mirror")
	require.NoError(t, o.Stop())
}

func TestOrchestrator_StopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	o, _, mir := newTestOrchestrator(t)

	require.NoError(t, o.Stop(), "Stop before Start is a no-op")
	assert.Zero(t, mir.stops.Load())

	require.NoError(t, o.Start("h", config.UnlockNoPin, ""))
	require.NoError(t, o.Stop())
	require.NoError(t, o.Stop())
	assert.Equal(t, int32(1), mir.stops.Load())
}

func TestOrchestrator_StartValidation(t *testing.T) {
	defer goleak.VerifyNone(t)

	o, _, mir := newTestOrchestrator(t)

	err := o.Start("z", config.UnlockNoPin, "")
	require.Error(t, err, "unknown profile must be rejected")

	err = o.Start("p", config.UnlockPin, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credential")

	err = o.Start("p", config.UnlockMethod("bogus"), "")
	require.Error(t, err, "unknown unlock method must be rejected before any task starts")
	assert.Contains(t, err.Error(), "unlock method")

	assert.Zero(t, mir.starts.Load(), "validation failures must not touch the mirror")
	running, _ := o.Status()
	assert.False(t, running)
}

func TestOrchestrator_MirrorStartFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	o, _, mir := newTestOrchestrator(t)
	mir.startErr = errors.New("scrcpy not installed")

	err := o.Start("p", config.UnlockNoPin, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mirror")

	running, _ := o.Status()
	assert.False(t, running)
}

func TestOrchestrator_MissingAPIKeyWithoutInjectedPerceiver(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig(t)
	cfg.Perception.APIKey = ""
	o, err := New(cfg, &fakeActuator{}, &fakeMirror{}, zap.NewNop())
	require.NoError(t, err)

	err = o.Start("p", config.UnlockNoPin, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classifier")
}
