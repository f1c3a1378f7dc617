package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/droidpilot-cli/internal/config"
	"github.com/xkilldash9x/droidpilot-cli/internal/perception"
	"github.com/xkilldash9x/droidpilot-cli/internal/sampling"
)

// -- Fakes --

type fakeDevice struct {
	mu          sync.Mutex
	calls       []string
	wakeErr     error
	swipeErr    error
	credErr     error
	captureErr  error
	screenOffs  int
	credentials []string
}

func (f *fakeDevice) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeDevice) callNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeDevice) Wake(context.Context) error { f.record("wake"); return f.wakeErr }
func (f *fakeDevice) SwipeUnlock(context.Context) error {
	f.record("swipe_unlock")
	return f.swipeErr
}
func (f *fakeDevice) EnterCredential(_ context.Context, text string) error {
	f.record("enter_credential")
	f.mu.Lock()
	f.credentials = append(f.credentials, text)
	f.mu.Unlock()
	return f.credErr
}
func (f *fakeDevice) ScreenOff(context.Context) error {
	f.record("screen_off")
	f.mu.Lock()
	f.screenOffs++
	f.mu.Unlock()
	return nil
}
func (f *fakeDevice) MoveAndClick(context.Context, int, int) error { f.record("click"); return nil }
func (f *fakeDevice) Swipe(context.Context, int, int, int, int, time.Duration) error {
	f.record("swipe")
	return nil
}
func (f *fakeDevice) DevicePing(context.Context) error { f.record("ping"); return nil }
func (f *fakeDevice) ScreenSize(context.Context) (int, int) {
	return 1080, 1920
}
func (f *fakeDevice) CaptureFrame(context.Context) ([]byte, error) {
	f.record("capture")
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	return []byte{0x89}, nil
}

type fakeLocator struct {
	err    error
	titles []string
}

func (f *fakeLocator) Find(_ context.Context, title string) error {
	f.titles = append(f.titles, title)
	return f.err
}

type fakeGestures struct {
	mu      sync.Mutex
	clicks  int
	scrolls int
}

func (f *fakeGestures) ClickPoint(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks++
	return nil
}

func (f *fakeGestures) ScrollGesture(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrolls++
	return nil
}

type fakeDecider struct {
	decisions []perception.Decision
	oks       []bool
	idx       int
}

func (f *fakeDecider) Decide(context.Context, []byte) (perception.Decision, bool) {
	if f.idx >= len(f.oks) {
		return perception.Decision{}, false
	}
	d, ok := f.decisions[f.idx], f.oks[f.idx]
	f.idx++
	return d, ok
}

type fakeSink struct {
	mu      sync.Mutex
	labels  []string
	flushes int
}

func (f *fakeSink) Increment(_ context.Context, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.labels = append(f.labels, label)
	return nil
}

func (f *fakeSink) Flush(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

// -- Harness --

type harness struct {
	runner   *Runner
	device   *fakeDevice
	locator  *fakeLocator
	gestures *fakeGestures
	decider  *fakeDecider
	sink     *fakeSink
	clock    *fakeClock
}

// fakeClock advances only when the runner sleeps, so a "45 minute" session
// finishes instantly in tests.
type fakeClock struct {
	mu  sync.Mutex
	t   time.Time
	nap time.Duration
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.nap += d
	c.mu.Unlock()
	return nil
}

func newHarness(t *testing.T, decider *fakeDecider) *harness {
	t.Helper()
	h := &harness{
		device:   &fakeDevice{},
		locator:  &fakeLocator{},
		gestures: &fakeGestures{},
		decider:  decider,
		sink:     &fakeSink{},
		clock:    &fakeClock{t: time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)},
	}
	h.runner = NewRunner(
		h.device, h.locator, "Droidpilot_Mirror",
		h.gestures, h.decider, h.sink,
		sampling.New(nil), zap.NewNop(),
	)
	h.runner.now = h.clock.now
	h.runner.sleep = h.clock.sleep
	return h
}

func sessionConfig(d time.Duration) Config {
	return Config{
		Duration:     d,
		UnlockMethod: config.UnlockNoPin,
		UnlockSettle: time.Second,
	}
}

// -- Tests --

func TestRunner_MissingWindowIsTerminal(t *testing.T) {
	h := newHarness(t, &fakeDecider{})
	h.locator.err = errors.New("no such window")

	err := h.runner.Run(context.Background(), sessionConfig(time.Minute))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.Empty(t, h.device.callNames(), "device must not be touched when the window is missing")
	assert.Zero(t, h.device.screenOffs, "screen-off only applies once the window was located")
}

func TestRunner_WakeFailureDoesNotForfeitSession(t *testing.T) {
	h := newHarness(t, &fakeDecider{})
	h.device.wakeErr = errors.New("adb gone")

	err := h.runner.Run(context.Background(), sessionConfig(5*time.Second))

	require.NoError(t, err, "a transient wake failure must not end the session")
	assert.GreaterOrEqual(t, h.gestures.scrolls, 1, "the loop must still run")
	assert.GreaterOrEqual(t, h.sink.flushes, 1)
	assert.Equal(t, 1, h.device.screenOffs, "screen-off must run even when unlock stumbled")
}

func TestRunner_UnlockStepFailuresAreLoggedNotTerminal(t *testing.T) {
	h := newHarness(t, &fakeDecider{})
	h.device.swipeErr = errors.New("input rejected")
	h.device.credErr = errors.New("keyboard gone")

	cfg := sessionConfig(5 * time.Second)
	cfg.UnlockMethod = config.UnlockPin
	cfg.Credential = "2468"

	err := h.runner.Run(context.Background(), cfg)

	require.NoError(t, err)
	calls := h.device.callNames()
	assert.Contains(t, calls, "swipe_unlock")
	assert.Contains(t, calls, "enter_credential", "a failed swipe must not skip the credential step")
	assert.GreaterOrEqual(t, h.gestures.scrolls, 1)
	assert.Equal(t, 1, h.device.screenOffs)
}

func TestRunner_PinUnlockSequence(t *testing.T) {
	h := newHarness(t, &fakeDecider{})

	cfg := sessionConfig(time.Second)
	cfg.UnlockMethod = config.UnlockPin
	cfg.Credential = "2468"

	require.NoError(t, h.runner.Run(context.Background(), cfg))

	calls := h.device.callNames()
	require.GreaterOrEqual(t, len(calls), 3)
	assert.Equal(t, []string{"wake", "swipe_unlock", "enter_credential"}, calls[:3])
	assert.Equal(t, []string{"2468"}, h.device.credentials)
}

func TestRunner_NoPinSkipsCredential(t *testing.T) {
	h := newHarness(t, &fakeDecider{})

	require.NoError(t, h.runner.Run(context.Background(), sessionConfig(time.Second)))

	assert.NotContains(t, h.device.callNames(), "enter_credential")
	assert.Contains(t, h.device.callNames(), "swipe_unlock")
}

func TestRunner_UnknownUnlockMethodProceeds(t *testing.T) {
	h := newHarness(t, &fakeDecider{})

	cfg := sessionConfig(time.Second)
	cfg.UnlockMethod = "retina-scan"

	require.NoError(t, h.runner.Run(context.Background(), cfg))

	calls := h.device.callNames()
	assert.Contains(t, calls, "wake")
	assert.NotContains(t, calls, "swipe_unlock")
	assert.Equal(t, 1, h.device.screenOffs)
}

func TestRunner_HitClicksAndCounts(t *testing.T) {
	decider := &fakeDecider{
		decisions: []perception.Decision{{Label: "coding", Confidence: 0.9}},
		oks:       []bool{true},
	}
	h := newHarness(t, decider)

	// One dwell (>=1s) per iteration plus the 1s settle: a 5s session gets
	// at least one full iteration.
	require.NoError(t, h.runner.Run(context.Background(), sessionConfig(5*time.Second)))

	assert.Equal(t, []string{"coding"}, h.sink.labels)
	assert.GreaterOrEqual(t, h.gestures.clicks, 1)
	assert.GreaterOrEqual(t, h.gestures.scrolls, 1)
	assert.GreaterOrEqual(t, h.sink.flushes, 1)
}

func TestRunner_MissStillScrolls(t *testing.T) {
	h := newHarness(t, &fakeDecider{}) // always miss

	require.NoError(t, h.runner.Run(context.Background(), sessionConfig(5*time.Second)))

	assert.Zero(t, h.gestures.clicks)
	assert.GreaterOrEqual(t, h.gestures.scrolls, 1)
	assert.Empty(t, h.sink.labels)
}

func TestRunner_CaptureFailureIsAMiss(t *testing.T) {
	h := newHarness(t, &fakeDecider{})
	h.device.captureErr = errors.New("screencap broke")

	require.NoError(t, h.runner.Run(context.Background(), sessionConfig(5*time.Second)))

	assert.Zero(t, h.gestures.clicks)
	assert.GreaterOrEqual(t, h.gestures.scrolls, 1)
	assert.Equal(t, 1, h.device.screenOffs)
}

func TestRunner_CancelledContextStopsLoop(t *testing.T) {
	h := newHarness(t, &fakeDecider{})
	ctx, cancel := context.WithCancel(context.Background())

	// Cancel as soon as the first scroll lands.
	h.runner.sleep = func(sctx context.Context, d time.Duration) error {
		if h.gestures.scrolls > 0 {
			cancel()
		}
		return h.clock.sleep(sctx, d)
	}

	err := h.runner.Run(ctx, sessionConfig(time.Hour))

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, h.device.screenOffs, "cancelled sessions still turn the screen off")
}

func TestRunner_SessionEndsAtDeadline(t *testing.T) {
	h := newHarness(t, &fakeDecider{})

	start := h.clock.now()
	require.NoError(t, h.runner.Run(context.Background(), sessionConfig(30*time.Second)))

	elapsed := h.clock.now().Sub(start)
	assert.GreaterOrEqual(t, elapsed, 30*time.Second)
	assert.Less(t, elapsed, 30*time.Second+maxMissDwell+time.Second)
}
