package capture

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/example/botcore/internal/config"
	"github.com/example/botcore/internal/events"
	"github.com/example/botcore/internal/paths"
	"github.com/example/botcore/internal/syncplan"
)

func testConfig() Config {
	return Config{
		Mode:                ModeAudioVideo,
		ArchiveSampleRate:   44100,
		StreamSampleRate:    24000,
		DeviceProbeRetries:  1,
		DeviceProbeInterval: time.Millisecond,
		FlashScreenSleep:    time.Millisecond,
		GracePeriod:         10 * time.Millisecond,
		HardKillTimeout:     10 * time.Millisecond,
	}
}

type fakeAudioControl struct {
	listing string
	err     error
}

func (f fakeAudioControl) ListSources(ctx context.Context) (string, error) {
	return f.listing, f.err
}

type fakeDryRun struct{ err error }

func (f fakeDryRun) Try(ctx context.Context, audioSourceID string, d time.Duration) error {
	return f.err
}

func TestSessionStateDefaultsIdle(t *testing.T) {
	pm := paths.New(&config.Config{}, "bot-test")
	sess := newSession(testConfig(), pm, nil, nil, nil, fakeAudioControl{}, fakeDryRun{})
	if sess.State() != StateIdle {
		t.Errorf("expected idle, got %s", sess.State())
	}
}

func TestSessionStopOnIdleIsNoop(t *testing.T) {
	pm := paths.New(&config.Config{}, "bot-test")
	sess := newSession(testConfig(), pm, nil, nil, nil, fakeAudioControl{}, fakeDryRun{})
	if err := sess.Stop(context.Background()); err != nil {
		t.Errorf("expected no-op stop on idle session, got %v", err)
	}
	if sess.State() != StateIdle {
		t.Errorf("expected state to remain idle, got %s", sess.State())
	}
}

func TestSessionStartFailsOnDeviceNotReady(t *testing.T) {
	pm := paths.New(&config.Config{}, "bot-test")
	cfg := testConfig()
	sess := newSession(cfg, pm, nil, nil, nil,
		fakeAudioControl{listing: "no match here"},
		fakeDryRun{err: errors.New("dry run failed")})

	err := sess.Start(context.Background())
	if err == nil {
		t.Fatal("expected DeviceNotReadyError")
	}
	if _, ok := err.(*DeviceNotReadyError); !ok {
		t.Errorf("expected *DeviceNotReadyError, got %T", err)
	}
	if sess.State() != StateStoppedFailure {
		t.Errorf("expected stopped-failure, got %s", sess.State())
	}

	select {
	case ev := <-sess.Events():
		if ev.Kind.String() != "error" {
			t.Errorf("expected error event, got %s", ev.Kind)
		}
	default:
		t.Error("expected an event to have been emitted")
	}
}

func TestExitCodeSuccess(t *testing.T) {
	if got := exitCode(nil); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestExitCodeNonExitError(t *testing.T) {
	if got := exitCode(errors.New("boom")); got != -1 {
		t.Errorf("expected -1 for a non-ExitError, got %d", got)
	}
}

func TestExitCodeFromRealProcess(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 7")
	err := cmd.Run()
	if got := exitCode(err); got != 7 {
		t.Errorf("expected 7, got %d", got)
	}
}

func TestExitCodeFromSignaledProcess(t *testing.T) {
	cmd := exec.Command("sh", "-c", "kill -TERM $$")
	err := cmd.Run()
	if got := exitCode(err); got != 143 {
		t.Errorf("expected 143 (128+SIGTERM), got %d", got)
	}
}

func TestClassifyExit(t *testing.T) {
	tests := []struct {
		code        int
		graceActive bool
		want        bool
	}{
		{0, false, true},
		{0, true, true},
		{255, true, true},
		{255, false, false},
		{143, true, true},
		{143, false, false},
		{1, true, false},
		{1, false, false},
	}
	for _, tt := range tests {
		if got := classifyExit(tt.code, tt.graceActive); got != tt.want {
			t.Errorf("classifyExit(%d, %v) = %v, want %v", tt.code, tt.graceActive, got, tt.want)
		}
	}
}

func TestClassifyPostProcessErrorSync(t *testing.T) {
	err := fmt.Errorf("postprocess: %w", &syncplan.SyncError{Cause: errors.New("sync tone not found")})
	if got := classifyPostProcessError(err); got != events.ErrSync {
		t.Errorf("expected ErrSync, got %s", got)
	}
}

func TestClassifyPostProcessErrorGeneric(t *testing.T) {
	err := fmt.Errorf("postprocess: stage merge: %w", errors.New("ffmpeg failed"))
	if got := classifyPostProcessError(err); got != events.ErrPostProcess {
		t.Errorf("expected ErrPostProcess, got %s", got)
	}
}

func TestBytesToFloat32RoundTrip(t *testing.T) {
	// 1.0 as little-endian float32 bits.
	data := []byte{0x00, 0x00, 0x80, 0x3f}
	out := bytesToFloat32(data)
	if len(out) != 1 || out[0] != 1.0 {
		t.Errorf("expected [1.0], got %v", out)
	}
}

type fakeSink struct {
	batches [][]float32
	err     error
}

func (f *fakeSink) WriteFrames(samples []float32) error {
	f.batches = append(f.batches, samples)
	return f.err
}

func TestDispatchFramesNilSink(t *testing.T) {
	pm := paths.New(&config.Config{}, "bot-test")
	sess := newSession(testConfig(), pm, nil, nil, nil, fakeAudioControl{}, fakeDryRun{})
	sess.dispatchFrames([]float32{1, 2, 3}) // must not panic
}

func TestDispatchFramesDropOnError(t *testing.T) {
	pm := paths.New(&config.Config{}, "bot-test")
	sink := &fakeSink{err: errors.New("sink busy")}
	sess := newSession(testConfig(), pm, nil, sink, nil, fakeAudioControl{}, fakeDryRun{})
	sess.dispatchFrames([]float32{1, 2, 3})
	if len(sink.batches) != 1 {
		t.Errorf("expected sink to receive the batch even though it errors, got %d calls", len(sink.batches))
	}
}
