package capture

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/example/botcore/internal/contracts"
	"github.com/example/botcore/internal/events"
	"github.com/example/botcore/internal/metrics"
	"github.com/example/botcore/internal/paths"
	"github.com/example/botcore/internal/syncplan"
)

// PostProcessor runs the post-processing pipeline once the capture
// subprocess has exited successfully. Kept as an interface so this package
// never imports internal/postprocess (which itself needs capture's Session
// and paths types).
type PostProcessor interface {
	Run(ctx context.Context, sess *Session) error
}

// Snapshot is a point-in-time, read-only view of a Session, safe to hand to
// the status API or the audit trail without holding the session's lock.
type Snapshot struct {
	State               State
	RecordingStartTime  time.Time
	MeetingStartTime    time.Time
	GraceActive         bool
	IsAudioOnly         bool
	LastError           error
}

// Session is the singleton-per-process capture session. The zero value is
// not usable; construct with New.
type Session struct {
	cfg    Config
	paths  *paths.Manager
	page   contracts.MeetingPage
	sink   contracts.StreamingSink
	post   PostProcessor

	audioCtrl audioControl
	dryRun    dryRunCapture

	mu                 sync.Mutex
	state              State
	cmd                *exec.Cmd
	recordingStartTime time.Time
	meetingStartTime   time.Time
	graceActive        bool
	lastError          error

	doneCh chan struct{}
	events chan events.Event
}

// New constructs an idle Session against real platform collaborators.
func New(cfg Config, p *paths.Manager, page contracts.MeetingPage, sink contracts.StreamingSink, post PostProcessor) *Session {
	return newSession(cfg, p, page, sink, post, pactlAudioControl{}, ffmpegDryRunCapture{})
}

func newSession(cfg Config, p *paths.Manager, page contracts.MeetingPage, sink contracts.StreamingSink, post PostProcessor, ctrl audioControl, dry dryRunCapture) *Session {
	return &Session{
		cfg:       cfg,
		paths:     p,
		page:      page,
		sink:      sink,
		post:      post,
		audioCtrl: ctrl,
		dryRun:    dry,
		state:     StateIdle,
		doneCh:    make(chan struct{}),
		events:    make(chan events.Event, 16),
	}
}

// Events returns the channel the enclosing state machine consumes. Delivery
// order is strict: started → (stream side effects)* → stopped.
func (s *Session) Events() <-chan events.Event { return s.events }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Config() Config       { return s.cfg }
func (s *Session) Paths() *paths.Manager { return s.paths }

// SetMeetingStartTime records the wall-clock moment the browser-automation
// layer reports the meeting actually began. May be called at any time
// before Stop; if it's never called, it stays zero and the sync planner
// applies its fallback.
func (s *Session) SetMeetingStartTime(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meetingStartTime = t
}

func (s *Session) RecordingStartTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordingStartTime
}

func (s *Session) MeetingStartTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meetingStartTime
}

// Snapshot returns a consistent read of session state for observers.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:              s.state,
		RecordingStartTime: s.recordingStartTime,
		MeetingStartTime:   s.meetingStartTime,
		GraceActive:        s.graceActive,
		IsAudioOnly:        s.cfg.IsAudioOnly(),
		LastError:          s.lastError,
	}
}

// Start requires state = idle. It probes devices, spawns the capture
// subprocess, and returns once the process is confirmed running. It does
// not wait for post-processing; await that via Events() or Stop().
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("capture: start requires idle state, got %s", state)
	}
	s.state = StateWaitingForDevices
	s.mu.Unlock()

	if err := waitForDevices(ctx, s.cfg, s.audioCtrl, s.dryRun); err != nil {
		s.mu.Lock()
		s.state = StateStoppedFailure
		s.lastError = err
		s.mu.Unlock()
		s.emit(events.Error(events.ErrDeviceNotReady, err))
		close(s.doneCh)
		return err
	}

	ts := screenshotTimestamp(time.Now())
	args := buildArgs(s.cfg, s.paths, ts)

	cmd := exec.Command("ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return s.failStart(fmt.Errorf("stdout pipe: %w", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return s.failStart(fmt.Errorf("stderr pipe: %w", err))
	}
	if _, err := cmd.StdinPipe(); err != nil { // reserved for clean termination, unused otherwise
		return s.failStart(fmt.Errorf("stdin pipe: %w", err))
	}

	if err := cmd.Start(); err != nil {
		return s.failStart(fmt.Errorf("spawn ffmpeg: %w", err))
	}

	s.mu.Lock()
	s.cmd = cmd
	s.recordingStartTime = time.Now()
	s.state = StateRunning
	s.mu.Unlock()

	metrics.SessionsStarted.Inc()

	go s.drainStderr(stderr)
	go s.pumpStream(stdout)
	go s.requestToneAfterDelay(ctx)

	s.emit(events.Started(s.finalOutputPath(), s.cfg.IsAudioOnly()))
	go s.awaitExit()
	return nil
}

func (s *Session) finalOutputPath() string {
	if s.cfg.IsAudioOnly() {
		return s.paths.FinalAudio()
	}
	return s.paths.FinalVideo()
}

func (s *Session) failStart(err error) error {
	s.mu.Lock()
	s.state = StateStoppedFailure
	s.lastError = &CaptureStartError{Cause: err}
	s.mu.Unlock()
	s.emit(events.Error(events.ErrCaptureStart, s.lastError))
	close(s.doneCh)
	return s.lastError
}

// Stop requires state = running; calling it otherwise is an idempotent
// no-op. It sets the grace-period flag, waits GracePeriod,
// sends SIGTERM, arms a HardKillTimeout fallback, and resolves only once
// the stopped event has been emitted (post-processing included).
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return nil
	}
	s.graceActive = true
	s.state = StateStopping
	cmd := s.cmd
	doneCh := s.doneCh
	s.mu.Unlock()

	go func() {
		select {
		case <-time.After(s.cfg.GracePeriod):
		case <-doneCh:
			return
		}
		if cmd.Process != nil {
			_ = cmd.Process.Signal(syscall.SIGTERM)
		}
	}()

	go func() {
		select {
		case <-time.After(s.cfg.GracePeriod + s.cfg.HardKillTimeout):
		case <-doneCh:
			return
		}
		log.Printf("⚠️ hard-kill fallback firing for capture subprocess")
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}()

	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// awaitExit waits for the subprocess to exit, classifies the result, runs
// post-processing on success, and always emits Stopped last.
func (s *Session) awaitExit() {
	waitErr := s.cmd.Wait()
	code := exitCode(waitErr)

	s.mu.Lock()
	grace := s.graceActive
	started := s.recordingStartTime
	s.mu.Unlock()

	metrics.CaptureDurationSeconds.Observe(time.Since(started).Seconds())

	if classifyExit(code, grace) {
		var ppErr error
		if s.post != nil {
			ppErr = s.post.Run(context.Background(), s)
		}
		s.mu.Lock()
		if ppErr != nil {
			s.state = StateStoppedFailure
			s.lastError = ppErr
		} else {
			s.state = StateStoppedSuccess
		}
		s.mu.Unlock()
		if ppErr != nil {
			metrics.SessionsFailed.Inc()
			s.emit(events.Error(classifyPostProcessError(ppErr), ppErr))
		} else {
			metrics.SessionsSucceeded.Inc()
		}
	} else {
		abortErr := &CaptureAbortError{Code: code}
		s.mu.Lock()
		s.state = StateStoppedFailure
		s.lastError = abortErr
		s.mu.Unlock()
		metrics.SessionsFailed.Inc()
		s.emit(events.Error(events.ErrCaptureAbort, abortErr))
	}

	s.emit(events.Stopped())
	close(s.doneCh)
}

func (s *Session) emit(e events.Event) {
	s.events <- e
}

// classifyPostProcessError distinguishes a sync-tone failure from a generic
// post-processing stage failure so the two surface as different event
// kinds. Anything post-processing returns that isn't a *syncplan.SyncError
// is treated as a plain stage failure.
func classifyPostProcessError(err error) events.ErrorKind {
	var syncErr *syncplan.SyncError
	if errors.As(err, &syncErr) {
		return events.ErrSync
	}
	return events.ErrPostProcess
}

func (s *Session) requestToneAfterDelay(ctx context.Context) {
	select {
	case <-time.After(s.cfg.FlashScreenSleep):
	case <-s.doneCh:
		return
	}
	if s.page == nil {
		return
	}
	if err := s.page.RequestSyncTone(ctx); err != nil {
		log.Printf("⚠️ sync tone request failed: %v", err)
	}
}

// pumpStream reads the subprocess stdout, reinterprets every 4-byte group as
// a little-endian float32 sample, and hands batches to the streaming sink.
// Delivery is best-effort: the sink never blocks this component, and
// failed hand-offs are dropped, not retried.
func (s *Session) pumpStream(stdout io.Reader) {
	buf := make([]byte, 32*1024)
	var leftover []byte

	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			data := append(leftover, buf[:n]...)
			usable := len(data) - len(data)%4
			if usable > 0 {
				samples := bytesToFloat32(data[:usable])
				s.dispatchFrames(samples)
			}
			leftover = append([]byte(nil), data[usable:]...)
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) dispatchFrames(samples []float32) {
	if s.sink == nil {
		return
	}
	if err := s.sink.WriteFrames(samples); err != nil {
		metrics.StreamFramesDropped.Inc()
	}
}

func bytesToFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(b[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out
}

func (s *Session) drainStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(strings.ToLower(line), "error") {
			log.Printf("❌ ffmpeg: %s", line)
		}
	}
}

// exitCode extracts the raw process exit status, mapping a terminating
// signal to 128+signal the way a POSIX shell would report it (so SIGTERM
// shows up as 143).
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return -1
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
		if status.Signaled() {
			return 128 + int(status.Signal())
		}
		return status.ExitStatus()
	}
	return exitErr.ExitCode()
}

// classifyExit decides whether a subprocess exit status counts as a clean
// stop given whether the grace period was active when it exited.
func classifyExit(code int, graceActive bool) bool {
	switch code {
	case 0:
		return true
	case 255, 143:
		return graceActive
	default:
		return false
	}
}
