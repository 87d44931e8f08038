package capture

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DeviceNotReadyError is fatal: no capture may start without a confirmed
// monitor source.
type DeviceNotReadyError struct {
	AudioSourceID string
}

func (e *DeviceNotReadyError) Error() string {
	return fmt.Sprintf("audio monitor source %q not ready after retries", e.AudioSourceID)
}

// audioControl abstracts the platform audio control CLI (e.g. pactl) used
// to list sources. Isolated behind an interface so tests never shell out.
type audioControl interface {
	ListSources(ctx context.Context) (string, error)
}

type pactlAudioControl struct{}

func (pactlAudioControl) ListSources(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "pactl", "list", "short", "sources").Output()
	return string(out), err
}

// dryRunCapture abstracts the 100ms dry-run fallback capture used when
// listing sources doesn't confirm readiness.
type dryRunCapture interface {
	Try(ctx context.Context, audioSourceID string, d time.Duration) error
}

type ffmpegDryRunCapture struct{}

func (ffmpegDryRunCapture) Try(ctx context.Context, audioSourceID string, d time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, d+2*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-f", "pulse", "-i", audioSourceID,
		"-t", fmt.Sprintf("%.3f", d.Seconds()),
		"-f", "null", "-")
	return cmd.Run()
}

// waitForDevices probes for the named audio monitor source, retrying up to
// cfg.DeviceProbeRetries times at cfg.DeviceProbeInterval, falling back to a
// 100ms dry-run capture.
func waitForDevices(ctx context.Context, cfg Config, ctrl audioControl, dry dryRunCapture) error {
	retries := cfg.DeviceProbeRetries
	if retries <= 0 {
		retries = 15
	}
	interval := cfg.DeviceProbeInterval
	if interval <= 0 {
		interval = time.Second
	}

	for attempt := 0; attempt < retries; attempt++ {
		listing, err := ctrl.ListSources(ctx)
		if err == nil && cfg.AudioSourceID != "" && strings.Contains(listing, cfg.AudioSourceID) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}

	if err := dry.Try(ctx, cfg.AudioSourceID, 100*time.Millisecond); err == nil {
		return nil
	}

	return &DeviceNotReadyError{AudioSourceID: cfg.AudioSourceID}
}
