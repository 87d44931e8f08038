// Package capture implements the capture session: a single long-lived
// capture subprocess producing raw video, raw audio, screenshots, and a
// live float-PCM stream.
package capture

import (
	"time"

	"github.com/example/botcore/internal/config"
)

// Mode selects whether the capture records video alongside audio.
type Mode int

const (
	ModeAudioVideo Mode = iota
	ModeAudioOnly
)

// Config is the immutable capture configuration for one session.
type Config struct {
	DisplayID     string
	AudioSourceID string
	Mode          Mode

	ArchiveSampleRate int // Hz, archived audio (44100)
	StreamSampleRate  int // Hz, live PCM stream (24000)

	ScreenshotPeriod time.Duration
	ScreenshotWidth  int
	ScreenshotHeight int

	VideoGrabHeight int // source grab height before crop (880)
	VideoCropWidth  int // 1280
	VideoCropHeight int // 720
	VideoCropY      int // 160

	VideoCRF int // 23
	VideoGOP int // 30

	MergedAudioCodec   string // "aac"
	MergedAudioBitrate string // "192k"

	DeviceProbeRetries  int
	DeviceProbeInterval time.Duration
	FlashScreenSleep    time.Duration
	GracePeriod         time.Duration
	HardKillTimeout     time.Duration
}

// FromAppConfig builds a capture Config from the process-wide config.
func FromAppConfig(cfg *config.Config) Config {
	mode := ModeAudioVideo
	if cfg.Capture.Mode == "audio_only" {
		mode = ModeAudioOnly
	}
	return Config{
		DisplayID:     cfg.Capture.DisplayID,
		AudioSourceID: cfg.Capture.AudioSourceID,
		Mode:          mode,

		ArchiveSampleRate: cfg.Capture.ArchiveSampleRate,
		StreamSampleRate:  cfg.Capture.StreamSampleRate,

		ScreenshotPeriod: time.Duration(cfg.Capture.ScreenshotPeriodMs) * time.Millisecond,
		ScreenshotWidth:  cfg.Capture.ScreenshotWidth,
		ScreenshotHeight: cfg.Capture.ScreenshotHeight,

		VideoGrabHeight: cfg.Capture.VideoGrabHeight,
		VideoCropWidth:  cfg.Capture.VideoCropWidth,
		VideoCropHeight: cfg.Capture.VideoCropHeight,
		VideoCropY:      cfg.Capture.VideoCropY,

		VideoCRF: cfg.Capture.VideoCRF,
		VideoGOP: cfg.Capture.VideoGOP,

		MergedAudioCodec:   cfg.Capture.MergedAudioCodec,
		MergedAudioBitrate: cfg.Capture.MergedAudioBitrate,

		DeviceProbeRetries:  cfg.Capture.DeviceProbeRetries,
		DeviceProbeInterval: time.Duration(cfg.Capture.DeviceProbeInterval) * time.Millisecond,
		FlashScreenSleep:    cfg.FlashScreenSleep(),
		GracePeriod:         cfg.GracePeriod(),
		HardKillTimeout:     cfg.HardKillTimeout(),
	}
}

// IsAudioOnly reports whether video output is disabled.
func (c Config) IsAudioOnly() bool { return c.Mode == ModeAudioOnly }

// State is a value in the capture session's state machine.
type State int

const (
	StateIdle State = iota
	StateWaitingForDevices
	StateRunning
	StateStopping
	StateStoppedSuccess
	StateStoppedFailure
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaitingForDevices:
		return "waiting-for-devices"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStoppedSuccess:
		return "stopped-success"
	case StateStoppedFailure:
		return "stopped-failure"
	default:
		return "unknown"
	}
}
