package capture

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/example/botcore/internal/paths"
)

// buildArgs deterministically builds the ffmpeg argument vector for the
// capture subprocess. In audio+video mode there are four outputs (raw
// video, raw audio, screenshots, streaming PCM); in audio-only mode the
// raw-video output is omitted.
func buildArgs(cfg Config, p *paths.Manager, screenshotTimestamp int64) []string {
	args := []string{
		"-f", "x11grab",
		"-i", cfg.DisplayID,
		"-f", "pulse",
		"-i", cfg.AudioSourceID,
	}

	if !cfg.IsAudioOnly() {
		args = append(args, videoOutputArgs(cfg, p)...)
	}

	args = append(args, audioOutputArgs(cfg, p)...)
	args = append(args, screenshotOutputArgs(cfg, p, screenshotTimestamp)...)
	args = append(args, streamOutputArgs(cfg)...)

	return args
}

// The display grab is input 0 and the audio monitor source is input 1:
// video/screenshot outputs map from 0:v:0, archive/stream audio outputs map
// from 1:a:0.

func videoOutputArgs(cfg Config, p *paths.Manager) []string {
	cropFilter := fmt.Sprintf("crop=%d:%d:0:%d", cfg.VideoCropWidth, cfg.VideoCropHeight, cfg.VideoCropY)
	return []string{
		"-map", "0:v:0",
		"-vf", cropFilter,
		"-c:v", "libx264",
		"-profile:v", "main",
		"-level", "4.0",
		"-preset", "fast",
		"-crf", fmt.Sprintf("%d", cfg.VideoCRF),
		"-pix_fmt", "yuv420p",
		"-g", fmt.Sprintf("%d", cfg.VideoGOP),
		"-keyint_min", fmt.Sprintf("%d", cfg.VideoGOP),
		"-bf", "0",
		"-refs", "1",
		"-avoid_negative_ts", "make_zero",
		"-f", "mp4",
		p.RawVideo(),
	}
}

func audioOutputArgs(cfg Config, p *paths.Manager) []string {
	return []string{
		"-map", "1:a:0",
		"-c:a", "pcm_s16le",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", cfg.ArchiveSampleRate),
		"-avoid_negative_ts", "make_zero",
		"-f", "wav",
		p.RawAudio(),
	}
}

func screenshotOutputArgs(cfg Config, p *paths.Manager, ts int64) []string {
	periodSeconds := cfg.ScreenshotPeriod.Seconds()
	if periodSeconds <= 0 {
		periodSeconds = 5
	}
	filter := fmt.Sprintf("fps=1/%g,crop=%d:%d:0:%d,scale=%d:%d",
		periodSeconds, cfg.VideoCropWidth, cfg.VideoCropHeight, cfg.VideoCropY,
		cfg.ScreenshotWidth, cfg.ScreenshotHeight)
	pattern := filepath.Join(p.ScreenshotDir(), fmt.Sprintf("%d_%%04d.jpg", ts))
	return []string{
		"-map", "0:v:0",
		"-vf", filter,
		"-q:v", "3",
		pattern,
	}
}

func streamOutputArgs(cfg Config) []string {
	return []string{
		"-map", "1:a:0",
		"-c:a", "pcm_f32le",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", cfg.StreamSampleRate),
		"-f", "f32le",
		"pipe:1",
	}
}

// screenshotTimestamp resolves the timestamp namespace used in screenshot
// filenames ("<ts>_NNNN.jpg").
func screenshotTimestamp(now time.Time) int64 {
	return now.Unix()
}
