package capture

import (
	"strings"
	"testing"

	"github.com/example/botcore/internal/config"
	"github.com/example/botcore/internal/paths"
)

func TestBuildArgsAudioVideoIncludesAllFourOutputs(t *testing.T) {
	pm := paths.New(&config.Config{}, "bot-1")
	cfg := Config{
		Mode:              ModeAudioVideo,
		DisplayID:         ":99",
		AudioSourceID:     "monitor-1",
		ArchiveSampleRate: 44100,
		StreamSampleRate:  24000,
		VideoCropWidth:    1280,
		VideoCropHeight:   720,
		VideoCropY:        160,
		VideoCRF:          23,
		VideoGOP:          30,
		ScreenshotWidth:   480,
		ScreenshotHeight:  270,
	}

	args := buildArgs(cfg, pm, 1_700_000_000)
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "-i :99") {
		t.Error("expected the display grab as the first input")
	}
	if !strings.Contains(joined, "-i monitor-1") {
		t.Error("expected the audio monitor source as the second input")
	}
	if !strings.Contains(joined, pm.RawVideo()) {
		t.Error("expected raw video output path in audio+video mode")
	}
	if !strings.Contains(joined, pm.RawAudio()) {
		t.Error("expected raw audio output path")
	}
	if !strings.Contains(joined, "pipe:1") {
		t.Error("expected streaming output to pipe:1")
	}
	if !strings.Contains(joined, "crop=1280:720:0:160") {
		t.Error("expected crop filter with configured dimensions")
	}

	archiveIdx := strings.Index(joined, pm.RawAudio())
	if archiveIdx == -1 || !strings.Contains(joined[:archiveIdx], "-map 1:a:0") {
		t.Error("expected raw audio output to be mapped from input 1 (the audio monitor source)")
	}
	videoIdx := strings.Index(joined, pm.RawVideo())
	if videoIdx == -1 || !strings.Contains(joined[:videoIdx], "-map 0:v:0") {
		t.Error("expected raw video output to be mapped from input 0 (the display grab)")
	}
}

func TestBuildArgsAudioOnlyOmitsVideoOutput(t *testing.T) {
	pm := paths.New(&config.Config{}, "bot-2")
	cfg := Config{
		Mode:              ModeAudioOnly,
		DisplayID:         ":99",
		AudioSourceID:     "monitor-2",
		ArchiveSampleRate: 44100,
		StreamSampleRate:  24000,
	}

	args := buildArgs(cfg, pm, 1_700_000_000)
	joined := strings.Join(args, " ")

	if strings.Contains(joined, pm.RawVideo()) {
		t.Error("expected raw video output to be omitted in audio-only mode")
	}
	if !strings.Contains(joined, pm.RawAudio()) {
		t.Error("expected raw audio output path")
	}
	if !strings.Contains(joined, "-i monitor-2") {
		t.Error("expected the audio monitor source input even when video output is omitted")
	}
}
