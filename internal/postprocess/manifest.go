package postprocess

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// manifest is the session summary written alongside the final artifacts, so
// a human or downstream job can inspect what a bot's recording produced
// without querying the database.
type manifest struct {
	BotID              string    `yaml:"bot_id"`
	IsAudioOnly        bool      `yaml:"is_audio_only"`
	RecordingStartTime time.Time `yaml:"recording_start_time"`
	MeetingStartTime   time.Time `yaml:"meeting_start_time,omitempty"`
	AudioPaddingSec    float64   `yaml:"audio_padding_seconds"`
	TrimStartSec       float64   `yaml:"trim_start_seconds"`
	FinalDurationSec   float64   `yaml:"final_duration_seconds"`
	FinalVideoPath     string    `yaml:"final_video_path,omitempty"`
	FinalAudioPath     string    `yaml:"final_audio_path,omitempty"`
	Chunks             []string  `yaml:"chunks"`
}

func writeManifest(path string, m manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("postprocess: marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("postprocess: write manifest %s: %w", path, err)
	}
	return nil
}
