// Package config loads botcore's runtime configuration from config.yaml
// and BOTCORE_* environment variables.
package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved configuration for one bot process. A single
// process hosts at most one capture session, so this struct is loaded once
// at startup and never mutated afterward.
type Config struct {
	Capture struct {
		DisplayID          string `mapstructure:"display_id"`
		AudioSourceID      string `mapstructure:"audio_source_id"`
		Mode               string `mapstructure:"mode"` // "audio_only" | "audio_video"
		ArchiveSampleRate  int    `mapstructure:"archive_sample_rate"`
		StreamSampleRate   int    `mapstructure:"stream_sample_rate"`
		ScreenshotPeriodMs int    `mapstructure:"screenshot_period_ms"`
		ScreenshotWidth    int    `mapstructure:"screenshot_width"`
		ScreenshotHeight   int    `mapstructure:"screenshot_height"`
		VideoGrabHeight    int    `mapstructure:"video_grab_height"`
		VideoCropWidth     int    `mapstructure:"video_crop_width"`
		VideoCropHeight    int    `mapstructure:"video_crop_height"`
		VideoCropY         int    `mapstructure:"video_crop_y"`
		VideoCRF           int    `mapstructure:"video_crf"`
		VideoGOP           int    `mapstructure:"video_gop"`
		MergedAudioCodec   string `mapstructure:"merged_audio_codec"`
		MergedAudioBitrate string `mapstructure:"merged_audio_bitrate"`

		DeviceProbeRetries  int `mapstructure:"device_probe_retries"`
		DeviceProbeInterval int `mapstructure:"device_probe_interval_ms"`
		FlashScreenSleepMs  int `mapstructure:"flash_screen_sleep_ms"`
		GracePeriodSeconds  int `mapstructure:"grace_period_seconds"`
		HardKillSeconds     int `mapstructure:"hard_kill_seconds"`
	} `mapstructure:"capture"`

	Sync struct {
		ToneDurationMs    int     `mapstructure:"tone_duration_ms"`
		ToneFrequencyHz   float64 `mapstructure:"tone_frequency_hz"`
		ToneAmplitude     float64 `mapstructure:"tone_amplitude"`
		ToleranceMs       int     `mapstructure:"tolerance_ms"`
		TooEarlySeconds   int     `mapstructure:"too_early_seconds"`
		FallbackTailMs    int     `mapstructure:"fallback_tail_ms"`
	} `mapstructure:"sync"`

	PostProcess struct {
		ChunkSeconds           int  `mapstructure:"chunk_seconds"`
		DeleteIntermediates    bool `mapstructure:"delete_intermediates"`
		WriteManifest          bool `mapstructure:"write_manifest"`
	} `mapstructure:"postprocess"`

	Storage struct {
		Provider      string `mapstructure:"provider"` // "s3" | "local"
		KeyID         string `mapstructure:"key_id"`
		AppKey        string `mapstructure:"app_key"`
		Endpoint      string `mapstructure:"endpoint"`
		Region        string `mapstructure:"region"`
		ChunkBucket   string `mapstructure:"chunk_bucket"`
		ChunkTTLHours int    `mapstructure:"chunk_ttl_hours"`
		VideoBucket   string `mapstructure:"video_bucket"`
		LocalStorage  string `mapstructure:"local_storage"`
	} `mapstructure:"storage"`

	Paths struct {
		Root          string `mapstructure:"root"`
		OutDir        string `mapstructure:"out_dir"`
		ScreenshotDir string `mapstructure:"screenshot_dir"`
		ChunksDir     string `mapstructure:"chunks_dir"`
	} `mapstructure:"paths"`

	Database struct {
		Driver   string `mapstructure:"driver"` // "postgres" | "sqlite"
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
	} `mapstructure:"database"`

	Server struct {
		StatusAddr  string `mapstructure:"status_addr"`
		LogLevel    string `mapstructure:"log_level"`
		CleanupTimeoutSeconds     int `mapstructure:"cleanup_timeout_seconds"`
		CleanupStepTimeoutSeconds int `mapstructure:"cleanup_step_timeout_seconds"`
	} `mapstructure:"server"`

	Transcription struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"transcription"`
}

// FlashScreenSleep returns the pre-tone delay as a time.Duration.
func (c *Config) FlashScreenSleep() time.Duration {
	return time.Duration(c.Capture.FlashScreenSleepMs) * time.Millisecond
}

// GracePeriod returns the grace-period stop window as a time.Duration.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Capture.GracePeriodSeconds) * time.Second
}

// HardKillTimeout returns the hard-kill fallback window as a time.Duration.
func (c *Config) HardKillTimeout() time.Duration {
	return time.Duration(c.Capture.HardKillSeconds) * time.Second
}

// Load reads config.yaml (if present) and BOTCORE_* environment variables,
// falling back to this package's built-in defaults.
func Load() *Config {
	viper.SetEnvPrefix("BOTCORE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvKeys()
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("Warning: config error: %s", err)
		} else {
			log.Println("Info: config.yaml not found, using environment variables and defaults only.")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}

	return &cfg
}

func bindEnvKeys() {
	keys := []string{
		"capture.display_id", "capture.audio_source_id", "capture.mode",
		"capture.archive_sample_rate", "capture.stream_sample_rate",
		"capture.screenshot_period_ms", "capture.screenshot_width", "capture.screenshot_height",
		"capture.video_grab_height", "capture.video_crop_width", "capture.video_crop_height",
		"capture.video_crop_y", "capture.video_crf", "capture.video_gop",
		"capture.merged_audio_codec", "capture.merged_audio_bitrate",
		"capture.device_probe_retries", "capture.device_probe_interval_ms",
		"capture.flash_screen_sleep_ms", "capture.grace_period_seconds", "capture.hard_kill_seconds",

		"sync.tone_duration_ms", "sync.tone_frequency_hz", "sync.tone_amplitude",
		"sync.tolerance_ms", "sync.too_early_seconds", "sync.fallback_tail_ms",

		"postprocess.chunk_seconds", "postprocess.delete_intermediates", "postprocess.write_manifest",

		"storage.provider", "storage.key_id", "storage.app_key", "storage.endpoint",
		"storage.region", "storage.chunk_bucket", "storage.chunk_ttl_hours",
		"storage.video_bucket", "storage.local_storage",

		"paths.root", "paths.out_dir", "paths.screenshot_dir", "paths.chunks_dir",

		"database.driver", "database.host", "database.port", "database.user",
		"database.password", "database.name",

		"server.status_addr", "server.log_level",
		"server.cleanup_timeout_seconds", "server.cleanup_step_timeout_seconds",

		"transcription.enabled",
	}
	for _, k := range keys {
		viper.BindEnv(k)
	}
}

func setDefaults() {
	viper.SetDefault("capture.mode", "audio_video")
	viper.SetDefault("capture.archive_sample_rate", 44100)
	viper.SetDefault("capture.stream_sample_rate", 24000)
	viper.SetDefault("capture.screenshot_period_ms", 5000)
	viper.SetDefault("capture.screenshot_width", 480)
	viper.SetDefault("capture.screenshot_height", 270)
	viper.SetDefault("capture.video_grab_height", 880)
	viper.SetDefault("capture.video_crop_width", 1280)
	viper.SetDefault("capture.video_crop_height", 720)
	viper.SetDefault("capture.video_crop_y", 160)
	viper.SetDefault("capture.video_crf", 23)
	viper.SetDefault("capture.video_gop", 30)
	viper.SetDefault("capture.merged_audio_codec", "aac")
	viper.SetDefault("capture.merged_audio_bitrate", "192k")
	viper.SetDefault("capture.device_probe_retries", 15)
	viper.SetDefault("capture.device_probe_interval_ms", 1000)
	viper.SetDefault("capture.flash_screen_sleep_ms", 6000)
	viper.SetDefault("capture.grace_period_seconds", 3)
	viper.SetDefault("capture.hard_kill_seconds", 8)

	viper.SetDefault("sync.tone_duration_ms", 800)
	viper.SetDefault("sync.tone_frequency_hz", 1000.0)
	viper.SetDefault("sync.tone_amplitude", 0.95)
	viper.SetDefault("sync.tolerance_ms", 50)
	viper.SetDefault("sync.too_early_seconds", 10)
	viper.SetDefault("sync.fallback_tail_ms", 5000)

	viper.SetDefault("postprocess.chunk_seconds", 3600)
	viper.SetDefault("postprocess.delete_intermediates", true)
	viper.SetDefault("postprocess.write_manifest", true)

	viper.SetDefault("storage.provider", "s3")
	viper.SetDefault("storage.chunk_bucket", "temporary-audio")
	viper.SetDefault("storage.chunk_ttl_hours", 24)
	viper.SetDefault("storage.video_bucket", "video")
	viper.SetDefault("storage.local_storage", "./data")

	viper.SetDefault("paths.root", "/tmp/botcore")
	viper.SetDefault("paths.out_dir", "/tmp/botcore/out")
	viper.SetDefault("paths.screenshot_dir", "/tmp/botcore/screenshots")
	viper.SetDefault("paths.chunks_dir", "/tmp/botcore/chunks")

	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.name", "botcore.db")

	viper.SetDefault("server.status_addr", ":8091")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.cleanup_timeout_seconds", 30)
	viper.SetDefault("server.cleanup_step_timeout_seconds", 3)

	viper.SetDefault("transcription.enabled", false)
}
