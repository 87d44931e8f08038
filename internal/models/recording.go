// Package models defines the gorm records in the session audit trail,
// answering "what happened to bot X's recording" after the process has
// exited.
package models

import "time"

// RecordingSession is one row per capture session that reaches
// post-processing, written when the pipeline finishes. Sessions that end
// without post-processing (device not ready, start failure, capture abort)
// get no row.
type RecordingSession struct {
	ID                 uint      `gorm:"primaryKey" json:"-"`
	BotID              string    `gorm:"index" json:"bot_id"`
	State              string    `json:"state"` // "stopped-success" | "stopped-failure"
	IsAudioOnly        bool      `json:"is_audio_only"`
	RecordingStartTime time.Time `json:"recording_start_time"`
	MeetingStartTime   time.Time `json:"meeting_start_time"`
	FinalVideoPath     string    `json:"final_video_path,omitempty"`
	FinalAudioPath     string    `json:"final_audio_path,omitempty"`
	AudioPaddingMs     int       `json:"audio_padding_ms"`
	TrimStartMs        int       `json:"trim_start_ms"`
	FinalDurationMs    int       `json:"final_duration_ms"`
	LastError          string    `json:"last_error,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

func (RecordingSession) TableName() string {
	return "recording_sessions"
}

// Chunk is one row per uploaded audio chunk belonging to a RecordingSession.
type Chunk struct {
	ID                 uint      `gorm:"primaryKey" json:"-"`
	RecordingSessionID uint      `gorm:"index" json:"recording_session_id"`
	Index              int       `json:"index"`
	Bucket             string    `json:"bucket"`
	Key                string    `json:"key"`
	Uploaded           bool      `json:"uploaded"`
	CreatedAt          time.Time `json:"created_at"`
}

func (Chunk) TableName() string {
	return "chunks"
}
