// Package syncplan implements the sync planner: locating the embedded
// sync tone in the raw audio and raw video tracks, and folding the
// resulting offset together with meeting-phase wall-clock timing into a
// single trim plan.
package syncplan

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/example/botcore/internal/mediatool"
)

// TrimPlan carries everything the post-processor needs to align, trim, and
// bound the final artifacts.
type TrimPlan struct {
	VideoToneTime float64 // seconds into raw.mp4 where the tone occurs
	AudioToneTime float64 // seconds into raw.wav where the tone occurs
	AudioPadding  float64 // VideoToneTime - AudioToneTime; negative means trim from audio head
	TrimStart     float64 // seconds to discard from the merged output
	FinalDuration float64 // seconds to retain
}

// TooEarlyError reports that the meeting-time fallback is unavailable
// because the whole recording is too short to safely assume anything about
// when the meeting started.
type TooEarlyError struct {
	RecordingDuration time.Duration
}

func (e *TooEarlyError) Error() string {
	return fmt.Sprintf("bot removed too early: recording duration %s below the meeting-time fallback threshold", e.RecordingDuration)
}

// OutOfToleranceError reports that the offset computation returned a
// result outside the acceptable residual tolerance.
type OutOfToleranceError struct {
	Residual  time.Duration
	Tolerance time.Duration
}

func (e *OutOfToleranceError) Error() string {
	return fmt.Sprintf("sync tone offset residual %s exceeds tolerance %s", e.Residual, e.Tolerance)
}

// SyncError wraps any failure encountered while locating or validating the
// sync tone offset (tone not found, bot removed too early, residual out of
// tolerance), letting callers distinguish it from a generic post-processing
// stage failure via errors.As.
type SyncError struct {
	Cause error
}

func (e *SyncError) Error() string { return e.Cause.Error() }
func (e *SyncError) Unwrap() error { return e.Cause }

// Params bundles the constants the planner needs, all viper-bound in
// internal/config.
type Params struct {
	Tone               ToneSpec
	ToleranceMs        int
	TooEarlySeconds    int
	FallbackTailMs     int
	FlashScreenSleepMs int
	ArchiveSampleRate  int
}

// Planner computes trim plans. It never decodes media itself beyond reading
// canonical PCM WAV bytes; locating the tone inside the raw
// video's audio track goes through the media tool to extract that track
// first, since there is no in-process A/V decoder here.
type Planner struct {
	runner *mediatool.Runner
	params Params
}

func New(runner *mediatool.Runner, params Params) *Planner {
	return &Planner{runner: runner, params: params}
}

// ComputeOffset locates the sync tone in audioPath (raw.wav) and, if
// videoPath is non-empty, in the audio track embedded in videoPath
// (raw.mp4). Both times are seconds, non-negative.
func (p *Planner) ComputeOffset(ctx context.Context, audioPath, videoPath string) (audioToneTime, videoToneTime float64, err error) {
	audioWav, err := readWaveFile(audioPath)
	if err != nil {
		return 0, 0, fmt.Errorf("syncplan: read audio track: %w", err)
	}
	reference := p.params.Tone.Generate(audioWav.SampleRate)

	audioToneTime, ok := findTone(audioWav.Samples, reference, audioWav.SampleRate)
	if !ok {
		return 0, 0, fmt.Errorf("syncplan: sync tone not found in %s", audioPath)
	}

	if videoPath == "" {
		return audioToneTime, audioToneTime, nil
	}

	extractedPath := videoPath + ".sync-extract.wav"
	defer os.Remove(extractedPath)

	extractArgs := []string{
		"-y", "-i", videoPath,
		"-vn", "-map", "0:a:0",
		"-c:a", "pcm_s16le", "-ac", "1",
		"-ar", fmt.Sprintf("%d", p.params.ArchiveSampleRate),
		extractedPath,
	}
	if err := p.runner.RunEncoder(ctx, extractArgs); err != nil {
		return 0, 0, fmt.Errorf("syncplan: extract video audio track: %w", err)
	}

	videoWav, err := readWaveFile(extractedPath)
	if err != nil {
		return 0, 0, fmt.Errorf("syncplan: read extracted video audio: %w", err)
	}
	videoReference := p.params.Tone.Generate(videoWav.SampleRate)

	videoToneTime, ok = findTone(videoWav.Samples, videoReference, videoWav.SampleRate)
	if !ok {
		return 0, 0, fmt.Errorf("syncplan: sync tone not found in video track of %s", videoPath)
	}

	return audioToneTime, videoToneTime, nil
}

// BuildPlan folds the tone offset together with meeting-phase wall-clock
// timing into a TrimPlan. meetingStart may be zero, in which case the
// meeting-time fallback applies:
// if the total recording duration exceeds TooEarlySeconds, meetingStart is
// substituted with now - FallbackTailMs; otherwise BotRemovedTooEarly is
// returned.
func (p *Planner) BuildPlan(audioToneTime, videoToneTime float64, recordingStart, meetingStart, now time.Time, recordingDuration time.Duration, videoDuration, audioDuration float64) (TrimPlan, error) {
	if meetingStart.IsZero() {
		threshold := time.Duration(p.params.TooEarlySeconds) * time.Second
		if recordingDuration <= threshold {
			return TrimPlan{}, &TooEarlyError{RecordingDuration: recordingDuration}
		}
		meetingStart = now.Add(-time.Duration(p.params.FallbackTailMs) * time.Millisecond)
	}

	audioPadding := videoToneTime - audioToneTime

	flashSleep := time.Duration(p.params.FlashScreenSleepMs) * time.Millisecond
	trimStart := videoToneTime + meetingStart.Sub(recordingStart).Seconds() - flashSleep.Seconds()
	if trimStart < 0 {
		trimStart = 0
	}

	finalDuration := videoDuration - trimStart
	if audioDuration < finalDuration {
		finalDuration = audioDuration
	}
	if finalDuration < 0 {
		finalDuration = 0
	}

	return TrimPlan{
		VideoToneTime: videoToneTime,
		AudioToneTime: audioToneTime,
		AudioPadding:  audioPadding,
		TrimStart:     trimStart,
		FinalDuration: finalDuration,
	}, nil
}

// CheckResidual validates that the two tone measurements agree within the
// configured tolerance once padding has notionally been applied — used by
// callers as a sanity check before trusting a plan.
func (p *Planner) CheckResidual(expected, actual float64) error {
	tolerance := time.Duration(p.params.ToleranceMs) * time.Millisecond
	residual := time.Duration(abs(expected-actual) * float64(time.Second))
	if residual > tolerance {
		return &OutOfToleranceError{Residual: residual, Tolerance: tolerance}
	}
	return nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
