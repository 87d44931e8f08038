// Package postprocess implements the deterministic pipeline that turns a
// finished capture session's raw artifacts into the final trimmed
// video/audio and their uploaded chunks.
package postprocess

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/example/botcore/internal/capture"
	"github.com/example/botcore/internal/config"
	"github.com/example/botcore/internal/contracts"
	"github.com/example/botcore/internal/db"
	"github.com/example/botcore/internal/mediatool"
	"github.com/example/botcore/internal/metrics"
	"github.com/example/botcore/internal/models"
	"github.com/example/botcore/internal/paths"
	"github.com/example/botcore/internal/syncplan"
)

// Pipeline implements capture.PostProcessor. It is stateless between runs;
// every field is a shared collaborator, not per-session state.
type Pipeline struct {
	runner   *mediatool.Runner
	planner  *syncplan.Planner
	uploader contracts.Uploader
	audit    *db.Client // nil disables the audit trail
	cfg      *config.Config
}

func New(runner *mediatool.Runner, planner *syncplan.Planner, uploader contracts.Uploader, audit *db.Client, cfg *config.Config) *Pipeline {
	return &Pipeline{runner: runner, planner: planner, uploader: uploader, audit: audit, cfg: cfg}
}

var _ capture.PostProcessor = (*Pipeline)(nil)

// Run executes the full pipeline for one finished session. No stage
// retries; a failure in any stage is fatal. Named so the deferred audit
// write can see the final error regardless of which stage produced it.
func (p *Pipeline) Run(ctx context.Context, sess *capture.Session) (err error) {
	pm := sess.Paths()
	cfg := sess.Config()
	botID := pm.BotID()

	audit := models.RecordingSession{
		BotID:              botID,
		IsAudioOnly:        cfg.IsAudioOnly(),
		RecordingStartTime: sess.RecordingStartTime(),
		MeetingStartTime:   sess.MeetingStartTime(),
	}
	var uploadedChunks []models.Chunk

	defer func() {
		if p.audit == nil {
			return
		}
		if err != nil {
			audit.State = "stopped-failure"
			audit.LastError = err.Error()
		} else {
			audit.State = "stopped-success"
		}
		if recErr := p.audit.RecordFinished(audit, uploadedChunks); recErr != nil {
			log.Printf("⚠️ audit trail write failed: %v", recErr)
		}
	}()

	var plan syncplan.TrimPlan

	if cfg.IsAudioOnly() {
		if err = p.stage("audio-only-copy", func() error {
			return copyFile(pm.RawAudio(), pm.FinalAudio())
		}); err != nil {
			return err
		}
		audit.FinalAudioPath = pm.FinalAudio()
	} else {
		plan, err = p.computeTrimPlan(ctx, sess, pm)
		if err != nil {
			return err
		}
		audit.AudioPaddingMs = int(plan.AudioPadding * 1000)
		audit.TrimStartMs = int(plan.TrimStart * 1000)
		audit.FinalDurationMs = int(plan.FinalDuration * 1000)

		if err = p.stage("audio-head-align", func() error {
			return p.alignAudioHead(ctx, cfg, pm, plan.AudioPadding)
		}); err != nil {
			return err
		}
		if err = p.stage("merge", func() error {
			return p.mergeVideoAudio(ctx, cfg, pm)
		}); err != nil {
			return err
		}
		if err = p.stage("final-trim", func() error {
			return p.finalTrim(ctx, pm, plan.TrimStart, plan.FinalDuration)
		}); err != nil {
			return err
		}
		if err = p.stage("audio-reextract", func() error {
			return p.reextractAudio(ctx, cfg, pm)
		}); err != nil {
			return err
		}
		audit.FinalVideoPath = pm.FinalVideo()
		audit.FinalAudioPath = pm.FinalAudio()
	}

	var chunkFiles []string
	if p.cfg.Transcription.Enabled {
		if err = p.stage("chunk", func() error {
			files, chunkErr := p.chunkAudio(ctx, pm)
			chunkFiles = files
			return chunkErr
		}); err != nil {
			return err
		}
		uploadedChunks = p.uploadChunks(ctx, botID, chunkFiles)
	}

	p.uploadFinalArtifacts(ctx, botID, &audit, uploadedChunks)

	if p.cfg.PostProcess.WriteManifest {
		m := manifest{
			BotID:              botID,
			IsAudioOnly:        audit.IsAudioOnly,
			RecordingStartTime: audit.RecordingStartTime,
			MeetingStartTime:   audit.MeetingStartTime,
			AudioPaddingSec:    plan.AudioPadding,
			TrimStartSec:       plan.TrimStart,
			FinalDurationSec:   plan.FinalDuration,
			FinalVideoPath:     audit.FinalVideoPath,
			FinalAudioPath:     audit.FinalAudioPath,
			Chunks:             chunkKeys(botID, chunkFiles),
		}
		if err := writeManifest(pm.Manifest(), m); err != nil {
			log.Printf("⚠️ manifest write failed: %v", err)
		}
	}

	if p.cfg.PostProcess.DeleteIntermediates {
		p.deleteIntermediates(pm, cfg.IsAudioOnly())
	}

	return nil
}

// computeTrimPlan sync-classifies failures to locate or trust the tone
// (ComputeOffset, CheckResidual, BuildPlan): those errors are wrapped in
// syncplan.SyncError so the session layer can tell them apart from a
// downstream ffmpeg stage failing outright. A failure to probe the raw track
// durations is returned unwrapped and surfaces as a plain post-processing
// failure.
func (p *Pipeline) computeTrimPlan(ctx context.Context, sess *capture.Session, pm *paths.Manager) (syncplan.TrimPlan, error) {
	audioToneTime, videoToneTime, err := p.planner.ComputeOffset(ctx, pm.RawAudio(), pm.RawVideo())
	if err != nil {
		return syncplan.TrimPlan{}, &syncplan.SyncError{Cause: fmt.Errorf("postprocess: sync offset: %w", err)}
	}

	if err := p.planner.CheckResidual(audioToneTime, videoToneTime); err != nil {
		return syncplan.TrimPlan{}, &syncplan.SyncError{Cause: err}
	}

	videoDuration, err := p.probeDuration(ctx, pm.RawVideo())
	if err != nil {
		return syncplan.TrimPlan{}, fmt.Errorf("postprocess: probe video duration: %w", err)
	}
	audioDuration, err := p.probeDuration(ctx, pm.RawAudio())
	if err != nil {
		return syncplan.TrimPlan{}, fmt.Errorf("postprocess: probe audio duration: %w", err)
	}

	recordingStart := sess.RecordingStartTime()
	now := time.Now()
	plan, err := p.planner.BuildPlan(
		audioToneTime, videoToneTime,
		recordingStart, sess.MeetingStartTime(), now,
		now.Sub(recordingStart),
		videoDuration, audioDuration,
	)
	if err != nil {
		return syncplan.TrimPlan{}, &syncplan.SyncError{Cause: err}
	}
	return plan, nil
}

func (p *Pipeline) probeDuration(ctx context.Context, path string) (float64, error) {
	out, err := p.runner.RunProber(ctx, []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	})
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("postprocess: parse duration %q: %w", out, err)
	}
	return seconds, nil
}

// alignAudioHead pads, trims, or byte-copies raw.wav into processed.wav
// depending on the sign of audioPadding.
func (p *Pipeline) alignAudioHead(ctx context.Context, cfg capture.Config, pm *paths.Manager, audioPadding float64) error {
	switch {
	case audioPadding > 0:
		if err := p.runner.RunEncoder(ctx, []string{
			"-y", "-f", "lavfi", "-i", fmt.Sprintf("anullsrc=r=%d:cl=mono", cfg.ArchiveSampleRate),
			"-t", fmt.Sprintf("%.3f", audioPadding),
			"-acodec", "pcm_s16le",
			pm.Silence(),
		}); err != nil {
			return fmt.Errorf("synthesize silence: %w", err)
		}

		concatList := fmt.Sprintf("file '%s'\nfile '%s'\n", pm.Silence(), pm.RawAudio())
		if err := os.WriteFile(pm.ConcatList(), []byte(concatList), 0o644); err != nil {
			return fmt.Errorf("write concat list: %w", err)
		}

		err := p.runner.RunEncoder(ctx, []string{
			"-y", "-f", "concat", "-safe", "0", "-i", pm.ConcatList(),
			"-acodec", "pcm_s16le", "-ar", strconv.Itoa(cfg.ArchiveSampleRate), "-ac", "1",
			pm.Processed(),
		})
		os.Remove(pm.Silence())
		os.Remove(pm.ConcatList())
		if err != nil {
			return fmt.Errorf("concat silence+audio: %w", err)
		}
		return nil

	case audioPadding < 0:
		return p.runner.RunEncoder(ctx, []string{
			"-y", "-ss", fmt.Sprintf("%.3f", -audioPadding), "-i", pm.RawAudio(),
			"-avoid_negative_ts", "make_zero",
			"-acodec", "pcm_s16le",
			pm.Processed(),
		})

	default:
		return copyFile(pm.RawAudio(), pm.Processed())
	}
}

// mergeVideoAudio is step 3: stream-copy raw video, encode processed audio
// to AAC, mux into merged.mp4 with the shortest-input rule.
func (p *Pipeline) mergeVideoAudio(ctx context.Context, cfg capture.Config, pm *paths.Manager) error {
	return p.runner.RunEncoder(ctx, []string{
		"-y",
		"-i", pm.RawVideo(),
		"-i", pm.Processed(),
		"-c:v", "copy",
		"-c:a", cfg.MergedAudioCodec, "-b:a", cfg.MergedAudioBitrate,
		"-shortest",
		"-avoid_negative_ts", "make_zero",
		pm.Merged(),
	})
}

// finalTrim is step 4: seek and stream-copy trimStart..trimStart+finalDuration
// out of merged.mp4, safe because the raw video was encoded with a 1s GOP.
func (p *Pipeline) finalTrim(ctx context.Context, pm *paths.Manager, trimStart, finalDuration float64) error {
	return p.runner.RunEncoder(ctx, []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", trimStart),
		"-i", pm.Merged(),
		"-t", fmt.Sprintf("%.3f", finalDuration),
		"-c", "copy",
		"-movflags", "+faststart",
		pm.FinalVideo(),
	})
}

// reextractAudio is step 5: strip the final MP4's audio track into a
// standalone WAV, guaranteeing byte-level agreement with the video.
func (p *Pipeline) reextractAudio(ctx context.Context, cfg capture.Config, pm *paths.Manager) error {
	return p.runner.RunEncoder(ctx, []string{
		"-y", "-i", pm.FinalVideo(),
		"-vn",
		"-acodec", "pcm_s16le", "-ar", strconv.Itoa(cfg.ArchiveSampleRate), "-ac", "1",
		pm.FinalAudio(),
	})
}

// chunkAudio is step 6: segment the final WAV via the segment muxer, then
// discover the files it produced (the segment muxer doesn't report a count).
func (p *Pipeline) chunkAudio(ctx context.Context, pm *paths.Manager) ([]string, error) {
	totalDuration, err := p.probeDuration(ctx, pm.FinalAudio())
	if err != nil {
		return nil, fmt.Errorf("probe final audio duration: %w", err)
	}
	segmentSeconds := p.cfg.PostProcess.ChunkSeconds
	if totalDuration > 0 && int(totalDuration) < segmentSeconds {
		segmentSeconds = int(totalDuration) + 1
	}
	if segmentSeconds <= 0 {
		segmentSeconds = 3600
	}

	if err := os.MkdirAll(pm.ChunksDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create chunks dir: %w", err)
	}

	if err := p.runner.RunEncoder(ctx, []string{
		"-y", "-i", pm.FinalAudio(),
		"-f", "segment",
		"-segment_time", strconv.Itoa(segmentSeconds),
		"-c", "copy",
		pm.ChunkPattern(),
	}); err != nil {
		return nil, fmt.Errorf("segment: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(pm.ChunksDir(), pm.BotID()+"-*.wav"))
	if err != nil {
		return nil, fmt.Errorf("glob chunk files: %w", err)
	}
	sort.Slice(matches, func(i, j int) bool {
		return chunkIndex(matches[i]) < chunkIndex(matches[j])
	})
	return matches, nil
}

func chunkIndex(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".wav")
	parts := strings.Split(base, "-")
	n, _ := strconv.Atoi(parts[len(parts)-1])
	return n
}

// uploadChunks is the first half of step 7: best-effort per-chunk uploads
// that never abort the batch.
func (p *Pipeline) uploadChunks(ctx context.Context, botID string, chunkFiles []string) []models.Chunk {
	var records []models.Chunk
	bucket := p.cfg.Storage.ChunkBucket

	for i, path := range chunkFiles {
		key := fmt.Sprintf("%s/%s", botID, filepath.Base(path))
		err := p.uploader.Upload(ctx, path, bucket, key, contracts.UploadOptions{Chunk: true, ContentType: "audio/wav"})
		record := models.Chunk{Index: i, Bucket: bucket, Key: key, Uploaded: err == nil}
		if err != nil {
			log.Printf("⚠️ chunk upload failed (%s): %v", key, err)
			metrics.PostProcessFailures.WithLabelValues("upload-chunk").Inc()
		} else {
			os.Remove(path)
		}
		records = append(records, record)
	}
	return records
}

// uploadFinalArtifacts is the second half of step 7: the final .wav/.mp4
// uploaded to the video bucket, local copies deleted only on success. An
// upload failure here is logged, not fatal — the local file is retained so
// an out-of-band retry is possible, and the session still finishes in its
// terminal success state. Once the final audio is safely uploaded, the
// per-chunk copies of that same audio in the chunk bucket are redundant and
// are deleted; if the final upload failed, the chunks remain the only
// durable copy and are left in place.
func (p *Pipeline) uploadFinalArtifacts(ctx context.Context, botID string, audit *models.RecordingSession, uploadedChunks []models.Chunk) {
	start := time.Now()
	bucket := p.cfg.Storage.VideoBucket

	if audit.FinalVideoPath != "" {
		key := botID + ".mp4"
		if err := p.uploader.Upload(ctx, audit.FinalVideoPath, bucket, key, contracts.UploadOptions{ContentType: "video/mp4"}); err != nil {
			log.Printf("⚠️ final video upload failed, local copy retained (%s): %v", audit.FinalVideoPath, err)
			metrics.PostProcessFailures.WithLabelValues("upload-final").Inc()
		} else {
			os.Remove(audit.FinalVideoPath)
		}
	}

	if audit.FinalAudioPath != "" {
		key := botID + ".wav"
		if err := p.uploader.Upload(ctx, audit.FinalAudioPath, bucket, key, contracts.UploadOptions{ContentType: "audio/wav"}); err != nil {
			log.Printf("⚠️ final audio upload failed, local copy retained (%s): %v", audit.FinalAudioPath, err)
			metrics.PostProcessFailures.WithLabelValues("upload-final").Inc()
		} else {
			os.Remove(audit.FinalAudioPath)
			p.deleteRedundantChunks(ctx, uploadedChunks)
		}
	}

	metrics.PostProcessStageDuration.WithLabelValues("upload-final").Observe(time.Since(start).Seconds())
}

// deleteRedundantChunks removes chunk objects from the chunk bucket now
// that the final audio they were segmented from has landed permanently in
// the video bucket. Best-effort: a delete failure is logged and otherwise
// ignored, since the chunk bucket's TTL will eventually reclaim the object
// anyway.
func (p *Pipeline) deleteRedundantChunks(ctx context.Context, uploadedChunks []models.Chunk) {
	for _, c := range uploadedChunks {
		if !c.Uploaded {
			continue
		}
		if err := p.uploader.Delete(ctx, c.Bucket, c.Key); err != nil {
			log.Printf("⚠️ chunk cleanup failed (%s/%s): %v", c.Bucket, c.Key, err)
		}
	}
}

func (p *Pipeline) deleteIntermediates(pm *paths.Manager, audioOnly bool) {
	os.Remove(pm.RawAudio())
	os.Remove(pm.Processed())
	if !audioOnly {
		os.Remove(pm.RawVideo())
		os.Remove(pm.Merged())
	}
}

func chunkKeys(botID string, chunkFiles []string) []string {
	keys := make([]string, len(chunkFiles))
	for i, path := range chunkFiles {
		keys[i] = fmt.Sprintf("%s/%s", botID, filepath.Base(path))
	}
	return keys
}

// stage times a pipeline step under its label and records failures.
func (p *Pipeline) stage(label string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.PostProcessStageDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PostProcessFailures.WithLabelValues(label).Inc()
		return fmt.Errorf("postprocess: stage %s: %w", label, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	return nil
}
