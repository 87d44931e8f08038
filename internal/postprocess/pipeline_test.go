package postprocess

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/botcore/internal/config"
	"github.com/example/botcore/internal/contracts"
	"github.com/example/botcore/internal/models"
)

type fakeUploader struct {
	calls   []fakeUpload
	deletes []string // "bucket/key"
	fail    map[string]bool // key -> force failure
}

type fakeUpload struct {
	localPath, bucket, key string
	opts                   contracts.UploadOptions
}

func (f *fakeUploader) Upload(ctx context.Context, localPath, bucket, key string, opts contracts.UploadOptions) error {
	f.calls = append(f.calls, fakeUpload{localPath, bucket, key, opts})
	if f.fail[key] {
		return errUploadForced
	}
	return nil
}

func (f *fakeUploader) Delete(ctx context.Context, bucket, key string) error {
	f.deletes = append(f.deletes, bucket+"/"+key)
	return nil
}

var errUploadForced = &uploadForcedError{}

type uploadForcedError struct{}

func (*uploadForcedError) Error() string { return "forced upload failure" }

func newTestPipeline(t *testing.T, uploader contracts.Uploader) *Pipeline {
	t.Helper()
	cfg := &config.Config{}
	cfg.Storage.ChunkBucket = "temporary-audio"
	cfg.Storage.VideoBucket = "video"
	cfg.PostProcess.ChunkSeconds = 3600
	return New(nil, nil, uploader, nil, cfg)
}

func TestChunkIndex(t *testing.T) {
	cases := map[string]int{
		"/tmp/chunks/bot-1-0.wav": 0,
		"/tmp/chunks/bot-1-7.wav": 7,
		"bot-1-12.wav":            12,
	}
	for path, want := range cases {
		if got := chunkIndex(path); got != want {
			t.Errorf("chunkIndex(%q) = %d, want %d", path, got, want)
		}
	}
}

func TestUploadChunksBestEffort(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for i := 0; i < 3; i++ {
		p := filepath.Join(dir, "bot-1-"+string(rune('0'+i))+".wav")
		if err := os.WriteFile(p, []byte("pcm"), 0o644); err != nil {
			t.Fatal(err)
		}
		files = append(files, p)
	}

	uploader := &fakeUploader{fail: map[string]bool{"bot-1/bot-1-1.wav": true}}
	p := newTestPipeline(t, uploader)

	records := p.uploadChunks(context.Background(), "bot-1", files)
	if len(records) != 3 {
		t.Fatalf("expected 3 chunk records, got %d", len(records))
	}
	if !records[0].Uploaded || records[1].Uploaded || !records[2].Uploaded {
		t.Errorf("unexpected upload outcomes: %+v", records)
	}

	// Successful uploads delete the local file; the forced failure keeps it.
	if _, err := os.Stat(files[0]); !os.IsNotExist(err) {
		t.Error("expected successfully uploaded chunk to be deleted locally")
	}
	if _, err := os.Stat(files[1]); err != nil {
		t.Error("expected failed upload to retain the local chunk file")
	}
}

func TestUploadFinalArtifacts(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "bot-2.mp4")
	audioPath := filepath.Join(dir, "bot-2.wav")
	os.WriteFile(videoPath, []byte("video"), 0o644)
	os.WriteFile(audioPath, []byte("audio"), 0o644)

	uploader := &fakeUploader{}
	p := newTestPipeline(t, uploader)

	audit := &models.RecordingSession{FinalVideoPath: videoPath, FinalAudioPath: audioPath}
	uploadedChunks := []models.Chunk{
		{Index: 0, Bucket: "temporary-audio", Key: "bot-2/bot-2-0.wav", Uploaded: true},
		{Index: 1, Bucket: "temporary-audio", Key: "bot-2/bot-2-1.wav", Uploaded: false},
	}
	p.uploadFinalArtifacts(context.Background(), "bot-2", audit, uploadedChunks)

	if len(uploader.calls) != 2 {
		t.Fatalf("expected 2 uploads, got %d", len(uploader.calls))
	}
	if _, err := os.Stat(videoPath); !os.IsNotExist(err) {
		t.Error("expected final video to be deleted locally after upload")
	}
	if _, err := os.Stat(audioPath); !os.IsNotExist(err) {
		t.Error("expected final audio to be deleted locally after upload")
	}
	if len(uploader.deletes) != 1 || uploader.deletes[0] != "temporary-audio/bot-2/bot-2-0.wav" {
		t.Errorf("expected only the successfully uploaded chunk to be deleted remotely, got %v", uploader.deletes)
	}
}

func TestUploadFinalArtifactsFailureKeepsLocalCopy(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "bot-3.mp4")
	os.WriteFile(videoPath, []byte("video"), 0o644)

	uploader := &fakeUploader{fail: map[string]bool{"bot-3.mp4": true}}
	p := newTestPipeline(t, uploader)

	audit := &models.RecordingSession{FinalVideoPath: videoPath}
	p.uploadFinalArtifacts(context.Background(), "bot-3", audit, nil)
	if _, err := os.Stat(videoPath); err != nil {
		t.Error("expected local video to survive a failed upload")
	}
}

func TestAudioOnlyCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "raw.wav")
	dst := filepath.Join(dir, "bot-4.wav")
	if err := os.WriteFile(src, []byte("pcm-data"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := copyFile(src, dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "pcm-data" {
		t.Errorf("unexpected content: %q", got)
	}
}

func TestWriteManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot-5-manifest.yaml")

	m := manifest{
		BotID:            "bot-5",
		AudioPaddingSec:  0.15,
		TrimStartSec:     11.2,
		FinalDurationSec: 118,
		Chunks:           []string{"bot-5/bot-5-0.wav"},
	}
	if err := writeManifest(path, m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty manifest file")
	}
}
