package syncplan

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeString(f *os.File, s string) { f.Write([]byte(s)) }

func writeUint32(f *os.File, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	f.Write(b[:])
}

func writeUint16(f *os.File, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	f.Write(b[:])
}

func TestFindTone(t *testing.T) {
	const sampleRate = 44100
	tone := DefaultToneSpec()
	reference := tone.Generate(sampleRate)

	// Build a signal: 2s of silence, then the tone, then 3s of silence.
	silenceBefore := make([]float64, 2*sampleRate)
	silenceAfter := make([]float64, 3*sampleRate)
	signal := append(append(append([]float64{}, silenceBefore...), reference...), silenceAfter...)

	offset, ok := findTone(signal, reference, sampleRate)
	if !ok {
		t.Fatal("expected to find tone")
	}
	if math.Abs(offset-2.0) > 0.05 {
		t.Errorf("expected offset ~2.0s, got %v", offset)
	}
}

func TestFindToneNotPresent(t *testing.T) {
	const sampleRate = 44100
	tone := DefaultToneSpec()
	reference := tone.Generate(sampleRate)
	silence := make([]float64, 5*sampleRate)

	_, ok := findTone(silence, reference, sampleRate)
	if ok {
		t.Error("expected tone not to be found in silence")
	}
}

func writeTestWav(t *testing.T, path string, samples []float64, sampleRate int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	dataSize := len(samples) * 2
	writeString(f, "RIFF")
	writeUint32(f, uint32(36+dataSize))
	writeString(f, "WAVE")
	writeString(f, "fmt ")
	writeUint32(f, 16)
	writeUint16(f, 1) // PCM
	writeUint16(f, 1) // mono
	writeUint32(f, uint32(sampleRate))
	writeUint32(f, uint32(sampleRate*2))
	writeUint16(f, 2)
	writeUint16(f, 16)
	writeString(f, "data")
	writeUint32(f, uint32(dataSize))
	for _, s := range samples {
		v := int16(s * 32767)
		writeUint16(f, uint16(v))
	}
}

func TestComputeOffsetAudioOnly(t *testing.T) {
	dir := t.TempDir()
	const sampleRate = 44100
	tone := DefaultToneSpec()
	reference := tone.Generate(sampleRate)

	silence := make([]float64, int(1.5*sampleRate))
	signal := append(append([]float64{}, silence...), reference...)

	audioPath := filepath.Join(dir, "raw.wav")
	writeTestWav(t, audioPath, signal, sampleRate)

	p := New(nil, Params{Tone: tone, ArchiveSampleRate: sampleRate})
	audioToneTime, videoToneTime, err := p.ComputeOffset(context.Background(), audioPath, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(audioToneTime-1.5) > 0.05 {
		t.Errorf("expected audioToneTime ~1.5, got %v", audioToneTime)
	}
	if audioToneTime != videoToneTime {
		t.Errorf("expected equal fallback when no video path given")
	}
}

func TestBuildPlanCleanSession(t *testing.T) {
	p := New(nil, Params{
		TooEarlySeconds:    10,
		FallbackTailMs:     5000,
		FlashScreenSleepMs: 6000,
	})

	recordingStart := time.UnixMilli(1_000_000)
	meetingStart := time.UnixMilli(1_010_000)
	now := recordingStart.Add(time.Minute)

	plan, err := p.BuildPlan(7.05, 7.20, recordingStart, meetingStart, now, time.Minute, 120, 118)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(plan.AudioPadding-0.15) > 1e-9 {
		t.Errorf("expected audioPadding 0.15, got %v", plan.AudioPadding)
	}
	if math.Abs(plan.TrimStart-11.20) > 1e-9 {
		t.Errorf("expected trimStart 11.20, got %v", plan.TrimStart)
	}
	if math.Abs(plan.FinalDuration-(120-11.20)) > 1e-9 {
		t.Errorf("expected finalDuration bounded by videoDuration-trimStart (108.8), got %v", plan.FinalDuration)
	}
}

func TestBuildPlanVideoSlightlyBehind(t *testing.T) {
	p := New(nil, Params{TooEarlySeconds: 10, FallbackTailMs: 5000, FlashScreenSleepMs: 6000})
	recordingStart := time.UnixMilli(0)
	meetingStart := time.UnixMilli(6000)
	now := recordingStart.Add(time.Minute)

	plan, err := p.BuildPlan(7.10, 6.90, recordingStart, meetingStart, now, time.Minute, 120, 120)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(plan.AudioPadding-(-0.2)) > 1e-9 {
		t.Errorf("expected audioPadding -0.2, got %v", plan.AudioPadding)
	}
}

func TestBuildPlanFallback(t *testing.T) {
	p := New(nil, Params{TooEarlySeconds: 10, FallbackTailMs: 5000, FlashScreenSleepMs: 6000})
	recordingStart := time.UnixMilli(0)
	now := recordingStart.Add(25 * time.Second)

	plan, err := p.BuildPlan(1.0, 1.0, recordingStart, time.Time{}, now, 25*time.Second, 30, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.FinalDuration <= 0 {
		t.Errorf("expected positive final duration under fallback, got %v", plan.FinalDuration)
	}
}

func TestBuildPlanTooEarly(t *testing.T) {
	p := New(nil, Params{TooEarlySeconds: 10, FallbackTailMs: 5000, FlashScreenSleepMs: 6000})
	recordingStart := time.UnixMilli(0)
	now := recordingStart.Add(5 * time.Second)

	_, err := p.BuildPlan(1.0, 1.0, recordingStart, time.Time{}, now, 5*time.Second, 10, 10)
	if err == nil {
		t.Fatal("expected BotRemovedTooEarly error")
	}
	if _, ok := err.(*TooEarlyError); !ok {
		t.Errorf("expected *TooEarlyError, got %T", err)
	}
}

func TestCheckResidual(t *testing.T) {
	p := New(nil, Params{ToleranceMs: 50})
	if err := p.CheckResidual(1.0, 1.02); err != nil {
		t.Errorf("expected within tolerance, got %v", err)
	}
	if err := p.CheckResidual(1.0, 1.2); err == nil {
		t.Error("expected out-of-tolerance error")
	}
}

func TestSyncErrorUnwraps(t *testing.T) {
	cause := &OutOfToleranceError{Residual: 200 * time.Millisecond, Tolerance: 50 * time.Millisecond}
	err := &SyncError{Cause: cause}

	if err.Error() != cause.Error() {
		t.Errorf("expected SyncError to delegate Error() to its cause")
	}
	var target *OutOfToleranceError
	if !errors.As(err, &target) {
		t.Error("expected errors.As to unwrap SyncError down to *OutOfToleranceError")
	}
}
