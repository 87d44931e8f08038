package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLocalProviderPutAndExists(t *testing.T) {
	root := t.TempDir()
	p := NewLocalProvider(root)

	body := strings.NewReader("pcm-data")
	if err := p.Put("temporary-audio", "bot-1-0.wav", body, "audio/wav", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := p.Exists("temporary-audio", "bot-1-0.wav")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected object to exist after Put")
	}

	if _, err := os.Stat(filepath.Join(root, "temporary-audio", "bot-1-0.wav.expires")); !os.IsNotExist(err) {
		t.Error("expected no expiry sidecar for a zero-ttl put")
	}
}

func TestLocalProviderPutWithTTLWritesSidecar(t *testing.T) {
	root := t.TempDir()
	p := NewLocalProvider(root)

	if err := p.Put("temporary-audio", "bot-1-0.wav", strings.NewReader("pcm"), "audio/wav", time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "temporary-audio", "bot-1-0.wav.expires"))
	if err != nil {
		t.Fatalf("expected expiry sidecar: %v", err)
	}
	if _, err := time.Parse(time.RFC3339, string(data)); err != nil {
		t.Errorf("expected RFC3339 expiry timestamp, got %q: %v", data, err)
	}
}

func TestLocalProviderDeleteRemovesSidecar(t *testing.T) {
	root := t.TempDir()
	p := NewLocalProvider(root)

	if err := p.Put("temporary-audio", "bot-1-0.wav", strings.NewReader("pcm"), "audio/wav", time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Delete("temporary-audio", "bot-1-0.wav"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ok, _ := p.Exists("temporary-audio", "bot-1-0.wav"); ok {
		t.Error("expected object to be gone after Delete")
	}
	if _, err := os.Stat(filepath.Join(root, "temporary-audio", "bot-1-0.wav.expires")); !os.IsNotExist(err) {
		t.Error("expected expiry sidecar to be removed alongside the object")
	}
}

func TestLocalProviderDeleteMissingIsNotAnError(t *testing.T) {
	p := NewLocalProvider(t.TempDir())
	if err := p.Delete("video", "missing.mp4"); err != nil {
		t.Errorf("expected deleting an already-absent object to succeed, got %v", err)
	}
}

func TestLocalProviderExistsMissing(t *testing.T) {
	p := NewLocalProvider(t.TempDir())
	ok, err := p.Exists("video", "missing.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected Exists to report false for a missing object")
	}
}
