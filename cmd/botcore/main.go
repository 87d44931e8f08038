// Command botcore is the entrypoint for one bot process: it wires
// configuration, storage, the audit-trail database, and the capture session
// together, then serves the read-only status API until asked to stop. Each
// process owns exactly one capture session.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/botcore/internal/capture"
	"github.com/example/botcore/internal/cleanup"
	"github.com/example/botcore/internal/config"
	"github.com/example/botcore/internal/contracts"
	"github.com/example/botcore/internal/db"
	"github.com/example/botcore/internal/events"
	"github.com/example/botcore/internal/mediatool"
	"github.com/example/botcore/internal/metrics"
	"github.com/example/botcore/internal/paths"
	"github.com/example/botcore/internal/postprocess"
	"github.com/example/botcore/internal/statusapi"
	"github.com/example/botcore/internal/storage"
	"github.com/example/botcore/internal/syncplan"
)

// noopMeetingPage stands in for the browser-automation layer, which this
// core never implements. A real deployment injects its own
// contracts.MeetingPage implementation here.
type noopMeetingPage struct{}

func (noopMeetingPage) RequestSyncTone(ctx context.Context) error {
	log.Println("⚠️ noopMeetingPage: sync tone request has no browser to reach")
	return nil
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	botID := flag.String("bot-id", "", "unique identifier for this capture session")
	flag.Parse()
	if *botID == "" {
		log.Fatal("❌ -bot-id is required")
	}

	log.Printf("🚀 Starting botcore for bot %s", *botID)

	cfg := config.Load()
	metrics.Register()

	store, err := storage.New(cfg)
	if err != nil {
		log.Fatalf("❌ storage init: %v", err)
	}

	audit, err := db.New(cfg)
	if err != nil {
		log.Fatalf("❌ database init: %v", err)
	}
	if err := audit.AutoMigrate(); err != nil {
		log.Fatalf("❌ database migration: %v", err)
	}

	pm := paths.New(cfg, *botID)
	for _, dir := range []string{pm.TempDir(), pm.OutDir(), pm.ScreenshotDir(), pm.ChunksDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("❌ create %s: %v", dir, err)
		}
	}

	runner := mediatool.New()
	planner := syncplan.New(runner, syncplan.Params{
		Tone: syncplan.ToneSpec{
			DurationMs:  cfg.Sync.ToneDurationMs,
			FrequencyHz: cfg.Sync.ToneFrequencyHz,
			Amplitude:   cfg.Sync.ToneAmplitude,
		},
		ToleranceMs:        cfg.Sync.ToleranceMs,
		TooEarlySeconds:    cfg.Sync.TooEarlySeconds,
		FallbackTailMs:     cfg.Sync.FallbackTailMs,
		FlashScreenSleepMs: cfg.Capture.FlashScreenSleepMs,
		ArchiveSampleRate:  cfg.Capture.ArchiveSampleRate,
	})

	pipeline := postprocess.New(runner, planner, store, audit, cfg)

	captureCfg := capture.FromAppConfig(cfg)
	var sink contracts.StreamingSink // no real-time transcription sink wired by default
	session := capture.New(captureCfg, pm, noopMeetingPage{}, sink, pipeline)

	statusSrv := statusapi.New(cfg, session)
	go func() {
		if err := statusSrv.Run(); err != nil {
			log.Printf("⚠️ status server exited: %v", err)
		}
	}()

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()
	if err := session.Start(startCtx); err != nil {
		log.Fatalf("❌ capture start: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sessionDone := make(chan struct{})
	go func() {
		defer close(sessionDone)
		for ev := range session.Events() {
			log.Printf("session event: %s", ev.Kind)
			if ev.Kind == events.KindStopped {
				return
			}
		}
	}()

	coordinator := cleanup.New(cleanup.Config{
		Session:       session,
		GlobalTimeout: time.Duration(cfg.Server.CleanupTimeoutSeconds) * time.Second,
		StepTimeout:   time.Duration(cfg.Server.CleanupStepTimeoutSeconds) * time.Second,
	})

	select {
	case sig := <-sigCh:
		log.Printf("🛑 received %s, starting shutdown", sig)
		if err := coordinator.Shutdown(context.Background()); err != nil {
			log.Printf("⚠️ shutdown error: %v", err)
		}
	case <-sessionDone:
		log.Println("session reached a terminal state on its own")
	}

	log.Println("✅ botcore exiting")
}
