// Package cleanup implements shutdown orchestration across the capture
// session and its best-effort teardown collaborators.
package cleanup

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/example/botcore/internal/capture"
	"github.com/example/botcore/internal/contracts"
	"github.com/example/botcore/internal/metrics"
)

// TimeoutError reports that the global wall-clock budget elapsed before
// the capture session reached a terminal state.
type TimeoutError struct{}

func (*TimeoutError) Error() string { return "cleanup: global timeout elapsed" }

// StepTimeoutError reports that one best-effort parallel step didn't
// finish within its own per-step budget. Non-fatal — recorded, not
// returned, since that step is explicitly best-effort.
type StepTimeoutError struct {
	Step string
}

func (e *StepTimeoutError) Error() string {
	return fmt.Sprintf("cleanup: step %s timed out", e.Step)
}

// Config bundles the collaborators a Coordinator drives through shutdown.
// Every collaborator field, Session included, is optional; a nil
// collaborator is simply skipped. The two timeouts must be set.
type Config struct {
	Session     *capture.Session
	Sink        contracts.StreamingSink
	Dialog      contracts.DialogObserver
	Speakers    contracts.SpeakersObserver
	HTMLCleaner contracts.HTMLCleaner
	Branding    contracts.BrandingProcess
	Page        contracts.BrowserPage
	Timers      []*time.Timer

	GlobalTimeout time.Duration
	StepTimeout   time.Duration
}

type Coordinator struct {
	cfg Config
}

func New(cfg Config) *Coordinator {
	return &Coordinator{cfg: cfg}
}

// Shutdown runs the full teardown sequence. Any failure short-circuits to
// the terminal state; cleanup never loops.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.GlobalTimeout)
	defer cancel()

	// Step 0: best-effort, non-blocking.
	if c.cfg.Dialog != nil {
		go c.cfg.Dialog.Stop()
	}

	// Step 1: priority — stop the capture session, awaiting completion.
	if err := c.stopSession(ctx); err != nil {
		return err
	}

	// Step 2: parallel, best-effort, per-step timeout.
	c.runParallelSteps(ctx)

	// Step 3: sequential teardown, errors swallowed.
	c.teardownSequential()

	return nil
}

func (c *Coordinator) stopSession(ctx context.Context) error {
	if c.cfg.Session == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- c.cfg.Session.Stop(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("cleanup: stop session: %w", err)
		}
		return nil
	case <-ctx.Done():
		return &TimeoutError{}
	}
}

func (c *Coordinator) runParallelSteps(ctx context.Context) {
	var wg sync.WaitGroup

	if stopper, ok := c.cfg.Sink.(contracts.SinkStopper); ok && stopper != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.runStep(ctx, "sink", stopper.Stop)
		}()
	}

	if c.cfg.Speakers != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.runStep(ctx, "speakers", c.cfg.Speakers.Stop)
		}()
	}

	if c.cfg.HTMLCleaner != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.runStep(ctx, "html_cleaner", c.cfg.HTMLCleaner.Stop)
		}()
	}

	wg.Wait()
}

// runStep bounds one best-effort step to its own per-step timeout. A
// timeout or error here is logged, not propagated — these parallel
// teardown steps are explicitly best-effort.
func (c *Coordinator) runStep(ctx context.Context, step string, fn func(context.Context) error) {
	start := time.Now()
	stepCtx, cancel := context.WithTimeout(ctx, c.cfg.StepTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(stepCtx) }()

	select {
	case err := <-done:
		if err != nil {
			log.Printf("⚠️ cleanup step %s failed: %v", step, err)
		}
	case <-stepCtx.Done():
		log.Printf("⚠️ %v", &StepTimeoutError{Step: step})
	}

	metrics.CleanupStepDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
}

func (c *Coordinator) teardownSequential() {
	if c.cfg.Branding != nil {
		if err := c.cfg.Branding.Terminate(); err != nil {
			log.Printf("⚠️ cleanup: branding terminate: %v", err)
		}
	}

	if c.cfg.Page != nil {
		_ = c.cfg.Page.Close() // error swallowed, this is the last teardown step
	}

	for _, t := range c.cfg.Timers {
		t.Stop()
	}
}
