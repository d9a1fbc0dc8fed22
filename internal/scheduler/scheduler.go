// Package scheduler drives the discovery pipeline on a fixed interval,
// with a single-flight guard so a slow tick is never overlapped by the
// next one.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

// Config controls the scheduler's timing.
type Config struct {
	// ScanInterval is the time between the start of one tick and the
	// next.
	ScanInterval time.Duration
	// TickTimeout bounds how long a single tick may run before its
	// context is cancelled.
	TickTimeout time.Duration
	// FailureBackoff is the fixed pause after a tick returns an error;
	// once it has passed, the loop resumes its ScanInterval cadence.
	FailureBackoff time.Duration
}

// DefaultConfig returns sane defaults: scan hourly, bound a tick to 10
// minutes, and back off 10 seconds after a failed tick.
func DefaultConfig() Config {
	return Config{
		ScanInterval:   time.Hour,
		TickTimeout:    10 * time.Minute,
		FailureBackoff: 10 * time.Second,
	}
}

// TickFunc runs one pass of the pipeline and reports what happened.
type TickFunc func(ctx context.Context) error

// Scheduler runs a TickFunc on a fixed interval, firing an immediate
// first tick on Start.
type Scheduler struct {
	tick   TickFunc
	config Config
	logger *log.Logger

	mu      sync.Mutex
	running bool
	started bool
	cancel  context.CancelFunc

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New builds a Scheduler around tick.
func New(tick TickFunc, cfg Config, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.ScanInterval <= 0 {
		cfg = DefaultConfig()
	}
	return &Scheduler{
		tick:   tick,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start runs the scheduling loop in the background. It fires an
// immediate first tick, then one tick per ScanInterval until Stop is
// called or ctx is cancelled. After a failed tick it first pauses for
// FailureBackoff before going back to that cadence.
func (s *Scheduler) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.started = true
	s.cancel = cancel
	s.mu.Unlock()
	go s.loop(runCtx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.ScanInterval)
	defer ticker.Stop()

	s.runAndBackoff(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runAndBackoff(ctx)
		}
	}
}

// runAndBackoff runs one tick; a failed tick sleeps FailureBackoff
// before the loop resumes its regular cadence, so a persistently
// failing pipeline can't busy-loop.
func (s *Scheduler) runAndBackoff(ctx context.Context) {
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Printf("scheduler: tick failed: %v", err)
		select {
		case <-ctx.Done():
		case <-s.stopCh:
		case <-time.After(s.config.FailureBackoff):
		}
	}
}

// RunOnce runs a single tick immediately, honoring the single-flight
// guard: if a tick is already in progress, it returns nil without
// doing anything.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Printf("scheduler: tick already in progress, skipping")
		return nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	tickCtx := ctx
	if s.config.TickTimeout > 0 {
		var cancel context.CancelFunc
		tickCtx, cancel = context.WithTimeout(ctx, s.config.TickTimeout)
		defer cancel()
	}

	start := time.Now()
	err := s.tick(tickCtx)
	elapsed := time.Since(start)
	s.logger.Printf("scheduler: tick finished in %s (err=%v)", elapsed, err)

	// Soft deadline: a tick that runs into the next scheduled fire is
	// worth a warning, but never aborted for it.
	if soft := s.config.ScanInterval - 5*time.Second; soft > 0 && elapsed > soft {
		s.logger.Printf("scheduler: tick took %s, over the %s soft deadline", elapsed, soft)
	}
	return err
}

// IsRunning reports whether a tick is currently in progress.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop signals the loop to exit, cancels the context backing any
// in-flight tick so it unwinds at its next await point rather than
// running to completion, and waits (bounded by that unwind, not by
// TickTimeout) for the loop to finish. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started := s.started
	cancel := s.cancel
	s.mu.Unlock()

	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	if cancel != nil {
		cancel()
	}
	if started {
		<-s.doneCh
	}
}
