// Package worker provides the background adaptation sweep: a ticker that
// periodically folds recent feedback into user profile embeddings.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oppmatch/engine/internal/models"
)

// BatchAdapter runs one batch adaptation round.
type BatchAdapter interface {
	BatchApplyFeedback(ctx context.Context, maxUsers int) (*models.AdaptOutcome, error)
}

// AdaptationScheduler invokes the batch adapter on a fixed interval. Rounds
// never overlap: a tick that fires while the previous round is still running
// is skipped by virtue of the single goroutine.
type AdaptationScheduler struct {
	adapter  BatchAdapter
	interval time.Duration
	maxUsers int
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// AdaptationSchedulerParams configures an AdaptationScheduler.
type AdaptationSchedulerParams struct {
	Adapter  BatchAdapter
	Interval time.Duration
	// MaxUsers caps each round; zero means the adapter's default.
	MaxUsers int
	Logger   *slog.Logger
}

// NewAdaptationScheduler creates a scheduler. Call Start to begin sweeping.
func NewAdaptationScheduler(p AdaptationSchedulerParams) *AdaptationScheduler {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AdaptationScheduler{
		adapter:  p.Adapter,
		interval: p.Interval,
		maxUsers: p.MaxUsers,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. The first round runs after one full
// interval, not immediately, so a crash-looping process does not hammer the
// database on every boot.
func (s *AdaptationScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()

		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
	s.mu.Unlock()

	go s.run(ctx)

	s.logger.Info("adaptation sweep started", "interval", s.interval)
}

// Stop cancels the loop and waits for an in-flight round to finish. Stopping
// a scheduler that was never started returns immediately.
func (s *AdaptationScheduler) Stop() {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	if !started {
		return
	}

	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

func (s *AdaptationScheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *AdaptationScheduler) sweep(ctx context.Context) {
	start := time.Now()

	outcome, err := s.adapter.BatchApplyFeedback(ctx, s.maxUsers)
	if err != nil {
		s.logger.Error("adaptation sweep failed", "error", err)

		return
	}

	s.logger.Info("adaptation sweep finished",
		"total", outcome.Total,
		"updated", outcome.Updated,
		"failed", outcome.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
