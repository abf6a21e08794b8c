package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/metrics"
	"github.com/robfig/cron/v3"
)

// cycleTimeout bounds one evaluation cycle so a stuck collaborator
// cannot pile up overlapping runs.
const cycleTimeout = 5 * time.Minute

// Sweeper prunes invalid push endpoints.
type Sweeper interface {
	SweepAll(ctx context.Context) []string
}

// Scheduler drives the evaluation cycle and the endpoint sweep on cron
// cadences.
type Scheduler struct {
	cron    *cron.Cron
	cycle   *Cycle
	sweeper Sweeper
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewScheduler creates a scheduler. sweeper may be nil when the push
// channel is disabled; the sweep job is then not registered.
func NewScheduler(cycle *Cycle, sweeper Sweeper, logger *slog.Logger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		cycle:   cycle,
		sweeper: sweeper,
		logger:  logger,
		metrics: m,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start(cycleSpec, sweepSpec string) error {
	if _, err := s.cron.AddFunc(cycleSpec, s.runCycle); err != nil {
		return fmt.Errorf("schedule evaluation cycle %q: %w", cycleSpec, err)
	}
	if s.sweeper != nil {
		if _, err := s.cron.AddFunc(sweepSpec, s.runSweep); err != nil {
			return fmt.Errorf("schedule endpoint sweep %q: %w", sweepSpec, err)
		}
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "cycle_schedule", cycleSpec, "sweep_schedule", sweepSpec)
	return nil
}

// Stop halts scheduling and returns a context that is done once running
// jobs have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runCycle() {
	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	outcome, err := s.cycle.Run(ctx)
	if err != nil {
		s.logger.Error("evaluation cycle failed", "error", err)
		return
	}
	if outcome != nil {
		s.logger.Info("evaluation cycle alerted",
			"channels", outcome.ChannelsSucceeded,
			"fallback", outcome.FallbackUsed,
			"retries", outcome.RetryCount)
	}
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	removed := s.sweeper.SweepAll(ctx)
	s.metrics.AddSweepRemoved(len(removed))
	if len(removed) > 0 {
		s.logger.Info("endpoint sweep removed invalid registrations", "count", len(removed))
	}
}
