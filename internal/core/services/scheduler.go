package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
	"github.com/custodia-labs/traceq/internal/core/ports/driving"
	"github.com/custodia-labs/traceq/internal/logger"
)

var _ driving.RetentionScheduler = (*Scheduler)(nil)

// Scheduler runs the retention jobs on a cron schedule.
type Scheduler struct {
	versions *VersionService
	store    driven.VersionStore
	tasks    *TaskManager
	settings domain.RetentionSettings

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
	last    map[string]domain.JobResult
}

// NewScheduler creates a scheduler. tasks may be nil when task pruning is
// not wanted.
func NewScheduler(
	versions *VersionService,
	store driven.VersionStore,
	tasks *TaskManager,
	settings domain.RetentionSettings,
) *Scheduler {
	return &Scheduler{
		versions: versions,
		store:    store,
		tasks:    tasks,
		settings: settings,
		last:     make(map[string]domain.JobResult),
	}
}

// ParseSchedule validates a cron expression. Standard five-field
// expressions and descriptors such as @daily are accepted.
func ParseSchedule(expr string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid schedule %q: %w", domain.ErrInvalidInput, expr, err)
	}
	return sched, nil
}

// Start registers the retention job and starts the cron runner. An empty
// schedule leaves the scheduler idle.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if s.settings.Schedule == "" {
		logger.Debug("retention schedule empty, scheduler disabled")
		return nil
	}

	sched, err := ParseSchedule(s.settings.Schedule)
	if err != nil {
		return err
	}

	s.cron = cron.New()
	s.cron.Schedule(sched, cron.FuncJob(func() {
		s.RunOnce(context.Background())
	}))
	s.cron.Start()
	s.running = true

	logger.Info("scheduler started", "schedule", s.settings.Schedule,
		"older_than_days", s.settings.OlderThanDays, "task_ttl", s.settings.TaskTTL)
	return nil
}

// Stop halts the cron runner and waits for a job in progress.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	c := s.cron
	s.mu.Unlock()

	<-c.Stop().Done()
	logger.Info("scheduler stopped")
}

// RunOnce executes every enabled job immediately.
func (s *Scheduler) RunOnce(ctx context.Context) []domain.JobResult {
	var results []domain.JobResult
	if s.settings.OlderThanDays > 0 {
		results = append(results, s.runJob(ctx, domain.JobVersionRetention, s.runRetention))
	}
	if s.settings.TaskTTL > 0 && s.tasks != nil {
		results = append(results, s.runJob(ctx, domain.JobTaskPrune, func(ctx context.Context) (int, error) {
			return s.tasks.Prune(ctx, s.settings.TaskTTL)
		}))
	}
	return results
}

func (s *Scheduler) runJob(
	ctx context.Context, id string, fn func(context.Context) (int, error),
) domain.JobResult {
	result := domain.JobResult{JobID: id, StartedAt: time.Now()}
	n, err := fn(ctx)
	result.EndedAt = time.Now()
	result.ItemsProcessed = n
	if err != nil {
		result.Error = err.Error()
		logger.Warn("scheduled job failed", "job", id, "error", err)
	} else {
		result.Success = true
		logger.Debug("scheduled job completed", "job", id, "items", n)
	}

	s.mu.Lock()
	s.last[id] = result
	s.mu.Unlock()
	return result
}

// runRetention cleans every journey that owns versions. One failing
// journey does not stop the others.
func (s *Scheduler) runRetention(ctx context.Context) (int, error) {
	journeys, err := s.store.ListVersionJourneys(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing journeys: %w", err)
	}

	total := 0
	var firstErr error
	for _, j := range journeys {
		n, err := s.versions.Cleanup(ctx, j, s.settings.OlderThanDays)
		total += n
		if err != nil {
			logger.Warn("retention failed", "journey", j, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("journey %s: %w", j, err)
			}
		}
	}
	return total, firstErr
}

// LastResults returns the most recent result of each job that has run.
func (s *Scheduler) LastResults() []domain.JobResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.JobResult, 0, len(s.last))
	for _, id := range []string{domain.JobVersionRetention, domain.JobTaskPrune} {
		if r, ok := s.last[id]; ok {
			out = append(out, r)
		}
	}
	return out
}
