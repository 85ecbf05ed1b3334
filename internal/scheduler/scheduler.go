// Package scheduler runs periodic maintenance jobs for LineConcierge.
//
// Jobs are registered with 5-field cron expressions. The server binary uses it
// to keep the inbound dedup table bounded.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/BTreeMap/LineConcierge/internal/store"
)

// Defaults for dedup pruning.
const (
	DefaultPruneSchedule  = "17 * * * *"
	DefaultDedupRetention = 72 * time.Hour
	pruneTimeout          = time.Minute
)

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// ScheduleDedupPrune removes dedup records older than retention on every tick of expr.
func (s *Scheduler) ScheduleDedupPrune(expr string, repo store.DedupRepo, retention time.Duration) error {
	if retention <= 0 {
		retention = DefaultDedupRetention
	}
	job := func() {
		ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
		defer cancel()
		PruneDedup(ctx, repo, retention, time.Now())
	}
	if err := s.AddJob(expr, job); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", expr, err)
	}
	slog.Info("Scheduler.ScheduleDedupPrune: dedup pruning scheduled", "schedule", expr, "retention", retention)
	return nil
}

// PruneDedup deletes records received more than retention before now.
func PruneDedup(ctx context.Context, repo store.DedupRepo, retention time.Duration, now time.Time) int64 {
	n, err := repo.PruneDedup(ctx, now.Add(-retention))
	if err != nil {
		slog.Error("Scheduler.PruneDedup: prune failed", "error", err)
		return 0
	}
	if n > 0 {
		slog.Info("Scheduler.PruneDedup: pruned dedup records", "count", n)
	}
	return n
}
