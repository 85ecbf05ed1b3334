package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BTreeMap/LineConcierge/internal/store"
)

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	if err := s.AddJob("* * * * *", func() {}); err != nil {
		t.Errorf("Expected no error adding job, got %v", err)
	}
	if err := s.AddJob("not a cron", func() {}); err == nil {
		t.Error("Expected error for invalid expression")
	}
}

func TestScheduleDedupPrune(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	st := store.NewInMemoryStore()
	if err := s.ScheduleDedupPrune(DefaultPruneSchedule, st, 0); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := s.ScheduleDedupPrune("@every", st, time.Hour); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestPruneDedupUsesRetention(t *testing.T) {
	st := store.NewInMemoryStore()
	if _, err := st.RecordInbound(context.Background(), "evt-1", "U1"); err != nil {
		t.Fatalf("RecordInbound: %v", err)
	}

	if n := PruneDedup(context.Background(), st, time.Hour, time.Now()); n != 0 {
		t.Errorf("fresh record pruned: %d", n)
	}
	if n := PruneDedup(context.Background(), st, time.Hour, time.Now().Add(2*time.Hour)); n != 1 {
		t.Errorf("expected one record pruned, got %d", n)
	}
	if dup, _ := st.IsDuplicate(context.Background(), "evt-1"); dup {
		t.Error("record should be gone")
	}
}

type failingDedup struct{ store.DedupRepo }

func (failingDedup) PruneDedup(context.Context, time.Time) (int64, error) { return 0, errors.New("db down") }

func TestPruneDedupError(t *testing.T) {
	if n := PruneDedup(context.Background(), failingDedup{}, time.Hour, time.Now()); n != 0 {
		t.Errorf("expected 0 on error, got %d", n)
	}
}
