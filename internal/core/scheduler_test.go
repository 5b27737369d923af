package core

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

// historyStub is a HistoryStore that remembers the prune cutoff.
type historyStub struct {
	HistoryStore
	cutoffs chan time.Time
	pruned  int64
}

func (h *historyStub) PruneHistory(_ context.Context, cutoff time.Time) (int64, error) {
	select {
	case h.cutoffs <- cutoff:
	default:
	}
	return h.pruned, nil
}

func (h *historyStub) ListHistory(context.Context, uuid.UUID) ([]HistoryRecord, error) {
	return nil, nil
}

func TestPruneHistory(t *testing.T) {
	stub := &historyStub{cutoffs: make(chan time.Time, 1), pruned: 3}
	s := &Service{history: stub}

	before := time.Now()
	if got := s.PruneHistory(context.Background(), time.Hour); got != 3 {
		t.Errorf("PruneHistory() = %d, want 3", got)
	}
	cutoff := <-stub.cutoffs
	if want := before.Add(-time.Hour); cutoff.Before(want.Add(-time.Second)) || cutoff.After(time.Now().Add(-time.Hour)) {
		t.Errorf("cutoff = %v, want about %v", cutoff, want)
	}
}

func TestStartHistoryPruner_Disabled(t *testing.T) {
	stub := &historyStub{cutoffs: make(chan time.Time, 1)}
	s := &Service{history: stub}

	s.StartHistoryPruner(context.Background(), RetentionConfig{})
	select {
	case <-stub.cutoffs:
		t.Error("pruner with zero MaxAge should not prune")
	default:
	}
}

func TestStartHistoryPruner_StopsOnCancel(t *testing.T) {
	stub := &historyStub{cutoffs: make(chan time.Time, 16)}
	s := &Service{history: stub}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.StartHistoryPruner(ctx, RetentionConfig{MaxAge: time.Hour, CheckInterval: time.Millisecond})
		close(done)
	}()

	<-stub.cutoffs // initial run
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner did not stop after cancel")
	}
}
