//go:build !integration

package sched

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"local-chat-assistant/internal/infra/logging"
)

type fakeSweeper struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (f *fakeSweeper) SweepIdle(maxIdle time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, maxIdle)
	return 1
}

func (f *fakeSweeper) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestIdleWorker_Run(t *testing.T) {
	sw := &fakeSweeper{}
	w := NewIdleWorker(5*time.Millisecond, time.Hour, sw, logging.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the context error, got %v", err)
	}
	if sw.count() == 0 {
		t.Fatal("expected at least one sweep")
	}
	if sw.calls[0] != time.Hour {
		t.Errorf("expected max idle to be passed through, got %s", sw.calls[0])
	}
}

type fakePurger struct {
	before time.Time
	err    error
}

func (f *fakePurger) DeleteUpdatedBefore(ctx context.Context, before time.Time) (int64, error) {
	f.before = before
	return 2, f.err
}

func TestRetentionWorker_Purge(t *testing.T) {
	p := &fakePurger{}
	w := NewRetentionWorker(time.Hour, 24*time.Hour, p, logging.Nop())
	fixed := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	w.runPurge(context.Background())
	if want := fixed.Add(-24 * time.Hour); !p.before.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, p.before)
	}

	p.err = errors.New("db down")
	w.runPurge(context.Background()) // logged, not fatal
}
