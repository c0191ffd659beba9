package sched

import (
	"context"
	"time"

	"local-chat-assistant/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// IdleSweeper drops workspaces that have been idle for longer than maxIdle.
type IdleSweeper interface {
	SweepIdle(maxIdle time.Duration) int
}

// IdleWorker periodically evicts idle workspaces from memory.
type IdleWorker struct {
	interval time.Duration
	maxIdle  time.Duration
	reg      IdleSweeper
	log      *zerolog.Logger
}

func NewIdleWorker(interval, maxIdle time.Duration, reg IdleSweeper, logger *zerolog.Logger) *IdleWorker {
	compLog := logger.With().Str("component", "IdleWorker").Logger()
	return &IdleWorker{
		interval: interval,
		maxIdle:  maxIdle,
		reg:      reg,
		log:      &compLog,
	}
}

func (w *IdleWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("max_idle", w.maxIdle).Msg("Starting idle worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping idle worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *IdleWorker) sweep() {
	if n := w.reg.SweepIdle(w.maxIdle); n > 0 {
		metrics.IncWorkspacesEvicted(n)
		w.log.Info().Int("count", n).Msg("idle workspaces evicted")
	}
}
