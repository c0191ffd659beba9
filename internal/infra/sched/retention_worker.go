package sched

import (
	"context"
	"time"

	"local-chat-assistant/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// RetentionWorker purges stored chat histories older than the retention window.
type RetentionWorker struct {
	interval  time.Duration
	retention time.Duration
	purger    repository.WorkspacePurger
	now       func() time.Time
	log       *zerolog.Logger
}

func NewRetentionWorker(interval, retention time.Duration, purger repository.WorkspacePurger, logger *zerolog.Logger) *RetentionWorker {
	compLog := logger.With().Str("component", "RetentionWorker").Logger()
	return &RetentionWorker{
		interval:  interval,
		retention: retention,
		purger:    purger,
		now:       time.Now,
		log:       &compLog,
	}
}

func (w *RetentionWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("retention", w.retention).Msg("Starting retention worker")
	// Run once on startup, then on every tick
	w.runPurge(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping retention worker")
			return ctx.Err()
		case <-ticker.C:
			w.runPurge(ctx)
		}
	}
}

func (w *RetentionWorker) runPurge(ctx context.Context) {
	n, err := w.purger.DeleteUpdatedBefore(ctx, w.now().Add(-w.retention))
	if err != nil {
		w.log.Error().Err(err).Msg("retention purge failed")
		return
	}
	if n > 0 {
		w.log.Info().Int64("count", n).Msg("stale workspaces purged")
	}
}
