package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"local-chat-assistant/internal/domain"
	"local-chat-assistant/internal/domain/model"
	"local-chat-assistant/internal/domain/ports/repository"
	"local-chat-assistant/internal/infra/logging"
	"local-chat-assistant/internal/infra/metrics"
)

// workspace is the chat state of one interactive user.
type workspace struct {
	mu       sync.Mutex
	store    *model.SessionStore
	lastUsed time.Time
	evicted  bool
}

// WorkspaceRegistry maps workspace IDs to their SessionStore. Access to a
// single workspace is serialized; different workspaces proceed in parallel.
type WorkspaceRegistry struct {
	mu    sync.Mutex
	items map[string]*workspace

	repo        repository.WorkspaceRepository
	storeOpts   []model.StoreOption
	saveTimeout time.Duration
	now         func() time.Time
	log         *zerolog.Logger
}

// NewWorkspaceRegistry builds a registry. repo may be nil, in which case
// histories live only in memory.
func NewWorkspaceRegistry(repo repository.WorkspaceRepository, logger *zerolog.Logger, opts ...model.StoreOption) *WorkspaceRegistry {
	if logger == nil {
		logger = logging.Nop()
	}
	l := logger.With().Str("component", "workspaces").Logger()
	return &WorkspaceRegistry{
		items:       map[string]*workspace{},
		repo:        repo,
		storeOpts:   opts,
		saveTimeout: 10 * time.Second,
		now:         time.Now,
		log:         &l,
	}
}

// Do runs fn with exclusive access to the workspace's store, loading the
// store from the repository on first use. A failed load is returned as
// domain.ErrUnavailable and nothing is cached, so the next call retries
// instead of overwriting the stored history with an empty store.
func (r *WorkspaceRegistry) Do(ctx context.Context, ws string, fn func(*model.SessionStore) error) error {
	if ws == "" {
		return domain.ErrInvalidArgument
	}
	w := r.acquire(ws)
	defer w.mu.Unlock()

	if w.store == nil {
		store, err := r.load(ctx, ws)
		if err != nil {
			r.forget(ws, w)
			return err
		}
		w.store = store
	}
	w.lastUsed = r.now()
	return fn(w.store)
}

// acquire returns the locked entry for ws.
func (r *WorkspaceRegistry) acquire(ws string) *workspace {
	for {
		w := r.entry(ws)
		w.mu.Lock()
		if !w.evicted {
			return w
		}
		// lost a race with SweepIdle; take the fresh entry
		w.mu.Unlock()
	}
}

// Persist writes the store's snapshot. Failures are logged and counted but
// never surfaced: the in-memory state stays authoritative. The write
// outlives a cancelled request and is bounded by saveTimeout instead, since
// the change it records has already happened in memory.
func (r *WorkspaceRegistry) Persist(ctx context.Context, ws string, store *model.SessionStore) {
	if r.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.saveTimeout)
	defer cancel()
	var err error
	if store.Len() == 0 {
		err = r.repo.Delete(ctx, ws)
	} else {
		err = r.repo.Save(ctx, ws, store.Snapshot())
	}
	if err != nil {
		metrics.IncWorkspacePersistFailure()
		logging.With(ctx, r.log).Error().Err(err).Str("workspace_id", ws).Msg("failed to persist workspace")
	}
}

// Durable reports whether workspaces survive eviction.
func (r *WorkspaceRegistry) Durable() bool { return r.repo != nil }

// Evict drops the in-memory copy of a workspace.
func (r *WorkspaceRegistry) Evict(ws string) {
	r.mu.Lock()
	w, ok := r.items[ws]
	if ok {
		delete(r.items, ws)
	}
	n := len(r.items)
	r.mu.Unlock()

	if ok {
		w.mu.Lock()
		w.evicted = true
		w.mu.Unlock()
	}
	metrics.SetWorkspacesActive(n)
}

// SweepIdle evicts workspaces untouched for longer than maxIdle and returns
// how many were dropped. Workspaces in the middle of a turn are skipped.
// Without a repository the memory copy is the only copy, so nothing is
// evicted.
func (r *WorkspaceRegistry) SweepIdle(maxIdle time.Duration) int {
	if r.repo == nil || maxIdle <= 0 {
		return 0
	}
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, w := range r.items {
		if !w.mu.TryLock() {
			continue
		}
		if w.lastUsed.Before(cutoff) {
			w.evicted = true
			delete(r.items, id)
			evicted++
		}
		w.mu.Unlock()
	}
	metrics.SetWorkspacesActive(len(r.items))
	return evicted
}

func (r *WorkspaceRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *WorkspaceRegistry) entry(ws string) *workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.items[ws]
	if !ok {
		w = &workspace{lastUsed: r.now()}
		r.items[ws] = w
		metrics.SetWorkspacesActive(len(r.items))
	}
	return w
}

// forget drops an entry that never got a store. The caller holds w.mu.
func (r *WorkspaceRegistry) forget(ws string, w *workspace) {
	r.mu.Lock()
	if r.items[ws] == w {
		delete(r.items, ws)
	}
	n := len(r.items)
	r.mu.Unlock()
	w.evicted = true
	metrics.SetWorkspacesActive(n)
}

func (r *WorkspaceRegistry) load(ctx context.Context, ws string) (*model.SessionStore, error) {
	if r.repo == nil {
		return model.NewSessionStore(r.storeOpts...), nil
	}
	snap, err := r.repo.Load(ctx, ws)
	switch {
	case err == nil:
		return model.RestoreSessionStore(snap, r.storeOpts...), nil
	case errors.Is(err, domain.ErrNotFound):
		return model.NewSessionStore(r.storeOpts...), nil
	default:
		logging.With(ctx, r.log).Error().Err(err).Str("workspace_id", ws).Msg("failed to load workspace")
		return nil, fmt.Errorf("%w: load %s: %v", domain.ErrUnavailable, ws, err)
	}
}
