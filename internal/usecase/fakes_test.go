//go:build !integration

package usecase_test

import (
	"context"
	"sync"
	"time"

	"local-chat-assistant/internal/domain"
	"local-chat-assistant/internal/domain/model"
	"local-chat-assistant/internal/domain/ports/adapter"
	"local-chat-assistant/internal/domain/ports/repository"
)

// ---- Inference adapter ----

type fakeAI struct {
	mu sync.Mutex

	GenerateFunc func(ctx context.Context, model, prompt string) (string, error)
	Prompts      []string
}

var _ adapter.InferenceAdapter = (*fakeAI)(nil)

func (f *fakeAI) Name() string { return "fake" }

func (f *fakeAI) ListModels(ctx context.Context) ([]string, error) {
	return []string{"fake-model"}, nil
}

func (f *fakeAI) Generate(ctx context.Context, model, prompt string) (string, error) {
	f.mu.Lock()
	f.Prompts = append(f.Prompts, prompt)
	f.mu.Unlock()
	if f.GenerateFunc != nil {
		return f.GenerateFunc(ctx, model, prompt)
	}
	return "reply to: " + prompt, nil
}

// blockingAI waits for the context deadline.
func blockingAI() *fakeAI {
	return &fakeAI{GenerateFunc: func(ctx context.Context, model, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
}

// ---- Workspace repository ----

// memWorkspaceRepo honours ctx cancellation like a real driver would.
type memWorkspaceRepo struct {
	mu      sync.Mutex
	byID    map[string]*model.Snapshot
	saves   int
	deletes int
	SaveErr error
	LoadErr error
}

var _ repository.WorkspaceRepository = (*memWorkspaceRepo)(nil)

func newMemWorkspaceRepo() *memWorkspaceRepo {
	return &memWorkspaceRepo{byID: map[string]*model.Snapshot{}}
}

func (m *memWorkspaceRepo) Load(ctx context.Context, ws string) (*model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s, ok := m.byID[ws]; ok {
		return s, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memWorkspaceRepo) Save(ctx context.Context, ws string, snap *model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.byID[ws] = snap
	return nil
}

func (m *memWorkspaceRepo) Delete(ctx context.Context, ws string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	if err := ctx.Err(); err != nil {
		return err
	}
	delete(m.byID, ws)
	return nil
}

func (m *memWorkspaceRepo) stored(ws string) *model.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[ws]
}

// ---- Rate limiter / locker ----

type countingLimiter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (l *countingLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts == nil {
		l.counts = map[string]int{}
	}
	l.counts[key]++
	return l.counts[key] <= limit, nil
}

type recordingLocker struct {
	mu       sync.Mutex
	held     map[string]string
	Locked   []string
	Unlocked []string
}

func (l *recordingLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]string{}
	}
	if _, busy := l.held[key]; busy {
		return "", domain.ErrTurnInProgress
	}
	l.held[key] = "tok-" + key
	l.Locked = append(l.Locked, key)
	return l.held[key], nil
}

func (l *recordingLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	l.Unlocked = append(l.Unlocked, key)
	return nil
}
