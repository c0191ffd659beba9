//go:build !integration

package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"local-chat-assistant/internal/domain"
	"local-chat-assistant/internal/domain/model"
)

// snapshotRepo keeps snapshots in a map; LoadErr fails every Load.
type snapshotRepo struct {
	mu      sync.Mutex
	snaps   map[string]*model.Snapshot
	LoadErr error
}

func newSnapshotRepo() *snapshotRepo {
	return &snapshotRepo{snaps: map[string]*model.Snapshot{}}
}

func (r *snapshotRepo) Load(ctx context.Context, ws string) (*model.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.LoadErr != nil {
		return nil, r.LoadErr
	}
	if s, ok := r.snaps[ws]; ok {
		return s, nil
	}
	return nil, domain.ErrNotFound
}

func (r *snapshotRepo) Save(ctx context.Context, ws string, snap *model.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps[ws] = snap
	return nil
}

func (r *snapshotRepo) Delete(ctx context.Context, ws string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.snaps, ws)
	return nil
}

func appendAndPersist(reg *WorkspaceRegistry, ws, text string) error {
	ctx := context.Background()
	return reg.Do(ctx, ws, func(s *model.SessionStore) error {
		if _, err := s.AppendMessage(model.RoleUser, text); err != nil {
			return err
		}
		reg.Persist(ctx, ws, s)
		return nil
	})
}

func TestWorkspaceRegistry_SweepIdle(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	reg := NewWorkspaceRegistry(newSnapshotRepo(), nil)
	reg.now = func() time.Time { return clock }

	touch := func(ws, text string) {
		t.Helper()
		if err := appendAndPersist(reg, ws, text); err != nil {
			t.Fatal(err)
		}
	}

	touch("old", "hello")
	clock = clock.Add(90 * time.Minute)
	touch("fresh", "hello")
	clock = clock.Add(60 * time.Minute)

	if n := reg.SweepIdle(2 * time.Hour); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 workspace left, got %d", reg.Len())
	}

	// an evicted workspace comes back from the repository
	var msgs []model.ChatMessage
	_ = reg.Do(ctx, "old", func(s *model.SessionStore) error {
		msgs = s.ActiveMessages()
		return nil
	})
	if len(msgs) != 1 || msgs[0].Content != "hello" {
		t.Errorf("expected the stored history after eviction, got %+v", msgs)
	}
}

func TestWorkspaceRegistry_MemoryOnlyNeverEvicts(t *testing.T) {
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	reg := NewWorkspaceRegistry(nil, nil)
	reg.now = func() time.Time { return clock }
	if reg.Durable() {
		t.Fatal("a registry without repository is not durable")
	}

	if err := appendAndPersist(reg, "ws", "keep me"); err != nil {
		t.Fatal(err)
	}
	clock = clock.Add(30 * 24 * time.Hour)
	if n := reg.SweepIdle(time.Hour); n != 0 {
		t.Fatalf("memory-only workspaces must not be evicted, got %d", n)
	}
	var msgs int
	_ = reg.Do(context.Background(), "ws", func(s *model.SessionStore) error {
		msgs = len(s.ActiveMessages())
		return nil
	})
	if msgs != 1 {
		t.Fatalf("expected the history to survive, got %d messages", msgs)
	}
}

func TestWorkspaceRegistry_LoadFailure(t *testing.T) {
	ctx := context.Background()
	repo := newSnapshotRepo()
	seed := NewWorkspaceRegistry(repo, nil)
	if err := appendAndPersist(seed, "ws", "stored"); err != nil {
		t.Fatal(err)
	}

	reg := NewWorkspaceRegistry(repo, nil)
	repo.LoadErr = errors.New("connection refused")
	called := false
	err := reg.Do(ctx, "ws", func(*model.SessionStore) error {
		called = true
		return nil
	})
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if called {
		t.Fatal("fn must not run on a store that failed to load")
	}
	if reg.Len() != 0 {
		t.Fatalf("failed load should not be cached, got %d entries", reg.Len())
	}

	repo.LoadErr = nil
	var msgs []model.ChatMessage
	if err := reg.Do(ctx, "ws", func(s *model.SessionStore) error {
		msgs = s.ActiveMessages()
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Content != "stored" {
		t.Fatalf("expected the stored history on retry, got %+v", msgs)
	}
}

func TestWorkspaceRegistry_PersistOutlivesRequest(t *testing.T) {
	repo := newSnapshotRepo()
	reg := NewWorkspaceRegistry(&cancelAwareRepo{snapshotRepo: repo}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	err := reg.Do(ctx, "ws", func(s *model.SessionStore) error {
		if _, err := s.AppendMessage(model.RoleUser, "late"); err != nil {
			return err
		}
		cancel()
		reg.Persist(ctx, "ws", s)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := repo.snaps["ws"]; !ok {
		t.Fatal("expected the snapshot to be saved after the request was cancelled")
	}
}

// cancelAwareRepo refuses writes on a done context.
type cancelAwareRepo struct{ *snapshotRepo }

func (r *cancelAwareRepo) Save(ctx context.Context, ws string, snap *model.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.snapshotRepo.Save(ctx, ws, snap)
}

func TestWorkspaceRegistry_Evict(t *testing.T) {
	ctx := context.Background()
	reg := NewWorkspaceRegistry(nil, nil)
	_ = reg.Do(ctx, "ws", func(s *model.SessionStore) error {
		s.StartNewChat()
		return nil
	})
	reg.Evict("ws")
	if reg.Len() != 0 {
		t.Fatalf("expected no workspaces, got %d", reg.Len())
	}
	if err := reg.Do(ctx, "", func(*model.SessionStore) error { return nil }); err == nil {
		t.Fatal("expected an error for an empty workspace id")
	}
}
