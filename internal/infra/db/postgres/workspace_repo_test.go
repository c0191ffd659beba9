//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"local-chat-assistant/internal/domain"
	"local-chat-assistant/internal/domain/model"
	"local-chat-assistant/internal/infra/security"
)

func TestWorkspaceRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	// 1. Setup
	ctx := context.Background()
	encSvc, err := security.NewEncryptionService("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("failed to create encryption service: %v", err)
	}
	repo := NewWorkspaceRepo(testPool, encSvc)

	newStore := func() *model.SessionStore {
		s := model.NewSessionStore()
		_, _ = s.AppendMessage(model.RoleUser, "Hello World")
		_, _ = s.AppendMessage(model.RoleAssistant, "Hello User")
		s.AttachFileSummary("notes.txt", "A short summary")
		s.StartNewChat()
		_, _ = s.AppendMessage(model.RoleUser, "Second chat")
		_ = s.SelectChat(0)
		return s
	}

	t.Run("should save, load and decrypt a workspace", func(t *testing.T) {
		cleanup(t)
		store := newStore()
		if err := repo.Save(ctx, "ws-1", store.Snapshot()); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		snap, err := repo.Load(ctx, "ws-1")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(snap.Sessions) != 2 || snap.ActiveIndex != 0 {
			t.Fatalf("unexpected snapshot: %+v", snap)
		}
		first := snap.Sessions[0]
		if first.Title != "Summary of notes.txt" || first.FileSummary != "A short summary" {
			t.Errorf("session fields not restored: %+v", first)
		}
		if len(first.Messages) != 2 || first.Messages[0].Content != "Hello World" || first.Messages[1].Role != model.RoleAssistant {
			t.Errorf("messages not restored in order: %+v", first.Messages)
		}

		// stored ciphertext, not plaintext
		var raw string
		if err := testPool.QueryRow(ctx, `SELECT content FROM chat_messages WHERE seq = 0 AND session_id = $1`, first.ID).Scan(&raw); err != nil {
			t.Fatal(err)
		}
		if raw == "Hello World" {
			t.Error("message content should be encrypted at rest")
		}
	})

	t.Run("should replace on save", func(t *testing.T) {
		cleanup(t)
		store := newStore()
		_ = repo.Save(ctx, "ws-1", store.Snapshot())
		store.ClearAll()
		_, _ = store.AppendMessage(model.RoleUser, "Fresh start")
		if err := repo.Save(ctx, "ws-1", store.Snapshot()); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		snap, err := repo.Load(ctx, "ws-1")
		if err != nil {
			t.Fatal(err)
		}
		if len(snap.Sessions) != 1 || snap.Sessions[0].Messages[0].Content != "Fresh start" {
			t.Fatalf("expected only the new chat, got %+v", snap.Sessions)
		}
	})

	t.Run("should report unknown workspaces and delete", func(t *testing.T) {
		cleanup(t)
		if _, err := repo.Load(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		_ = repo.Save(ctx, "ws-2", newStore().Snapshot())
		if err := repo.Delete(ctx, "ws-2"); err != nil {
			t.Fatal(err)
		}
		if _, err := repo.Load(ctx, "ws-2"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("should store text containing NUL bytes", func(t *testing.T) {
		cleanup(t)
		plain := NewWorkspaceRepo(testPool, nil)
		s := model.NewSessionStore()
		_, _ = s.AppendMessage(model.RoleUser, "a\x00b")
		_, _ = s.AppendMessage(model.RoleAssistant, "reply\x00")
		s.AttachFileSummary("f\x00.txt", "sum\x00mary")

		if err := repo.Save(ctx, "ws-nul", s.Snapshot()); err != nil {
			t.Fatalf("encrypted Save failed: %v", err)
		}
		if err := plain.Save(ctx, "ws-nul", s.Snapshot()); err != nil {
			t.Fatalf("plain Save failed: %v", err)
		}
		snap, err := plain.Load(ctx, "ws-nul")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		got := snap.Sessions[0]
		if got.Messages[0].Content != "ab" || got.FileName != "f.txt" || got.FileSummary != "summary" {
			t.Errorf("unexpected stored text: %+v", got)
		}
	})

	t.Run("should purge stale workspaces", func(t *testing.T) {
		cleanup(t)
		old := newStore().Snapshot()
		old.UpdatedAt = time.Now().Add(-48 * time.Hour)
		_ = repo.Save(ctx, "old", old)
		_ = repo.Save(ctx, "new", newStore().Snapshot())

		n, err := repo.DeleteUpdatedBefore(ctx, time.Now().Add(-24*time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Fatalf("expected 1 purged workspace, got %d", n)
		}
		if _, err := repo.Load(ctx, "new"); err != nil {
			t.Errorf("recent workspace should survive: %v", err)
		}
	})
}
