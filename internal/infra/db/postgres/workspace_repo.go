// File: internal/infra/db/postgres/workspace_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"local-chat-assistant/internal/domain"
	"local-chat-assistant/internal/domain/model"
	"local-chat-assistant/internal/domain/ports/repository"
	"local-chat-assistant/internal/infra/security"
)

var (
	_ repository.WorkspaceRepository = (*WorkspaceRepo)(nil)
	_ repository.WorkspacePurger     = (*WorkspaceRepo)(nil)
)

// WorkspaceRepo stores whole workspace snapshots. Message bodies and file
// summaries are encrypted at rest when an EncryptionService is configured.
type WorkspaceRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
	enc  *security.EncryptionService
}

func NewWorkspaceRepo(pool *pgxpool.Pool, enc *security.EncryptionService) *WorkspaceRepo {
	return &WorkspaceRepo{pool: pool, tm: NewTxManager(pool), enc: enc}
}

// Save replaces the stored workspace with snap in one transaction.
func (r *WorkspaceRepo) Save(ctx context.Context, ws string, snap *model.Snapshot) error {
	if ws == "" || snap == nil {
		return domain.ErrInvalidArgument
	}
	return r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ex, err := getExecutor(r.pool, tx)
		if err != nil {
			return err
		}

		const qWs = `
INSERT INTO chat_workspaces (id, active_index, updated_at)
VALUES ($1, $2, COALESCE($3, NOW()))
ON CONFLICT (id) DO UPDATE SET
  active_index = EXCLUDED.active_index,
  updated_at = EXCLUDED.updated_at;`
		if _, err := ex.Exec(ctx, qWs, ws, snap.ActiveIndex, nullTime(snap.UpdatedAt)); err != nil {
			return fmt.Errorf("upsert workspace: %w", err)
		}
		// messages go with their sessions (ON DELETE CASCADE)
		if _, err := ex.Exec(ctx, `DELETE FROM chat_sessions WHERE workspace_id = $1;`, ws); err != nil {
			return fmt.Errorf("clear sessions: %w", err)
		}

		b := &pgx.Batch{}
		for pos, s := range snap.Sessions {
			summary, encrypted, err := r.seal(ws, s.FileSummary)
			if err != nil {
				return err
			}
			b.Queue(`
INSERT INTO chat_sessions (id, workspace_id, position, title, file_name, file_summary, encrypted, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`,
				s.ID, ws, pos, pgText(s.Title), pgText(s.FileName), summary, encrypted, s.CreatedAt, s.UpdatedAt)

			for seq, m := range s.Messages {
				content, encrypted, err := r.seal(ws, m.Content)
				if err != nil {
					return err
				}
				b.Queue(`
INSERT INTO chat_messages (id, session_id, seq, role, content, tokens, encrypted, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`,
					m.ID, s.ID, seq, string(m.Role), content, m.Tokens, encrypted, m.Timestamp)
			}
		}
		if b.Len() == 0 {
			return nil
		}
		br := ex.SendBatch(ctx, b)
		for i := 0; i < b.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("insert workspace rows: %w", err)
			}
		}
		return br.Close()
	})
}

func (r *WorkspaceRepo) Load(ctx context.Context, ws string) (*model.Snapshot, error) {
	snap := &model.Snapshot{}
	const qWs = `SELECT active_index, updated_at FROM chat_workspaces WHERE id = $1;`
	if err := r.pool.QueryRow(ctx, qWs, ws).Scan(&snap.ActiveIndex, &snap.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load workspace: %w", err)
	}

	const qs = `
SELECT id, title, file_name, file_summary, encrypted, created_at, updated_at
  FROM chat_sessions
 WHERE workspace_id = $1
 ORDER BY position ASC;`
	rows, err := r.pool.Query(ctx, qs, ws)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	byID := map[string]int{}
	for rows.Next() {
		var (
			s   model.ChatSession
			enc bool
		)
		if err := rows.Scan(&s.ID, &s.Title, &s.FileName, &s.FileSummary, &enc, &s.CreatedAt, &s.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if s.FileSummary, err = r.open(ws, s.FileSummary, enc); err != nil {
			rows.Close()
			return nil, err
		}
		s.Messages = []model.ChatMessage{}
		byID[s.ID] = len(snap.Sessions)
		snap.Sessions = append(snap.Sessions, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}

	const qm = `
SELECT m.id, m.session_id, m.role, m.content, m.tokens, m.encrypted, m.created_at
  FROM chat_messages m
  JOIN chat_sessions s ON s.id = m.session_id
 WHERE s.workspace_id = $1
 ORDER BY s.position ASC, m.seq ASC;`
	mrows, err := r.pool.Query(ctx, qm, ws)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer mrows.Close()
	for mrows.Next() {
		var (
			m         model.ChatMessage
			sessionID string
			role      string
			enc       bool
		)
		if err := mrows.Scan(&m.ID, &sessionID, &role, &m.Content, &m.Tokens, &enc, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan msg: %w", err)
		}
		if m.Content, err = r.open(ws, m.Content, enc); err != nil {
			return nil, err
		}
		m.Role = model.Role(role)
		i, ok := byID[sessionID]
		if !ok {
			continue
		}
		snap.Sessions[i].Messages = append(snap.Sessions[i].Messages, m)
	}
	if err := mrows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return snap, nil
}

func (r *WorkspaceRepo) Delete(ctx context.Context, ws string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM chat_workspaces WHERE id = $1;`, ws); err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	return nil
}

// DeleteUpdatedBefore purges workspaces untouched since before and reports
// how many were removed.
func (r *WorkspaceRepo) DeleteUpdatedBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM chat_workspaces WHERE updated_at < $1;`, before)
	if err != nil {
		return 0, fmt.Errorf("purge workspaces: %w", err)
	}
	return tag.RowsAffected(), nil
}

// pgText drops NUL bytes, which Postgres refuses in TEXT columns.
func pgText(s string) string {
	if !strings.ContainsRune(s, 0) {
		return s
	}
	return strings.ReplaceAll(s, "\x00", "")
}

func (r *WorkspaceRepo) seal(ws, plain string) (string, bool, error) {
	if r.enc == nil || plain == "" {
		return pgText(plain), false, nil
	}
	ct, err := r.enc.Seal(plain, ws)
	if err != nil {
		return "", false, fmt.Errorf("encrypt: %w", err)
	}
	return ct, true, nil
}

func (r *WorkspaceRepo) open(ws, stored string, encrypted bool) (string, error) {
	if !encrypted {
		return stored, nil
	}
	if r.enc == nil {
		return "", errors.New("encrypted row but no encryption key configured")
	}
	pt, err := r.enc.Open(stored, ws)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return pt, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
