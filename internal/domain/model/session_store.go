package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"local-chat-assistant/internal/domain"
)

const noActive = -1

// SessionStore holds the saved chats of one interactive user and which of
// them is active. Operations act directly on the active chat; there is no
// separate working copy to synchronize.
//
// A SessionStore is not safe for concurrent use. Callers serialize access
// per workspace.
type SessionStore struct {
	sessions []*ChatSession
	active   int

	newSessionID func() string
	newMessageID func() string
	now          func() time.Time
	countTokens  func(string) int
}

type StoreOption func(*SessionStore)

func WithClock(now func() time.Time) StoreOption {
	return func(s *SessionStore) { s.now = now }
}

func WithIDGenerators(session, message func() string) StoreOption {
	return func(s *SessionStore) {
		if session != nil {
			s.newSessionID = session
		}
		if message != nil {
			s.newMessageID = message
		}
	}
}

// WithTokenCounter sets the function used to fill ChatMessage.Tokens.
func WithTokenCounter(count func(string) int) StoreOption {
	return func(s *SessionStore) { s.countTokens = count }
}

func NewSessionStore(opts ...StoreOption) *SessionStore {
	s := &SessionStore{
		active:       noActive,
		newSessionID: uuid.NewString,
		newMessageID: func() string { return ulid.Make().String() },
		now:          time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// StartNewChat activates a fresh placeholder chat and returns its index.
// An active chat that was never touched is reused instead of stacking a
// second empty one.
func (s *SessionStore) StartNewChat() int {
	if cur := s.activeSession(); cur != nil && cur.IsBlank() {
		return s.active
	}
	s.sessions = append(s.sessions, NewChatSession(s.newSessionID(), s.now()))
	s.active = len(s.sessions) - 1
	return s.active
}

func (s *SessionStore) SelectChat(i int) error {
	if i < 0 || i >= len(s.sessions) {
		return fmt.Errorf("select chat %d of %d: %w", i, len(s.sessions), domain.ErrIndexOutOfRange)
	}
	s.active = i
	return nil
}

func (s *SessionStore) ClearAll() {
	s.sessions = nil
	s.active = noActive
}

// AppendMessage appends to the active chat, creating and activating one when
// none is active. A placeholder title is replaced by one derived from the
// first user message.
func (s *SessionStore) AppendMessage(role Role, content string) (ChatMessage, error) {
	if !role.Valid() {
		return ChatMessage{}, fmt.Errorf("role %q: %w", role, domain.ErrInvalidArgument)
	}
	cur := s.activeSession()
	if cur == nil {
		s.StartNewChat()
		cur = s.activeSession()
	}
	now := s.now()
	msg := ChatMessage{
		ID:        s.newMessageID(),
		Role:      role,
		Content:   content,
		Timestamp: now,
	}
	if s.countTokens != nil {
		msg.Tokens = s.countTokens(content)
	}
	cur.Messages = append(cur.Messages, msg)
	cur.UpdatedAt = now

	if cur.HasPlaceholderTitle() {
		if first, ok := cur.FirstUserMessage(); ok {
			cur.Title = DeriveTitle(first)
		}
	}
	return msg, nil
}

// AttachFileSummary overwrites the active chat's summary and renames it after
// the file. With no active chat a new one is created to carry the summary.
func (s *SessionStore) AttachFileSummary(name, summary string) int {
	cur := s.activeSession()
	if cur == nil {
		s.sessions = append(s.sessions, NewChatSession(s.newSessionID(), s.now()))
		s.active = len(s.sessions) - 1
		cur = s.sessions[s.active]
	}
	cur.FileSummary = summary
	cur.FileName = name
	cur.Title = SummaryTitle(name)
	cur.UpdatedAt = s.now()
	return s.active
}

func (s *SessionStore) Len() int { return len(s.sessions) }

func (s *SessionStore) ActiveIndex() (int, bool) {
	if s.activeSession() == nil {
		return noActive, false
	}
	return s.active, true
}

// Active returns a copy of the active chat.
func (s *SessionStore) Active() (ChatSession, bool) {
	cur := s.activeSession()
	if cur == nil {
		return ChatSession{}, false
	}
	return cur.clone(), true
}

func (s *SessionStore) ActiveMessages() []ChatMessage {
	cur, ok := s.Active()
	if !ok {
		return []ChatMessage{}
	}
	return cur.Messages
}

func (s *SessionStore) ActiveSummary() string {
	if cur := s.activeSession(); cur != nil {
		return cur.FileSummary
	}
	return ""
}

// Sessions returns copies of all saved chats in order.
func (s *SessionStore) Sessions() []ChatSession {
	out := make([]ChatSession, 0, len(s.sessions))
	for _, cs := range s.sessions {
		out = append(out, cs.clone())
	}
	return out
}

func (s *SessionStore) activeSession() *ChatSession {
	if s.active < 0 || s.active >= len(s.sessions) {
		return nil
	}
	return s.sessions[s.active]
}

// Snapshot is the serialisable state of a SessionStore.
type Snapshot struct {
	Sessions    []ChatSession `json:"sessions"`
	ActiveIndex int           `json:"active_index"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (s *SessionStore) Snapshot() *Snapshot {
	idx, _ := s.ActiveIndex()
	return &Snapshot{
		Sessions:    s.Sessions(),
		ActiveIndex: idx,
		UpdatedAt:   s.now(),
	}
}

// RestoreSessionStore rebuilds a store from a snapshot. An out-of-range
// active index is dropped rather than rejected.
func RestoreSessionStore(snap *Snapshot, opts ...StoreOption) *SessionStore {
	s := NewSessionStore(opts...)
	if snap == nil {
		return s
	}
	s.sessions = make([]*ChatSession, 0, len(snap.Sessions))
	for i := range snap.Sessions {
		cs := snap.Sessions[i].clone()
		if cs.Messages == nil {
			cs.Messages = make([]ChatMessage, 0, 8)
		}
		s.sessions = append(s.sessions, &cs)
	}
	if snap.ActiveIndex >= 0 && snap.ActiveIndex < len(s.sessions) {
		s.active = snap.ActiveIndex
	}
	return s
}
