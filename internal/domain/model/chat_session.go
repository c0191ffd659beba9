package model

import (
	"strings"
	"time"
)

// PlaceholderTitle is the title of a chat that has not been named by content yet.
const PlaceholderTitle = "New Chat"

const titleWordLimit = 8

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool { return r == RoleUser || r == RoleAssistant }

// ChatMessage represents one message within a chat session.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Tokens    int       `json:"tokens"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatSession is one saved conversation thread with its messages, title and
// the summary of the last file attached to it.
type ChatSession struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Messages    []ChatMessage `json:"messages"`
	FileSummary string        `json:"file_summary,omitempty"`
	FileName    string        `json:"file_name,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func NewChatSession(id string, now time.Time) *ChatSession {
	return &ChatSession{
		ID:        id,
		Title:     PlaceholderTitle,
		Messages:  make([]ChatMessage, 0, 8),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *ChatSession) HasPlaceholderTitle() bool { return s.Title == PlaceholderTitle }

// IsBlank reports whether the chat was never touched by a message or an upload.
func (s *ChatSession) IsBlank() bool {
	return len(s.Messages) == 0 && s.FileSummary == "" && s.FileName == "" && s.HasPlaceholderTitle()
}

// FirstUserMessage returns the content of the earliest user message, if any.
func (s *ChatSession) FirstUserMessage() (string, bool) {
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			return m.Content, true
		}
	}
	return "", false
}

func (s *ChatSession) clone() ChatSession {
	cp := *s
	cp.Messages = append(make([]ChatMessage, 0, len(s.Messages)), s.Messages...)
	return cp
}

// DeriveTitle keeps the first eight whitespace-separated words of text and
// appends "..." when more remain. Blank text yields the placeholder.
func DeriveTitle(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return PlaceholderTitle
	}
	if len(words) <= titleWordLimit {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:titleWordLimit], " ") + "..."
}

// SummaryTitle names a chat after an uploaded file.
func SummaryTitle(fileName string) string {
	return "Summary of " + fileName
}
