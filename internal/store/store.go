// Package store persists sessions and their message history.
package store

import (
	"errors"
	"time"
)

// Session statuses.
const (
	StatusActive = "active"
	StatusEnded  = "ended"
)

// Message statuses.
const (
	MessageSuccess = "success"
	MessageError   = "error"
	MessageSkipped = "skipped"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultTitle is the sentinel title of a session that has not yet been
// named from its first user message.
const DefaultTitle = "New Session"

var ErrSessionNotFound = errors.New("session not found")

// Message is one stored conversation entry. Immutable once written.
type Message struct {
	ID         string
	SessionID  string
	RoundIndex int
	Role       string
	ModelID    string // empty for user messages
	Content    string
	Timestamp  time.Time
	Status     string
}

// Session is a conversation with a fixed list of participating models.
// CurrentRound derives from the highest round index among its messages.
type Session struct {
	ID             string
	Title          string
	Status         string
	SelectedModels []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Messages       []Message
	CurrentRound   int
}

// Store is the session persistence interface. Implementations must be safe
// for concurrent use.
type Store interface {
	CreateSession(selectedModels []string) (Session, error)
	ListSessions() ([]Session, error)
	GetSession(id string) (Session, error)
	DeleteSession(id string) error
	UpdateTitle(id, title string) error
	UpdateStatus(id, status string) error
	AddMessage(sessionID, role, content, modelID, status string, roundIndex int) (Message, error)
	Close() error
}
