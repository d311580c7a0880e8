package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps sessions in process memory. Used by tests and when the
// configured backend is "memory"; state is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (s *MemoryStore) CreateSession(selectedModels []string) (Session, error) {
	now := time.Now().UTC()
	session := &Session{
		ID:             uuid.NewString(),
		Title:          DefaultTitle,
		Status:         StatusActive,
		SelectedModels: append([]string(nil), selectedModels...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return snapshot(session), nil
}

func (s *MemoryStore) ListSessions() ([]Session, error) {
	s.mu.RLock()
	sessions := make([]Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, snapshot(session))
	}
	s.mu.RUnlock()
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func (s *MemoryStore) GetSession(id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return snapshot(session), nil
}

func (s *MemoryStore) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	return nil
}

func (s *MemoryStore) UpdateTitle(id, title string) error {
	return s.mutate(id, func(session *Session) {
		session.Title = title
	})
}

func (s *MemoryStore) UpdateStatus(id, status string) error {
	return s.mutate(id, func(session *Session) {
		session.Status = status
	})
}

func (s *MemoryStore) AddMessage(sessionID, role, content, modelID, status string, roundIndex int) (Message, error) {
	message := Message{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		RoundIndex: roundIndex,
		Role:       role,
		ModelID:    modelID,
		Content:    content,
		Timestamp:  time.Now().UTC(),
		Status:     status,
	}
	err := s.mutate(sessionID, func(session *Session) {
		session.Messages = append(session.Messages, message)
		if roundIndex > session.CurrentRound {
			session.CurrentRound = roundIndex
		}
	})
	if err != nil {
		return Message{}, err
	}
	return message, nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) mutate(id string, apply func(*Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	apply(session)
	session.UpdatedAt = time.Now().UTC()
	return nil
}

func snapshot(session *Session) Session {
	copied := *session
	copied.SelectedModels = append([]string(nil), session.SelectedModels...)
	copied.Messages = append([]Message(nil), session.Messages...)
	return copied
}
