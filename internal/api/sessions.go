package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Hoarfrost42/Agent-Round/internal/export"
	"github.com/Hoarfrost42/Agent-Round/internal/round"
	"github.com/Hoarfrost42/Agent-Round/internal/store"
)

type messageView struct {
	ID         string    `json:"id"`
	RoundIndex int       `json:"round_index"`
	Role       string    `json:"role"`
	ModelID    string    `json:"model_id,omitempty"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	Status     string    `json:"status"`
}

type sessionView struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Status         string        `json:"status"`
	SelectedModels []string      `json:"selected_models"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	CurrentRound   int           `json:"current_round"`
	Messages       []messageView `json:"messages,omitempty"`
}

func toSessionView(session store.Session, withMessages bool) sessionView {
	view := sessionView{
		ID:             session.ID,
		Title:          session.Title,
		Status:         session.Status,
		SelectedModels: session.SelectedModels,
		CreatedAt:      session.CreatedAt,
		UpdatedAt:      session.UpdatedAt,
		CurrentRound:   session.CurrentRound,
	}
	if withMessages {
		view.Messages = make([]messageView, 0, len(session.Messages))
		for _, msg := range session.Messages {
			view.Messages = append(view.Messages, messageView{
				ID:         msg.ID,
				RoundIndex: msg.RoundIndex,
				Role:       msg.Role,
				ModelID:    msg.ModelID,
				Content:    msg.Content,
				Timestamp:  msg.Timestamp,
				Status:     msg.Status,
			})
		}
	}
	return view
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SelectedModels []string `json:"selected_models"`
	}
	if err := readJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.SelectedModels) == 0 {
		writeJSONError(w, http.StatusBadRequest, "selected_models must not be empty")
		return
	}

	session, err := s.store.CreateSession(req.SelectedModels)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("session created", "session", session.ID, "models", req.SelectedModels)
	writeJSON(w, http.StatusCreated, toSessionView(session, true))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]sessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, toSessionView(session, false))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.store.GetSession(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionView(session, true))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSession(r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateTitle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := readJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		writeJSONError(w, http.StatusBadRequest, "title must not be empty")
		return
	}
	if err := s.store.UpdateTitle(r.PathValue("id"), title); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"title": title})
}

// handleDecision records the end-of-round choice. "continue" leaves the
// session active so the next message starts a new round; "end" closes it,
// which makes the next completed round emit session_end.
func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Decision string `json:"decision"`
	}
	if err := readJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sessionID := r.PathValue("id")
	session, err := s.store.GetSession(sessionID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	switch req.Decision {
	case "continue":
		// Nothing to persist; the session stays active.
	case "end":
		if session.Status != store.StatusEnded {
			if err := s.store.UpdateStatus(sessionID, store.StatusEnded); err != nil {
				writeStoreError(w, err)
				return
			}
			session.Status = store.StatusEnded
		}
	default:
		writeJSONError(w, http.StatusBadRequest, `decision must be "continue" or "end"`)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": session.Status})
}

// handleSendMessage appends a user message, runs one round, and streams its
// events back as SSE. The same events fan out to websocket observers.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := readJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeJSONError(w, http.StatusBadRequest, "content must not be empty")
		return
	}

	sessionID := r.PathValue("id")
	session, err := s.store.GetSession(sessionID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if session.Status == store.StatusEnded {
		writeJSONError(w, http.StatusConflict, "session has ended")
		return
	}

	scheduler := round.NewScheduler(&round.State{CurrentRound: session.CurrentRound})
	var roundIndex int
	if session.CurrentRound == 0 {
		roundIndex = scheduler.StartFirstRound()
	} else {
		roundIndex = scheduler.AdvanceRound()
	}

	if _, err := s.store.AddMessage(sessionID, store.RoleUser, req.Content, "", store.MessageSuccess, roundIndex); err != nil {
		writeStoreError(w, err)
		return
	}

	// Re-read so the round sees the user message and the new round index.
	session, err = s.store.GetSession(sessionID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writer, err := startSSEWriter(w)
	if err != nil {
		s.logger.Error("sse unavailable", "session", sessionID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events := s.orchestrator.StreamRound(r.Context(), session)
	for event := range events {
		s.hub.Publish(sessionID, event)
		if err := writer.WriteEvent(event.Name, event.Data); err != nil {
			s.logger.Warn("sse write failed, client gone", "session", sessionID, "error", err)
			// Drain so the round goroutine finishes against the store.
			for range events {
			}
			return
		}
	}
}

func (s *Server) handleExportSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.store.GetSession(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	markdown := export.SessionMarkdown(session, s.displayName)
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", session.ID+".md"))
	_, _ = w.Write([]byte(markdown))
}

func (s *Server) displayName(modelID string) string {
	if s.registry == nil {
		return ""
	}
	_, model, _, err := s.registry.ResolveModel(modelID)
	if err != nil {
		return ""
	}
	return model.DisplayName
}
