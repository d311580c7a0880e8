// Package api exposes the HTTP surface: session CRUD, round streaming over
// SSE, a websocket event mirror, and provider management.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Hoarfrost42/Agent-Round/internal/provider"
	"github.com/Hoarfrost42/Agent-Round/internal/round"
	"github.com/Hoarfrost42/Agent-Round/internal/store"
	"github.com/Hoarfrost42/Agent-Round/internal/template"
)

// RoundStreamer runs one round for a session snapshot and streams its events.
type RoundStreamer interface {
	StreamRound(ctx context.Context, session store.Session) <-chan round.Event
}

// ProviderRegistry is the slice of the provider registry the API serves.
type ProviderRegistry interface {
	Load() error
	ResolveModel(modelID string) (provider.Config, provider.ModelConfig, provider.Provider, error)
	ListConfigs() []provider.Config
	AddProvider(cfg provider.Config) error
	UpdateProvider(providerID string, update provider.UpdateRequest) error
	AddModel(providerID string, model provider.ModelConfig) error
	ModelPrompt(providerID, modelID string) (string, error)
	SetModelPrompt(providerID, modelID, prompt string) error
}

type Server struct {
	store        store.Store
	registry     ProviderRegistry
	orchestrator RoundStreamer
	templates    *template.Store
	hub          *eventHub
	logger       *slog.Logger
}

func NewServer(st store.Store, registry ProviderRegistry, orchestrator RoundStreamer, templates *template.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:        st,
		registry:     registry,
		orchestrator: orchestrator,
		templates:    templates,
		hub:          newEventHub(),
		logger:       logger,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("PATCH /api/sessions/{id}/title", s.handleUpdateTitle)
	mux.HandleFunc("POST /api/sessions/{id}/decision", s.handleDecision)
	mux.HandleFunc("POST /api/sessions/{id}/messages", s.handleSendMessage)
	mux.HandleFunc("GET /api/sessions/{id}/events", s.handleSessionEvents)
	mux.HandleFunc("GET /api/sessions/{id}/export", s.handleExportSession)

	mux.HandleFunc("GET /api/providers", s.handleListProviders)
	mux.HandleFunc("POST /api/providers", s.handleCreateProvider)
	mux.HandleFunc("POST /api/providers/reload", s.handleReloadProviders)
	mux.HandleFunc("PATCH /api/providers/{id}", s.handleUpdateProvider)
	mux.HandleFunc("POST /api/providers/{id}/models", s.handleAddModel)
	mux.HandleFunc("GET /api/providers/{id}/models/{model}/prompt", s.handleGetModelPrompt)
	mux.HandleFunc("PUT /api/providers/{id}/models/{model}/prompt", s.handleSetModelPrompt)

	mux.HandleFunc("GET /api/templates", s.handleListTemplates)
	mux.HandleFunc("GET /api/templates/chat", s.handleListChatTemplates)
	mux.HandleFunc("GET /api/templates/prompt", s.handleListPromptTemplates)
	mux.HandleFunc("PUT /api/templates/chat/{id}", s.handleSaveChatTemplate)
	mux.HandleFunc("PUT /api/templates/prompt/{id}", s.handleSavePromptTemplate)
	mux.HandleFunc("DELETE /api/templates/chat/{id}", s.handleDeleteChatTemplate)
	mux.HandleFunc("DELETE /api/templates/prompt/{id}", s.handleDeletePromptTemplate)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrSessionNotFound) {
		writeJSONError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSONError(w, http.StatusInternalServerError, err.Error())
}
