package api

import (
	"errors"
	"net/http"

	"github.com/Hoarfrost42/Agent-Round/internal/provider"
)

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.ListConfigs())
}

func (s *Server) handleCreateProvider(w http.ResponseWriter, r *http.Request) {
	var cfg provider.Config
	if err := readJSON(r, &cfg); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if cfg.ID == "" {
		writeJSONError(w, http.StatusBadRequest, "provider id is required")
		return
	}
	if err := s.registry.AddProvider(cfg); err != nil {
		writeRegistryError(w, err)
		return
	}
	s.logger.Info("provider created", "provider", cfg.ID)
	writeJSON(w, http.StatusCreated, map[string]string{"id": cfg.ID})
}

func (s *Server) handleAddModel(w http.ResponseWriter, r *http.Request) {
	var model provider.ModelConfig
	if err := readJSON(r, &model); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if model.ID == "" {
		writeJSONError(w, http.StatusBadRequest, "model id is required")
		return
	}
	providerID := r.PathValue("id")
	if err := s.registry.AddModel(providerID, model); err != nil {
		writeRegistryError(w, err)
		return
	}
	s.logger.Info("model added", "provider", providerID, "model", model.ID)
	writeJSON(w, http.StatusCreated, map[string]string{"id": model.ID})
}

func (s *Server) handleReloadProviders(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Load(); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("provider registry reloaded")
	writeJSON(w, http.StatusOK, s.registry.ListConfigs())
}

func (s *Server) handleUpdateProvider(w http.ResponseWriter, r *http.Request) {
	var req provider.UpdateRequest
	if err := readJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	providerID := r.PathValue("id")
	if err := s.registry.UpdateProvider(providerID, req); err != nil {
		writeRegistryError(w, err)
		return
	}
	s.logger.Info("provider updated", "provider", providerID)
	writeJSON(w, http.StatusOK, map[string]string{"id": providerID})
}

func (s *Server) handleGetModelPrompt(w http.ResponseWriter, r *http.Request) {
	prompt, err := s.registry.ModelPrompt(r.PathValue("id"), r.PathValue("model"))
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"prompt": prompt})
}

func (s *Server) handleSetModelPrompt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := readJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	providerID := r.PathValue("id")
	modelID := r.PathValue("model")
	if err := s.registry.SetModelPrompt(providerID, modelID, req.Prompt); err != nil {
		writeRegistryError(w, err)
		return
	}
	s.logger.Info("model prompt updated", "provider", providerID, "model", modelID)
	writeJSON(w, http.StatusOK, map[string]string{"prompt": req.Prompt})
}

func writeRegistryError(w http.ResponseWriter, err error) {
	if errors.Is(err, provider.ErrProviderNotFound) || errors.Is(err, provider.ErrModelNotFound) {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	if errors.Is(err, provider.ErrProviderExists) || errors.Is(err, provider.ErrModelExists) {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSONError(w, http.StatusInternalServerError, err.Error())
}
