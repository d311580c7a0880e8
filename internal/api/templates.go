package api

import (
	"errors"
	"net/http"

	"github.com/Hoarfrost42/Agent-Round/internal/template"
)

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	file, err := s.templates.Load()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, file)
}

func (s *Server) handleListChatTemplates(w http.ResponseWriter, r *http.Request) {
	file, err := s.templates.Load()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, file.ChatTemplates)
}

func (s *Server) handleListPromptTemplates(w http.ResponseWriter, r *http.Request) {
	file, err := s.templates.Load()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, file.PromptTemplates)
}

func (s *Server) handleSaveChatTemplate(w http.ResponseWriter, r *http.Request) {
	s.saveTemplate(w, r, s.templates.SaveChat)
}

func (s *Server) handleSavePromptTemplate(w http.ResponseWriter, r *http.Request) {
	s.saveTemplate(w, r, s.templates.SavePrompt)
}

func (s *Server) saveTemplate(w http.ResponseWriter, r *http.Request, save func(string, template.Item) error) {
	var item template.Item
	if err := readJSON(r, &item); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if item.Name == "" || item.Content == "" {
		writeJSONError(w, http.StatusBadRequest, "name and content are required")
		return
	}
	id := r.PathValue("id")
	if err := save(id, item); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("template saved", "template", id)
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleDeleteChatTemplate(w http.ResponseWriter, r *http.Request) {
	s.deleteTemplate(w, r, s.templates.DeleteChat)
}

func (s *Server) handleDeletePromptTemplate(w http.ResponseWriter, r *http.Request) {
	s.deleteTemplate(w, r, s.templates.DeletePrompt)
}

func (s *Server) deleteTemplate(w http.ResponseWriter, r *http.Request, remove func(string) error) {
	id := r.PathValue("id")
	if err := remove(id); err != nil {
		if errors.Is(err, template.ErrTemplateNotFound) {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("template deleted", "template", id)
	w.WriteHeader(http.StatusNoContent)
}
