// Package template stores reusable chat and prompt templates in a yaml
// file alongside the provider configuration.
package template

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

var ErrTemplateNotFound = errors.New("template not found")

// Item is one named template.
type Item struct {
	Name    string `yaml:"name" json:"name"`
	Icon    string `yaml:"icon,omitempty" json:"icon,omitempty"`
	Content string `yaml:"content" json:"content"`
}

// File is the on-disk shape of templates.yaml.
type File struct {
	ChatTemplates   map[string]Item `yaml:"chat_templates" json:"chat_templates"`
	PromptTemplates map[string]Item `yaml:"prompt_templates" json:"prompt_templates"`
}

// Store reads and writes templates.yaml. Every call re-reads the file so
// external edits take effect without a restart.
type Store struct {
	mu   sync.Mutex
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the stored templates. A missing file yields empty maps.
func (s *Store) Load() (File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (File, error) {
	file := File{
		ChatTemplates:   map[string]Item{},
		PromptTemplates: map[string]Item{},
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return file, nil
	}
	if err != nil {
		return File{}, fmt.Errorf("read templates: %w", err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return File{}, fmt.Errorf("parse templates: %w", err)
	}
	if file.ChatTemplates == nil {
		file.ChatTemplates = map[string]Item{}
	}
	if file.PromptTemplates == nil {
		file.PromptTemplates = map[string]Item{}
	}
	return file, nil
}

func (s *Store) save(file File) error {
	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("marshal templates: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write templates: %w", err)
	}
	return nil
}

// SaveChat creates or replaces a chat template.
func (s *Store) SaveChat(id string, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.load()
	if err != nil {
		return err
	}
	file.ChatTemplates[id] = item
	return s.save(file)
}

// SavePrompt creates or replaces a prompt template.
func (s *Store) SavePrompt(id string, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.load()
	if err != nil {
		return err
	}
	file.PromptTemplates[id] = item
	return s.save(file)
}

// DeleteChat removes a chat template.
func (s *Store) DeleteChat(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := file.ChatTemplates[id]; !ok {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	delete(file.ChatTemplates, id)
	return s.save(file)
}

// DeletePrompt removes a prompt template.
func (s *Store) DeletePrompt(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := file.PromptTemplates[id]; !ok {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	delete(file.PromptTemplates, id)
	return s.save(file)
}
