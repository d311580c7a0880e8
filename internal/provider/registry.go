package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/Hoarfrost42/Agent-Round/internal/secret"
)

var (
	ErrModelNotFound    = errors.New("model not found")
	ErrProviderNotFound = errors.New("provider not found")
	ErrProviderExists   = errors.New("provider already exists")
	ErrModelExists      = errors.New("model already exists")
)

const watchDebounce = 200 * time.Millisecond

type providersFile struct {
	Providers []Config `yaml:"providers"`
}

type modelEntry struct {
	providerID string
	model      ModelConfig
}

// RegistryOptions configure registry construction.
type RegistryOptions struct {
	// Crypto decrypts enc:-prefixed API keys on load and encrypts keys on
	// save. Nil means keys are used and stored as-is.
	Crypto         *secret.Crypto
	Logger         *slog.Logger
	RequestTimeout time.Duration
}

// Registry loads provider configurations from providers.yaml, builds
// provider handles, and resolves model ids to them. It reloads on demand
// and, with Watch, on file changes.
type Registry struct {
	path   string
	crypto *secret.Crypto
	logger *slog.Logger
	client *http.Client

	mu        sync.RWMutex
	raw       []Config // as stored on disk: env refs unexpanded, keys possibly encrypted
	order     []string
	configs   map[string]Config
	providers map[string]Provider
	models    map[string]modelEntry
}

func NewRegistry(path string, opts RegistryOptions) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Registry{
		path:      path,
		crypto:    opts.Crypto,
		logger:    logger,
		client:    &http.Client{Timeout: timeout},
		configs:   make(map[string]Config),
		providers: make(map[string]Provider),
		models:    make(map[string]modelEntry),
	}
}

// Load reads providers.yaml and rebuilds provider handles and the model
// index. Environment references like ${OPENAI_API_KEY} are expanded and
// encrypted keys decrypted in the runtime view only; the on-disk form is
// preserved for saving.
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read provider config: %w", err)
	}
	var parsed providersFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse provider config: %w", err)
	}

	var expanded providersFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &expanded); err != nil {
		return fmt.Errorf("parse provider config: %w", err)
	}

	order := make([]string, 0, len(expanded.Providers))
	configs := make(map[string]Config, len(expanded.Providers))
	providers := make(map[string]Provider, len(expanded.Providers))
	models := make(map[string]modelEntry)
	for _, cfg := range expanded.Providers {
		if cfg.ID == "" {
			return errors.New("provider entry missing id")
		}
		if r.crypto != nil && secret.IsEncrypted(cfg.APIKey) {
			key, err := r.crypto.Decrypt(cfg.APIKey)
			if err != nil {
				return fmt.Errorf("decrypt key for provider %s: %w", cfg.ID, err)
			}
			cfg.APIKey = key
		}
		order = append(order, cfg.ID)
		configs[cfg.ID] = cfg
		if handle := buildProvider(cfg, r.client); handle != nil {
			providers[cfg.ID] = handle
		}
		for _, model := range cfg.Models {
			if _, exists := models[model.ID]; !exists {
				models[model.ID] = modelEntry{providerID: cfg.ID, model: model}
			}
		}
	}

	r.mu.Lock()
	r.raw = parsed.Providers
	r.order = order
	r.configs = configs
	r.providers = providers
	r.models = models
	r.mu.Unlock()

	r.logger.Info("provider config loaded", "path", r.path, "providers", len(order), "models", len(models))
	return nil
}

func buildProvider(cfg Config, client *http.Client) Provider {
	switch cfg.Type {
	case "openai", "ollama":
		return NewOpenAI(cfg, client)
	case "anthropic":
		return NewAnthropic(cfg, client)
	case "google":
		return NewGoogle(cfg, client)
	default:
		return nil
	}
}

// ResolveModel maps a model id to its provider configuration, model
// configuration, and provider handle.
func (r *Registry) ResolveModel(modelID string) (Config, ModelConfig, Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.models[modelID]
	if !ok {
		return Config{}, ModelConfig{}, nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelID)
	}
	cfg := r.configs[entry.providerID]
	handle, ok := r.providers[entry.providerID]
	if !ok {
		return Config{}, ModelConfig{}, nil, fmt.Errorf("provider %s has unsupported type %q", entry.providerID, cfg.Type)
	}
	return cfg, entry.model, handle, nil
}

// ListConfigs returns runtime provider configs in file order with API keys
// masked for display.
func (r *Registry) ListConfigs() []Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Config, 0, len(r.order))
	for _, id := range r.order {
		cfg := r.configs[id]
		cfg.APIKey = maskKey(cfg.APIKey)
		out = append(out, cfg)
	}
	return out
}

func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

// UpdateRequest carries partial provider updates. Nil fields are left
// untouched.
type UpdateRequest struct {
	Name    *string `json:"name"`
	APIKey  *string `json:"api_key"`
	BaseURL *string `json:"base_url"`
}

// UpdateProvider applies the update to the stored form of the config,
// persists providers.yaml, and reloads. A new API key is encrypted when a
// crypto is configured.
func (r *Registry) UpdateProvider(providerID string, update UpdateRequest) error {
	if err := r.mutateRaw(func(raw []Config) ([]Config, error) {
		for i := range raw {
			if raw[i].ID != providerID {
				continue
			}
			if update.Name != nil {
				raw[i].Name = *update.Name
			}
			if update.BaseURL != nil {
				raw[i].BaseURL = *update.BaseURL
			}
			if update.APIKey != nil {
				key := *update.APIKey
				if r.crypto != nil && key != "" {
					sealed, err := r.crypto.Encrypt(key)
					if err != nil {
						return nil, err
					}
					key = sealed
				}
				raw[i].APIKey = key
			}
			return raw, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerID)
	}); err != nil {
		return err
	}
	return r.Load()
}

// AddProvider appends a new provider entry and persists the file. The API
// key is encrypted when a crypto is configured.
func (r *Registry) AddProvider(cfg Config) error {
	if cfg.ID == "" {
		return errors.New("provider id is required")
	}
	if err := r.mutateRaw(func(raw []Config) ([]Config, error) {
		for i := range raw {
			if raw[i].ID == cfg.ID {
				return nil, fmt.Errorf("%w: %s", ErrProviderExists, cfg.ID)
			}
		}
		if r.crypto != nil && cfg.APIKey != "" && !secret.IsEncrypted(cfg.APIKey) {
			sealed, err := r.crypto.Encrypt(cfg.APIKey)
			if err != nil {
				return nil, err
			}
			cfg.APIKey = sealed
		}
		return append(raw, cfg), nil
	}); err != nil {
		return err
	}
	return r.Load()
}

// AddModel appends a model to an existing provider and persists the file.
func (r *Registry) AddModel(providerID string, model ModelConfig) error {
	if model.ID == "" {
		return errors.New("model id is required")
	}
	if err := r.mutateRaw(func(raw []Config) ([]Config, error) {
		for i := range raw {
			if raw[i].ID != providerID {
				continue
			}
			for _, existing := range raw[i].Models {
				if existing.ID == model.ID {
					return nil, fmt.Errorf("%w: %s", ErrModelExists, model.ID)
				}
			}
			raw[i].Models = append(raw[i].Models, model)
			return raw, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerID)
	}); err != nil {
		return err
	}
	return r.Load()
}

// SetModelPrompt updates one model's prompt and persists the file.
func (r *Registry) SetModelPrompt(providerID, modelID, prompt string) error {
	if err := r.mutateRaw(func(raw []Config) ([]Config, error) {
		for i := range raw {
			if raw[i].ID != providerID {
				continue
			}
			for j := range raw[i].Models {
				if raw[i].Models[j].ID == modelID {
					raw[i].Models[j].Prompt = prompt
					return raw, nil
				}
			}
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelID)
		}
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerID)
	}); err != nil {
		return err
	}
	return r.Load()
}

// ModelPrompt returns the stored prompt for a model.
func (r *Registry) ModelPrompt(providerID, modelID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[providerID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrProviderNotFound, providerID)
	}
	for _, model := range cfg.Models {
		if model.ID == modelID {
			return model.Prompt, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrModelNotFound, modelID)
}

func (r *Registry) mutateRaw(apply func(raw []Config) ([]Config, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw := make([]Config, len(r.raw))
	copy(raw, r.raw)
	raw, err := apply(raw)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(providersFile{Providers: raw})
	if err != nil {
		return err
	}
	if err := os.WriteFile(r.path, data, 0600); err != nil {
		return fmt.Errorf("save provider config: %w", err)
	}
	r.raw = raw
	return nil
}

// Watch reloads the registry when providers.yaml changes on disk. It
// blocks until ctx is done. Edits made through UpdateProvider also land
// here; reloading twice is harmless.
func (r *Registry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors replace files rather than write in place.
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		return err
	}

	var debounce *time.Timer
	reload := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(r.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			if err := r.Load(); err != nil {
				r.logger.Warn("provider config reload failed", "path", r.path, "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("provider config watcher error", "error", err)
		}
	}
}
