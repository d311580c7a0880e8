package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
	anthropicMaxTokens      = 4096
)

// Anthropic talks to the messages API. It runs non-streaming, which makes
// it eligible for background prefetch in parallel rounds.
type Anthropic struct {
	cfg    Config
	client *http.Client
}

func NewAnthropic(cfg Config, client *http.Client) *Anthropic {
	if client == nil {
		client = http.DefaultClient
	}
	return &Anthropic{cfg: cfg, client: client}
}

func (p *Anthropic) SupportsStreaming() bool { return false }

type anthropicRequest struct {
	Model     string    `json:"model"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

// splitSystem extracts system messages into the top-level system field the
// messages API requires.
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, message := range messages {
		if message.Role == "system" {
			if message.Content != "" {
				system = append(system, message.Content)
			}
			continue
		}
		rest = append(rest, message)
	}
	return strings.Join(system, "\n"), rest
}

func (p *Anthropic) Generate(ctx context.Context, messages []Message, modelID string) (string, error) {
	if p.cfg.APIKey == "" {
		return "", fmt.Errorf("%s: API key is required", p.cfg.ID)
	}
	system, rest := splitSystem(messages)
	body, err := json.Marshal(anthropicRequest{
		Model:     modelID,
		System:    system,
		Messages:  rest,
		MaxTokens: anthropicMaxTokens,
	})
	if err != nil {
		return "", err
	}

	base := strings.TrimSuffix(strings.TrimSpace(p.cfg.BaseURL), "/")
	if base == "" {
		base = anthropicDefaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{ProviderID: p.cfg.ID, Code: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	var payload struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", &MalformedError{ProviderID: p.cfg.ID, Reason: err.Error()}
	}
	var sb strings.Builder
	for _, block := range payload.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &MalformedError{ProviderID: p.cfg.ID, Reason: "response missing text content"}
	}
	return sb.String(), nil
}

func (p *Anthropic) GenerateStream(ctx context.Context, messages []Message, modelID string) (<-chan Chunk, error) {
	return nil, errors.New("anthropic provider does not stream")
}
