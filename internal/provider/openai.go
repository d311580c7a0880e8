package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const openaiDefaultBaseURL = "https://api.openai.com"

// OpenAI talks to OpenAI-compatible chat completions APIs. Ollama and other
// compatible backends reuse this adapter via BaseURL.
type OpenAI struct {
	cfg    Config
	client *http.Client
}

func NewOpenAI(cfg Config, client *http.Client) *OpenAI {
	if client == nil {
		client = http.DefaultClient
	}
	return &OpenAI{cfg: cfg, client: client}
}

func (p *OpenAI) SupportsStreaming() bool { return true }

func chatCompletionsURL(baseURL string) string {
	base := strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = openaiDefaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

type openaiRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream,omitempty"`
}

func (p *OpenAI) newRequest(ctx context.Context, modelID string, messages []Message, stream bool) (*http.Request, error) {
	if p.cfg.APIKey == "" && p.cfg.Type != "ollama" {
		return nil, fmt.Errorf("%s: API key is required", p.cfg.ID)
	}
	body, err := json.Marshal(openaiRequest{
		Model:       modelID,
		Messages:    messages,
		Temperature: 0.7,
		Stream:      stream,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, chatCompletionsURL(p.cfg.BaseURL), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
	return req, nil
}

func (p *OpenAI) Generate(ctx context.Context, messages []Message, modelID string) (string, error) {
	req, err := p.newRequest(ctx, modelID, messages, false)
	if err != nil {
		return "", err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{ProviderID: p.cfg.ID, Code: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	var payload struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", &MalformedError{ProviderID: p.cfg.ID, Reason: err.Error()}
	}
	if len(payload.Choices) == 0 {
		return "", &MalformedError{ProviderID: p.cfg.ID, Reason: "response missing choices"}
	}
	content := payload.Choices[0].Message.Content
	if content == "" {
		return "", &MalformedError{ProviderID: p.cfg.ID, Reason: "response missing message content"}
	}
	return content, nil
}

func (p *OpenAI) GenerateStream(ctx context.Context, messages []Message, modelID string) (<-chan Chunk, error) {
	req, err := p.newRequest(ctx, modelID, messages, true)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, &StatusError{ProviderID: p.cfg.ID, Code: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	ch := make(chan Chunk, 32)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			data, ok := strings.CutPrefix(strings.TrimSpace(scanner.Text()), "data: ")
			if !ok || data == "" || data == "[DONE]" {
				continue
			}
			var event struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
				} `json:"choices"`
			}
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				continue
			}
			for _, choice := range event.Choices {
				if choice.Delta.Content != "" {
					ch <- Chunk{Text: choice.Delta.Content}
				}
			}
		}
		if err := scanner.Err(); err != nil {
			ch <- Chunk{Err: fmt.Errorf("%s: stream read: %w", p.cfg.ID, err)}
		}
	}()
	return ch, nil
}

// readErrorBody returns a short excerpt of an error response body.
func readErrorBody(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 512))
	return strings.TrimSpace(string(raw))
}
