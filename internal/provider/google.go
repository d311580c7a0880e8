package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const googleDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Google talks to the Gemini generateContent APIs.
type Google struct {
	cfg    Config
	client *http.Client
}

func NewGoogle(cfg Config, client *http.Client) *Google {
	if client == nil {
		client = http.DefaultClient
	}
	return &Google{cfg: cfg, client: client}
}

func (p *Google) SupportsStreaming() bool { return true }

func googleGenerateURL(baseURL, modelID string, stream bool) string {
	base := strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = googleDefaultBaseURL
	}
	if !strings.HasSuffix(base, "/v1beta") && !strings.HasSuffix(base, "/v1") {
		base += "/v1beta"
	}
	if stream {
		return fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", base, modelID)
	}
	return fmt.Sprintf("%s/models/%s:generateContent", base, modelID)
}

type googlePart struct {
	Text string `json:"text"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googleRequest struct {
	SystemInstruction *googleContent  `json:"system_instruction,omitempty"`
	Contents          []googleContent `json:"contents"`
}

// buildContents maps chat history into Gemini contents. Gemini needs the
// first entry to be a user turn, and returns empty output when the last
// turn is a model turn, so both cases get a synthetic user entry.
func buildContents(messages []Message) (*googleContent, []googleContent) {
	var systemParts []string
	var contents []googleContent
	for _, message := range messages {
		if message.Content == "" {
			continue
		}
		switch message.Role {
		case "system":
			systemParts = append(systemParts, message.Content)
		case "assistant":
			contents = append(contents, googleContent{Role: "model", Parts: []googlePart{{Text: message.Content}}})
		default:
			contents = append(contents, googleContent{Role: "user", Parts: []googlePart{{Text: message.Content}}})
		}
	}

	var system *googleContent
	if len(systemParts) > 0 {
		system = &googleContent{Parts: []googlePart{{Text: strings.Join(systemParts, "\n")}}}
	}
	if len(contents) > 0 && contents[0].Role == "model" {
		contents = append([]googleContent{{Role: "user", Parts: []googlePart{{Text: " "}}}}, contents...)
	}
	if len(contents) > 0 && contents[len(contents)-1].Role == "model" {
		contents = append(contents, googleContent{
			Role:  "user",
			Parts: []googlePart{{Text: "As a participant in this roundtable, provide your own analysis and perspective on the discussion so far."}},
		})
	}
	return system, contents
}

func extractGoogleText(payload googleResponse) string {
	var sb strings.Builder
	for _, candidate := range payload.Candidates {
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

type googleResponse struct {
	Candidates []struct {
		Content struct {
			Parts []googlePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (p *Google) newRequest(ctx context.Context, modelID string, messages []Message, stream bool) (*http.Request, error) {
	if p.cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: API key is required", p.cfg.ID)
	}
	system, contents := buildContents(messages)
	body, err := json.Marshal(googleRequest{SystemInstruction: system, Contents: contents})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, googleGenerateURL(p.cfg.BaseURL, modelID, stream), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.cfg.APIKey)
	return req, nil
}

func (p *Google) Generate(ctx context.Context, messages []Message, modelID string) (string, error) {
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

	var payload googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", &MalformedError{ProviderID: p.cfg.ID, Reason: err.Error()}
	}
	text := extractGoogleText(payload)
	if text == "" {
		return "", &MalformedError{ProviderID: p.cfg.ID, Reason: "response missing candidate text"}
	}
	return text, nil
}

func (p *Google) GenerateStream(ctx context.Context, messages []Message, modelID string) (<-chan Chunk, error) {
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
			if !ok || data == "" {
				continue
			}
			var payload googleResponse
			if err := json.Unmarshal([]byte(data), &payload); err != nil {
				continue
			}
			if text := extractGoogleText(payload); text != "" {
				ch <- Chunk{Text: text}
			}
		}
		if err := scanner.Err(); err != nil {
			ch <- Chunk{Err: fmt.Errorf("%s: stream read: %w", p.cfg.ID, err)}
		}
	}()
	return ch, nil
}
