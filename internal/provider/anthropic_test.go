package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem([]Message{
		{Role: "system", Content: "first"},
		{Role: "user", Content: "question"},
		{Role: "system", Content: "second"},
		{Role: "assistant", Content: "answer"},
	})
	if system != "first\nsecond" {
		t.Errorf("system = %q", system)
	}
	if len(rest) != 2 || rest[0].Role != "user" || rest[1].Role != "assistant" {
		t.Errorf("rest = %+v", rest)
	}
}

func TestAnthropicGenerate(t *testing.T) {
	var gotReq anthropicRequest
	var gotVersion, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotVersion = r.Header.Get("anthropic-version")
		gotKey = r.Header.Get("x-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"content":[{"type":"text","text":"part one"},{"type":"tool_use","text":"ignored"},{"type":"text","text":" part two"}]}`)
	}))
	defer srv.Close()

	p := NewAnthropic(Config{ID: "claude", Type: "anthropic", APIKey: "sk-ant", BaseURL: srv.URL}, srv.Client())
	got, err := p.Generate(context.Background(), []Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
	}, "claude-test")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "part one part two" {
		t.Errorf("content = %q", got)
	}
	if gotReq.System != "be brief" {
		t.Errorf("system field = %q", gotReq.System)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
	if gotReq.MaxTokens != anthropicMaxTokens {
		t.Errorf("max_tokens = %d", gotReq.MaxTokens)
	}
	if gotKey != "sk-ant" || gotVersion != anthropicVersion {
		t.Errorf("headers: key=%q version=%q", gotKey, gotVersion)
	}
}

func TestAnthropicDoesNotStream(t *testing.T) {
	p := NewAnthropic(Config{ID: "claude", APIKey: "k"}, nil)
	if p.SupportsStreaming() {
		t.Error("SupportsStreaming should be false")
	}
	if _, err := p.GenerateStream(context.Background(), nil, "claude-test"); err == nil {
		t.Error("GenerateStream should fail")
	}
}
