package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChatCompletionsURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"", "https://api.openai.com/v1/chat/completions"},
		{"https://api.openai.com/v1", "https://api.openai.com/v1/chat/completions"},
		{"http://localhost:11434/v1/", "http://localhost:11434/v1/chat/completions"},
		{"https://example.com", "https://example.com/v1/chat/completions"},
	}
	for _, tc := range cases {
		if got := chatCompletionsURL(tc.base); got != tc.want {
			t.Errorf("chatCompletionsURL(%q) = %q, want %q", tc.base, got, tc.want)
		}
	}
}

func TestOpenAIGenerate(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"choices":[{"message":{"content":"hello there"}}]}`)
	}))
	defer srv.Close()

	p := NewOpenAI(Config{ID: "oa", Type: "openai", APIKey: "sk-test", BaseURL: srv.URL}, srv.Client())
	got, err := p.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}}, "gpt-test")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "hello there" {
		t.Errorf("content = %q", got)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestOpenAIGenerateStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAI(Config{ID: "oa", Type: "openai", APIKey: "k", BaseURL: srv.URL}, srv.Client())
	_, err := p.Generate(context.Background(), nil, "gpt-test")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("want StatusError, got %v", err)
	}
	if statusErr.HTTPStatus() != http.StatusTooManyRequests {
		t.Errorf("status = %d", statusErr.HTTPStatus())
	}
}

func TestOpenAIGenerateMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	p := NewOpenAI(Config{ID: "oa", Type: "openai", APIKey: "k", BaseURL: srv.URL}, srv.Client())
	_, err := p.Generate(context.Background(), nil, "gpt-test")
	var malformed *MalformedError
	if !errors.As(err, &malformed) {
		t.Fatalf("want MalformedError, got %v", err)
	}
}

func TestOpenAIMissingKey(t *testing.T) {
	p := NewOpenAI(Config{ID: "oa", Type: "openai"}, nil)
	if _, err := p.Generate(context.Background(), nil, "gpt-test"); err == nil {
		t.Fatal("want error for missing API key")
	}

	// Ollama-compatible backends run without credentials.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected Authorization header %q", r.Header.Get("Authorization"))
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()
	local := NewOpenAI(Config{ID: "local", Type: "ollama", BaseURL: srv.URL}, srv.Client())
	if _, err := local.Generate(context.Background(), nil, "llama3"); err != nil {
		t.Fatalf("ollama without key: %v", err)
	}
}

func TestOpenAIGenerateStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewOpenAI(Config{ID: "oa", Type: "openai", APIKey: "k", BaseURL: srv.URL}, srv.Client())
	ch, err := p.GenerateStream(context.Background(), []Message{{Role: "user", Content: "hi"}}, "gpt-test")
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	var sb strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			t.Fatalf("chunk error: %v", chunk.Err)
		}
		sb.WriteString(chunk.Text)
	}
	if sb.String() != "Hello" {
		t.Errorf("streamed text = %q", sb.String())
	}
}

func TestOpenAIGenerateStreamSetupError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewOpenAI(Config{ID: "oa", Type: "openai", APIKey: "k", BaseURL: srv.URL}, srv.Client())
	ch, err := p.GenerateStream(context.Background(), nil, "gpt-test")
	if err == nil {
		t.Fatal("want setup error before any chunk")
	}
	if ch != nil {
		t.Error("channel should be nil on setup failure")
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.HTTPStatus() != http.StatusInternalServerError {
		t.Errorf("err = %v", err)
	}
}
