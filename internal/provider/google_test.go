package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGoogleGenerateURL(t *testing.T) {
	cases := []struct {
		base   string
		stream bool
		want   string
	}{
		{"", false, "https://generativelanguage.googleapis.com/v1beta/models/gemini-test:generateContent"},
		{"", true, "https://generativelanguage.googleapis.com/v1beta/models/gemini-test:streamGenerateContent?alt=sse"},
		{"https://proxy.example.com/v1beta/", false, "https://proxy.example.com/v1beta/models/gemini-test:generateContent"},
		{"https://proxy.example.com", false, "https://proxy.example.com/v1beta/models/gemini-test:generateContent"},
	}
	for _, tc := range cases {
		if got := googleGenerateURL(tc.base, "gemini-test", tc.stream); got != tc.want {
			t.Errorf("googleGenerateURL(%q, stream=%v) = %q, want %q", tc.base, tc.stream, got, tc.want)
		}
	}
}

func TestBuildContents(t *testing.T) {
	system, contents := buildContents([]Message{
		{Role: "system", Content: "rules"},
		{Role: "assistant", Content: "earlier answer"},
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "latest answer"},
	})
	if system == nil || system.Parts[0].Text != "rules" {
		t.Fatalf("system = %+v", system)
	}
	// Leading model turn gets a synthetic user turn in front, and a
	// trailing model turn gets a nudge appended.
	if len(contents) != 5 {
		t.Fatalf("contents len = %d, want 5", len(contents))
	}
	if contents[0].Role != "user" || contents[0].Parts[0].Text != " " {
		t.Errorf("leading turn = %+v", contents[0])
	}
	if contents[1].Role != "model" {
		t.Errorf("contents[1].Role = %q", contents[1].Role)
	}
	last := contents[len(contents)-1]
	if last.Role != "user" || !strings.Contains(last.Parts[0].Text, "roundtable") {
		t.Errorf("trailing turn = %+v", last)
	}
}

func TestBuildContentsSkipsEmpty(t *testing.T) {
	_, contents := buildContents([]Message{
		{Role: "user", Content: ""},
		{Role: "user", Content: "hi"},
	})
	if len(contents) != 1 {
		t.Fatalf("contents = %+v", contents)
	}
}

func TestGoogleGenerate(t *testing.T) {
	var gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"hello "},{"text":"world"}]}}]}`)
	}))
	defer srv.Close()

	p := NewGoogle(Config{ID: "gem", Type: "google", APIKey: "g-key", BaseURL: srv.URL}, srv.Client())
	got, err := p.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}}, "gemini-test")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "hello world" {
		t.Errorf("content = %q", got)
	}
	if gotKey != "g-key" {
		t.Errorf("x-goog-api-key = %q", gotKey)
	}
	if gotPath != "/v1beta/models/gemini-test:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestGoogleGenerateStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("alt") != "sse" {
			t.Errorf("alt query = %q", r.URL.Query().Get("alt"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"one \"}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"two\"}]}}]}\n\n")
	}))
	defer srv.Close()

	p := NewGoogle(Config{ID: "gem", Type: "google", APIKey: "g-key", BaseURL: srv.URL}, srv.Client())
	ch, err := p.GenerateStream(context.Background(), []Message{{Role: "user", Content: "hi"}}, "gemini-test")
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
	if sb.String() != "one two" {
		t.Errorf("streamed text = %q", sb.String())
	}
}
