package round

import (
	"testing"

	"github.com/Hoarfrost42/Agent-Round/internal/store"
)

func TestGenerateTitle(t *testing.T) {
	cases := []struct {
		name      string
		messages  []store.Message
		maxLength int
		want      string
	}{
		{
			"collapsed and truncated",
			[]store.Message{{Role: store.RoleUser, Content: "  What should we build today?   "}},
			12,
			"What should...",
		},
		{
			"short message kept as is",
			[]store.Message{{Role: store.RoleUser, Content: "Hello"}},
			24,
			"Hello",
		},
		{
			"inner whitespace collapsed",
			[]store.Message{{Role: store.RoleUser, Content: "a\n\tb   c"}},
			24,
			"a b c",
		},
		{
			"whitespace only falls back",
			[]store.Message{{Role: store.RoleUser, Content: "   \n\t "}},
			24,
			store.DefaultTitle,
		},
		{
			"no messages falls back",
			nil,
			24,
			store.DefaultTitle,
		},
		{
			"first user message wins over assistant",
			[]store.Message{
				{Role: store.RoleAssistant, ModelID: "gpt-4o", Content: "assistant text"},
				{Role: store.RoleUser, Content: "the real question"},
			},
			24,
			"the real question",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := GenerateTitle(tc.messages, tc.maxLength); got != tc.want {
				t.Errorf("GenerateTitle() = %q, want %q", got, tc.want)
			}
		})
	}
}
