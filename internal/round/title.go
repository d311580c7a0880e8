package round

import (
	"strings"

	"github.com/Hoarfrost42/Agent-Round/internal/store"
)

// GenerateTitle derives a short session title from the first user message:
// whitespace collapsed, truncated to maxLength with an ellipsis when longer.
// Empty input falls back to the default title.
func GenerateTitle(messages []store.Message, maxLength int) string {
	var base string
	for _, message := range messages {
		if message.Role == store.RoleUser {
			base = message.Content
			break
		}
	}
	if base == "" && len(messages) > 0 {
		base = messages[0].Content
	}
	normalized := strings.Join(strings.Fields(base), " ")
	if normalized == "" {
		return store.DefaultTitle
	}
	runes := []rune(normalized)
	if len(runes) > maxLength {
		normalized = strings.TrimRight(string(runes[:maxLength]), " ") + "..."
	}
	return normalized
}
