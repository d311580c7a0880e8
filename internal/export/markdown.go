// internal/export/markdown.go
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Hoarfrost42/Agent-Round/internal/store"
)

// DisplayName resolves a model id to its configured display name. A nil
// resolver falls back to the raw id.
type DisplayName func(modelID string) string

// SessionMarkdown renders a session transcript as markdown, grouped by round.
func SessionMarkdown(session store.Session, displayName DisplayName) string {
	var sb strings.Builder

	sb.WriteString("# ")
	sb.WriteString(session.Title)
	sb.WriteString("\n\n")

	sb.WriteString("---\n\n")
	sb.WriteString(fmt.Sprintf("**Session ID:** `%s`\n\n", session.ID))
	sb.WriteString(fmt.Sprintf("**Created:** %s\n\n", session.CreatedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("**Status:** %s\n\n", session.Status))

	if len(session.SelectedModels) > 0 {
		names := make([]string, len(session.SelectedModels))
		for i, modelID := range session.SelectedModels {
			names[i] = resolveName(displayName, modelID)
		}
		sb.WriteString("**Participants:** ")
		sb.WriteString(strings.Join(names, ", "))
		sb.WriteString("\n\n")
	}

	sb.WriteString("---\n\n")

	currentRound := 0
	for i, msg := range session.Messages {
		if msg.RoundIndex != currentRound {
			currentRound = msg.RoundIndex
			sb.WriteString(fmt.Sprintf("## Round %d\n\n", currentRound))
		}

		ts := msg.Timestamp.Format("15:04:05")
		sb.WriteString(fmt.Sprintf("### [%s] %s%s\n\n", ts, speakerName(msg, displayName), statusSuffix(msg.Status)))

		content := strings.TrimSpace(msg.Content)
		if containsCodeBlock(content) {
			// Content already has code blocks, render as-is
			sb.WriteString(content)
			sb.WriteString("\n")
		} else {
			for _, line := range strings.Split(content, "\n") {
				sb.WriteString("> ")
				sb.WriteString(line)
				sb.WriteString("\n")
			}
		}
		sb.WriteString("\n")

		if i < len(session.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("\n---\n\n")
	sb.WriteString(fmt.Sprintf("*Exported on %s*\n", time.Now().Format("2006-01-02 15:04:05")))

	return sb.String()
}

// WriteSession exports a session transcript to <baseDir>/exports as a
// markdown file and returns its path.
func WriteSession(session store.Session, displayName DisplayName, baseDir string) (string, error) {
	datePart := session.CreatedAt.Format("2006-01-02")
	namePart := sanitizeFilename(session.Title)
	filename := fmt.Sprintf("%s-%s.md", datePart, namePart)

	exportsDir := filepath.Join(baseDir, "exports")
	if err := os.MkdirAll(exportsDir, 0755); err != nil {
		return "", fmt.Errorf("create exports directory: %w", err)
	}

	path := filepath.Join(exportsDir, filename)
	content := SessionMarkdown(session, displayName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

func speakerName(msg store.Message, displayName DisplayName) string {
	if msg.Role == store.RoleUser {
		return "User"
	}
	return resolveName(displayName, msg.ModelID)
}

func resolveName(displayName DisplayName, modelID string) string {
	if displayName != nil {
		if name := displayName(modelID); name != "" {
			return name
		}
	}
	return modelID
}

func statusSuffix(status string) string {
	switch status {
	case store.MessageError:
		return " (failed)"
	case store.MessageSkipped:
		return " (skipped)"
	default:
		return ""
	}
}

// sanitizeFilename removes/replaces characters unsuitable for filenames
func sanitizeFilename(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "-")

	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
			sb.WriteRune(r)
		case r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '-' || r == '_':
			sb.WriteRune(r)
		}
	}

	result := sb.String()
	for strings.Contains(result, "--") {
		result = strings.ReplaceAll(result, "--", "-")
	}
	result = strings.Trim(result, "-")
	if result == "" {
		result = "session"
	}
	if len(result) > 50 {
		result = result[:50]
	}
	return result
}

// containsCodeBlock checks if content already has markdown code blocks
func containsCodeBlock(content string) bool {
	return strings.Contains(content, "```")
}
