package output

import (
	"io"
	"strings"
	"time"

	"github.com/aidev-cli/aidev/internal/history"
)

// HistoryMarkdown renders conversation history as a markdown transcript.
func HistoryMarkdown(w io.Writer, msgs []history.Message) error {
	ew := &errWriter{w: w}

	ew.println("# Conversation History")
	ew.println("")
	ew.printf("Exported: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	ew.println("")

	for _, m := range msgs {
		heading := "User"
		if m.Role == history.RoleAssistant {
			heading = "Assistant"
			if m.Model != "" {
				heading += " (" + m.Model + ")"
			}
		}
		ew.printf("## %s - %s\n", heading, m.CreatedAt.Local().Format("2006-01-02 15:04"))
		ew.println("")
		ew.println(strings.TrimRight(m.Content, "\n"))
		ew.println("")
	}
	return ew.err
}

// HistoryText renders conversation history as a compact plain-text listing.
func HistoryText(w io.Writer, msgs []history.Message) error {
	ew := &errWriter{w: w}

	if len(msgs) == 0 {
		ew.println("No history.")
		return ew.err
	}
	for _, m := range msgs {
		role := m.Role
		if m.Role == history.RoleAssistant && m.Model != "" {
			role = m.Role + "/" + m.Model
		}
		ew.printf("[%s] %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04"), role)
		for _, line := range strings.Split(strings.TrimRight(m.Content, "\n"), "\n") {
			ew.printf("  %s\n", line)
		}
	}
	return ew.err
}
