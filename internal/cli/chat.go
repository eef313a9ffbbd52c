package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aidev-cli/aidev/internal/config"
	"github.com/aidev-cli/aidev/internal/history"
	"github.com/aidev-cli/aidev/internal/output"
	"github.com/aidev-cli/aidev/internal/perf"
	"github.com/spf13/cobra"
)

// chatContextTurns is how many prior messages are replayed into each prompt
// so the model keeps conversational context.
const chatContextTurns = 10

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long:  "Chat runs a REPL against the configured model. Type /help inside the session for commands.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(buildOverrides())
		if err != nil {
			return err
		}
		runChat(cfg)
		return nil
	},
}

func runChat(cfg config.Config) {
	log := logger()
	tracker := perf.New()

	rc := openCache(cfg, log)
	if rc != nil {
		defer rc.Close()
	}

	store, err := openHistory(cfg, log)
	if err != nil {
		log.Warn("history unavailable, session will not persist", "error", err)
		store = nil
	} else {
		defer store.Close()
	}

	model := cfg.DefaultModel
	temperature := flagTemperature
	if temperature == 0 {
		temperature = cfg.Temperature(model)
	}
	client := newClient(cfg, model, rc, tracker, log)

	fmt.Fprintf(os.Stdout, "aidev chat (%s). Type /help for commands, /exit to leave.\n", model)

	// Session transcript, independent of persisted history.
	var session []history.Message

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(os.Stdout, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if done := chatCommand(line, &session, tracker); done {
				return
			}
			continue
		}

		prompt, err := buildPrompt(line, nil, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		full := chatPrompt(session, prompt)

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Timeout(model))*time.Second)
		resp, err := client.Stream(ctx, model, full, temperature, func(chunk string) error {
			_, err := fmt.Fprint(os.Stdout, chunk)
			return err
		})
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
			continue
		}
		fmt.Fprintln(os.Stdout)

		now := time.Now()
		session = append(session,
			history.Message{Role: history.RoleUser, Content: line, CreatedAt: now},
			history.Message{Role: history.RoleAssistant, Model: model, Content: resp.Text, CreatedAt: now},
		)
		if store != nil {
			recordCtx, recordCancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := store.Add(recordCtx, history.RoleUser, "", line); err == nil {
				store.Add(recordCtx, history.RoleAssistant, model, resp.Text)
			}
			recordCancel()
		}
	}
}

// chatPrompt prepends recent session turns so the model sees the dialogue.
func chatPrompt(session []history.Message, prompt string) string {
	if len(session) == 0 {
		return prompt
	}
	start := len(session) - chatContextTurns
	if start < 0 {
		start = 0
	}

	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	for _, m := range session[start:] {
		if m.Role == history.RoleAssistant {
			b.WriteString("Assistant: ")
		} else {
			b.WriteString("User: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString("\nUser: ")
	b.WriteString(prompt)
	return b.String()
}

// chatCommand handles a /slash command. Returns true when the session should end.
func chatCommand(line string, session *[]history.Message, tracker *perf.Tracker) bool {
	switch line {
	case "/exit", "/quit":
		return true
	case "/help":
		fmt.Fprintln(os.Stdout, "Commands: /exit, /clear (forget session context), /history, /perf")
	case "/clear":
		*session = nil
		fmt.Fprintln(os.Stdout, "Session context cleared.")
	case "/history":
		if err := output.HistoryText(os.Stdout, *session); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	case "/perf":
		if err := output.PerfText(os.Stdout, tracker.Snapshot()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	default:
		fmt.Fprintf(os.Stdout, "Unknown command %s. Try /help.\n", line)
	}
	return false
}

func init() {
	addModelFlags(chatCmd)
}
