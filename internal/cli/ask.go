package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aidev-cli/aidev/internal/config"
	"github.com/aidev-cli/aidev/internal/history"
	"github.com/aidev-cli/aidev/internal/output"
	"github.com/aidev-cli/aidev/internal/perf"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Ask the model a single question",
	Long:  "Ask sends one prompt to the configured model. The prompt comes from the arguments, or from stdin when no arguments are given. Identical prompts are answered from the local cache.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(buildOverrides())
		if err != nil {
			return err
		}

		question := strings.TrimSpace(strings.Join(args, " "))
		if question == "" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
				exitCode = ExitRuntimeError
				return nil
			}
			question = strings.TrimSpace(string(data))
		}
		if question == "" {
			return fmt.Errorf("empty prompt")
		}

		runAsk(cfg, question)
		return nil
	},
}

func runAsk(cfg config.Config, question string) {
	log := logger()

	prompt, err := buildPrompt(question, flagContext, cfg)
	if err != nil {
		reportError(err)
		return
	}

	var tracker *perf.Tracker
	if flagPerf {
		tracker = perf.New()
	}

	rc := openCache(cfg, log)
	if rc != nil {
		defer rc.Close()
	}

	model := cfg.DefaultModel
	temperature := flagTemperature
	if temperature == 0 {
		temperature = cfg.Temperature(model)
	}

	client := newClient(cfg, model, rc, tracker, log)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Timeout(model))*time.Second)
	defer cancel()

	var resp struct {
		text    string
		cached  bool
		elapsed time.Duration
	}

	if flagStream && flagFormat != "json" && flagOut == "" {
		r, err := client.Stream(ctx, model, prompt, temperature, func(chunk string) error {
			_, err := fmt.Fprint(os.Stdout, chunk)
			return err
		})
		if err != nil {
			reportError(err)
			return
		}
		fmt.Fprintln(os.Stdout)
		resp.text, resp.cached, resp.elapsed = r.Text, r.Cached, r.Elapsed
	} else {
		r, err := client.Generate(ctx, model, prompt, temperature)
		if err != nil {
			reportError(err)
			return
		}
		resp.text, resp.cached, resp.elapsed = r.Text, r.Cached, r.Elapsed

		answer := &output.Answer{
			Model:     model,
			Response:  r.Text,
			Cached:    r.Cached,
			ElapsedMs: r.Elapsed.Milliseconds(),
		}
		if err := output.WriteAnswer(answer, flagFormat, flagOut); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			exitCode = ExitRuntimeError
			return
		}
	}

	if resp.cached {
		log.Debug("answer served from cache", "elapsed", resp.elapsed)
	}

	recordExchange(cfg, log, model, question, resp.text)

	if flagPerf && tracker != nil {
		fmt.Fprintln(os.Stderr)
		if err := output.PerfText(os.Stderr, tracker.Snapshot()); err != nil {
			log.Warn("rendering perf metrics", "error", err)
		}
	}
}

// recordExchange persists the turn to history. History is a convenience, so
// failures are logged and never affect the answer already delivered.
func recordExchange(cfg config.Config, log *slog.Logger, model, question, answer string) {
	store, err := openHistory(cfg, log)
	if err != nil {
		log.Warn("history unavailable", "error", err)
		return
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.Add(ctx, history.RoleUser, "", question); err != nil {
		log.Warn("recording prompt", "error", err)
		return
	}
	if err := store.Add(ctx, history.RoleAssistant, model, answer); err != nil {
		log.Warn("recording answer", "error", err)
	}
}

func init() {
	addModelFlags(askCmd)
	askCmd.Flags().BoolVar(&flagStream, "stream", false, "Stream the response as it is generated")
	askCmd.Flags().StringSliceVarP(&flagContext, "context", "c", nil, "Attach a file as context (repeatable)")
	askCmd.Flags().StringVarP(&flagFormat, "format", "f", "text", "Output format (text, json)")
	askCmd.Flags().StringVarP(&flagOut, "out", "o", "", "Output file path (default: stdout)")
}
