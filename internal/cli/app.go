package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aidev-cli/aidev/internal/cache"
	"github.com/aidev-cli/aidev/internal/config"
	"github.com/aidev-cli/aidev/internal/history"
	"github.com/aidev-cli/aidev/internal/llm"
	"github.com/aidev-cli/aidev/internal/perf"
	"github.com/aidev-cli/aidev/internal/redact"
	"github.com/spf13/cobra"
)

// Shared ask/chat flags
var (
	flagModel       string
	flagTemperature float64
	flagNoCache     bool
	flagNoRedact    bool
	flagContext     []string
	flagFormat      string
	flagOut         string
	flagStream      bool
	flagPerf        bool
)

func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagModel, "model", "m", "", "Model name")
	cmd.Flags().Float64VarP(&flagTemperature, "temperature", "t", 0, "Sampling temperature (0 uses the configured default)")
	cmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "Bypass the response cache")
	cmd.Flags().BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
	cmd.Flags().BoolVar(&flagPerf, "perf", false, "Print performance metrics to stderr when done")
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagModel != "" {
		m["model"] = flagModel
	}
	if flagNoCache {
		m["noCache"] = "true"
	}
	return m
}

// openCache builds the response cache from config. Returns nil when caching
// is disabled; a broken cache degrades to nil with a warning rather than
// failing the command.
func openCache(cfg config.Config, log *slog.Logger) *cache.ResponseCache {
	if !cfg.Cache.Enabled {
		return nil
	}
	rc, err := cache.New(cache.Config{
		Dir:             cfg.Cache.Dir,
		MaxSizeMB:       cfg.Cache.MaxSizeMB,
		MaxMemoryItems:  cfg.Cache.MaxMemoryItems,
		EvictionPolicy:  cfg.Cache.EvictionPolicy,
		CleanupInterval: time.Duration(cfg.Cache.CleanupIntervalSeconds) * time.Second,
	}, log)
	if err != nil {
		log.Warn("cache unavailable, continuing without it", "error", err)
		return nil
	}
	return rc
}

// mustOpenCache is for cache management commands, where a broken cache is a
// real error rather than something to shrug off.
func mustOpenCache(cfg config.Config, log *slog.Logger) (*cache.ResponseCache, error) {
	rc, err := cache.New(cache.Config{
		Dir:             cfg.Cache.Dir,
		MaxSizeMB:       cfg.Cache.MaxSizeMB,
		MaxMemoryItems:  cfg.Cache.MaxMemoryItems,
		EvictionPolicy:  cfg.Cache.EvictionPolicy,
		CleanupInterval: time.Duration(cfg.Cache.CleanupIntervalSeconds) * time.Second,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return rc, nil
}

func openHistory(cfg config.Config, log *slog.Logger) (*history.Store, error) {
	path := cfg.History.Path
	if path == "" {
		p, err := history.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return history.Open(path, cfg.History.MaxEntries, log)
}

func newClient(cfg config.Config, model string, rc *cache.ResponseCache, tracker *perf.Tracker, log *slog.Logger) *llm.Client {
	return llm.New(llm.Options{
		APIURL:  cfg.APIURL,
		APIKey:  cfg.APIKey,
		Timeout: time.Duration(cfg.Timeout(model)) * time.Second,
		Cache:   rc,
		Perf:    tracker,
		Logger:  log,
	})
}

// buildPrompt assembles the final prompt from the question and any attached
// context files, applying redaction per config. Redaction happens here, before
// the prompt reaches the cache or the wire.
func buildPrompt(question string, contextFiles []string, cfg config.Config) (string, error) {
	redactSecrets := cfg.Privacy.RedactSecrets && !flagNoRedact
	if flagNoRedact && cfg.Privacy.RedactSecrets {
		fmt.Fprintln(os.Stderr, "WARNING: secret redaction is disabled")
	}

	var b strings.Builder
	if redactSecrets {
		b.WriteString(redact.Prompt(question))
	} else {
		b.WriteString(question)
	}

	for _, path := range contextFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading context file: %w", err)
		}
		content := string(data)
		if redactSecrets {
			content = redact.File(content, path, cfg.Privacy.RedactPaths)
		}
		b.WriteString("\n\nContext from ")
		b.WriteString(path)
		b.WriteString(":\n```\n")
		b.WriteString(strings.TrimRight(content, "\n"))
		b.WriteString("\n```")
	}
	return b.String(), nil
}

func reportError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if llm.IsAuthError(err) {
		exitCode = ExitAuthError
	} else {
		exitCode = ExitRuntimeError
	}
}
