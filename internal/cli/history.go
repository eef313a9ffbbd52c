package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aidev-cli/aidev/internal/config"
	"github.com/aidev-cli/aidev/internal/output"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage conversation history",
}

var flagHistoryLimit int

var historyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show recent conversation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(nil)
		if err != nil {
			return err
		}
		store, err := openHistory(cfg, logger())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		msgs, err := store.Messages(ctx, flagHistoryLimit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		return output.HistoryText(os.Stdout, msgs)
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all conversation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(nil)
		if err != nil {
			return err
		}
		store, err := openHistory(cfg, logger())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		removed, err := store.Clear(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		fmt.Fprintf(os.Stdout, "Removed %d messages.\n", removed)
		return nil
	},
}

var flagHistoryOut string

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export conversation history as markdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(nil)
		if err != nil {
			return err
		}
		store, err := openHistory(cfg, logger())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		msgs, err := store.Messages(ctx, 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		return output.ToFile(flagHistoryOut, func(w io.Writer) error {
			return output.HistoryMarkdown(w, msgs)
		})
	},
}

func init() {
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyExportCmd)

	historyShowCmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", 20, "Maximum messages to show (0 for all)")
	historyExportCmd.Flags().StringVarP(&flagHistoryOut, "out", "o", "", "Output file path (default: stdout)")
}
