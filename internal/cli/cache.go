package cli

import (
	"fmt"
	"os"

	"github.com/aidev-cli/aidev/internal/config"
	"github.com/aidev-cli/aidev/internal/output"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the response cache",
}

var flagCacheFormat string

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(nil)
		if err != nil {
			return err
		}
		c, err := mustOpenCache(cfg, logger())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		defer c.Close()

		stats := c.Stats()
		if flagCacheFormat == "json" {
			return output.WriteJSON(os.Stdout, stats)
		}
		return output.StatsText(os.Stdout, stats)
	},
}

var flagOlderThanDays int

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached responses",
	Long:  "Clear removes all cached responses, or only those older than --older-than-days.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(nil)
		if err != nil {
			return err
		}
		c, err := mustOpenCache(cfg, logger())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		defer c.Close()

		removed, freed := c.Clear(flagOlderThanDays)
		fmt.Fprintf(os.Stdout, "Removed %d entries (%d bytes freed).\n", removed, freed)
		return nil
	},
}

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run an eviction pass now",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(nil)
		if err != nil {
			return err
		}
		c, err := mustOpenCache(cfg, logger())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		defer c.Close()

		c.Cleanup(true)
		return output.StatsText(os.Stdout, c.Stats())
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheCleanupCmd)

	cacheStatsCmd.Flags().StringVar(&flagCacheFormat, "format", "text", "Output format (text, json)")
	cacheClearCmd.Flags().IntVar(&flagOlderThanDays, "older-than-days", 0, "Only remove entries created more than this many days ago")
}
