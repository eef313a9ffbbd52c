package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aidev-cli/aidev/internal/config"
	"github.com/aidev-cli/aidev/internal/llm"
	"github.com/aidev-cli/aidev/internal/output"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Model server management",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List models available on the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(nil)
		if err != nil {
			return err
		}
		client := newClient(cfg, cfg.DefaultModel, nil, nil, logger())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		models, err := client.ListModels(ctx)
		if err != nil {
			reportError(err)
			return nil
		}
		return output.ModelsText(os.Stdout, models)
	},
}

var modelsDoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the model server is reachable and the default model exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(buildOverrides())
		if err != nil {
			return err
		}
		client := newClient(cfg, cfg.DefaultModel, nil, nil, logger())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		fmt.Fprintf(os.Stdout, "Checking %s...\n", client.BaseURL())

		v, err := client.Version(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
			if llm.IsAuthError(err) {
				exitCode = ExitAuthError
			} else {
				exitCode = ExitRuntimeError
			}
			return nil
		}
		fmt.Fprintf(os.Stdout, "OK: server responding (version %s)\n", v)

		models, err := client.ListModels(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FAIL: listing models: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		for _, m := range models {
			if m.Name == cfg.DefaultModel {
				fmt.Fprintf(os.Stdout, "OK: default model %s is available\n", cfg.DefaultModel)
				return nil
			}
		}
		fmt.Fprintf(os.Stderr, "WARN: default model %s not found on server (%d models available)\n",
			cfg.DefaultModel, len(models))
		return nil
	},
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsDoctorCmd)
	modelsDoctorCmd.Flags().StringVarP(&flagModel, "model", "m", "", "Model name to check")
}
