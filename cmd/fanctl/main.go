// Command fanctl runs single pipeline jobs against the configured database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fansapprove/internal/app"
	"fansapprove/internal/config"
	"fansapprove/internal/logger"
)

var (
	configPath string
	envOnly    bool
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := &cobra.Command{
		Use:           "fanctl",
		Short:         "Run fan-sentiment pipeline jobs once",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultConfig := os.Getenv("FA_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "config/config.yaml"
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfig, "config file")
	rootCmd.PersistentFlags().BoolVar(&envOnly, "env-only", false, "read configuration from FA_* variables only")

	rootCmd.AddCommand(
		newIngestCmd(),
		newReprocessCmd(),
		newAggregateCmd(),
		newRosterCmd(),
	)

	return rootCmd.ExecuteContext(ctx)
}

// openApp loads config and connects. The caller closes both.
func openApp(ctx context.Context) (*app.App, *zap.Logger, error) {
	cfg, err := config.Load(configPath, envOnly)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log, err := logger.New(cfg.Log, "fanctl")
	if err != nil {
		return nil, nil, fmt.Errorf("building logger: %w", err)
	}
	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, err
	}
	return a, log, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
