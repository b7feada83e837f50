package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"calnorm/internal/config"
	"calnorm/internal/engine"
	appLog "calnorm/internal/log"
	"calnorm/internal/tui"
)

var (
	configPath string
	rulesPath  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "calnorm",
	Short: "Normalize calendar feeds with learned title and location rules",
	Long: `calnorm rewrites the events of an ICS file using rules you build up
interactively: every unknown title is renamed or suppressed once, every
unknown location gets an address and coordinates once. Later runs apply
the stored rules without asking.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			appLog.SetLevel(appLog.LevelDebug)
		}
	},
}

// Execute runs the CLI and returns the process exit code: 0 on success,
// 2 when a rule was missing after resolution, 1 for everything else.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return exitCode(rootCmd.ExecuteContext(ctx))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, engine.ErrMissingRule):
		appLog.Error("rule missing after resolution; this is a bug", err)
		return 2
	case errors.Is(err, engine.ErrAborted), errors.Is(err, tui.ErrNoDestination):
		appLog.Warn("aborted, nothing written", "reason", err.Error())
		return 1
	default:
		appLog.Error("calnorm failed", err)
		return 1
	}
}

// loadConfig reads the config file and applies global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if rulesPath != "" {
		cfg.RulesPath = rulesPath
	}
	if !verbose {
		appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	}
	appLog.Debug("effective config",
		"config", configPath,
		"rules", cfg.RulesPath,
		"ui", cfg.UI,
		"listen", cfg.Listen,
		"feed_schedule", cfg.Feed.Schedule,
	)
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "Path to config file")
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "Path to rule store (overrides rules_path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}
