package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"calnorm/internal/config"
	"calnorm/internal/fileutil"
	appLog "calnorm/internal/log"
	"calnorm/internal/prompt"
	"calnorm/internal/tui"
)

var (
	runOutput string
	runUI     string
	runListen string
)

var runCmd = &cobra.Command{
	Use:   "run <input.ics>",
	Short: "Normalize an ICS file, asking for every unknown title and location",
	Long: `Reads an ICS file, asks for a replacement for every title and location
that has no rule yet, stores the new rules and writes the normalized calendar.

Leave the new title empty to drop all events with that title. Pressing esc
(or cancelling in the browser) aborts the run without writing anything.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ui := cfg.UI
		if runUI != "" {
			ui = runUI
		}
		listen := cfg.Listen
		if runListen != "" {
			listen = runListen
		}

		input := args[0]
		body, err := os.ReadFile(input)
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		ctx := cmd.Context()
		terminal := tui.New()

		var p prompt.Prompter
		switch ui {
		case config.UITerminal:
			p = terminal
		case config.UIWeb:
			front := startWebFrontend(ctx, cfg, listen)
			defer front.stop()
			p = front.prompts
			fmt.Fprintf(cmd.ErrOrStderr(), "Open http://%s to answer prompts\n", listen)
		default:
			return fmt.Errorf("unknown ui %q (want %q or %q)", ui, config.UITerminal, config.UIWeb)
		}

		out, _, err := newNormalizer(cfg).normalize(ctx, body, p)
		if err != nil {
			return err
		}

		dest := runOutput
		if dest == "" {
			dest, err = terminal.ChooseOutput(ctx, input)
			if err != nil {
				return err
			}
		}
		if err := fileutil.WriteFileAtomic(dest, out, 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		appLog.Info("output written", "path", dest, "bytes", len(out))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Output file (asked interactively when empty)")
	runCmd.Flags().StringVar(&runUI, "ui", "", "Prompt front-end: tui or web (overrides config)")
	runCmd.Flags().StringVar(&runListen, "listen", "", "Listen address for --ui web (overrides config)")
	rootCmd.AddCommand(runCmd)
}
