package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	appLog "calnorm/internal/log"
	"calnorm/internal/rules"
)

var importOverwrite bool

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and import stored rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List title and location rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := rules.NewFileRepository(cfg.RulesPath).Load()
		if err != nil {
			return err
		}
		return printRules(cmd.OutOrStdout(), store)
	},
}

var rulesImportCmd = &cobra.Command{
	Use:   "import <rules.json>",
	Short: "Import rules from a JSON rule file of earlier versions",
	Long: `Imports a config.json of earlier versions into the rule store. Its
"naming" section maps titles to {SUMMARY, DESCRIPTION}, its "location"
section maps locations to {LOCATION, GEO}. Existing rules win unless
--overwrite is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read legacy rules: %w", err)
		}
		imported, err := rules.ImportLegacy(data)
		if err != nil {
			return err
		}

		repo := rules.NewFileRepository(cfg.RulesPath)
		store, err := repo.Load()
		if err != nil {
			return err
		}
		n := store.Merge(imported, importOverwrite)
		if err := repo.Save(store); err != nil {
			return err
		}

		appLog.Info("rules imported", "source", args[0], "changed", n, "rules", cfg.RulesPath)
		fmt.Fprintf(cmd.OutOrStdout(), "%d rules imported into %s\n", n, cfg.RulesPath)
		return nil
	},
}

func printRules(w io.Writer, store *rules.Store) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TITLE\tREPLACEMENT\tDESCRIPTION")
	for _, k := range store.TitleKeys() {
		r := store.Titles[k]
		if r.Suppressed() {
			fmt.Fprintf(tw, "%s\t(suppressed)\t\n", k)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", k, r.Title, r.Description)
	}
	fmt.Fprintln(tw, "\t\t")
	fmt.Fprintln(tw, "LOCATION\tREPLACEMENT\tGEO")
	for _, k := range store.LocationKeys() {
		r := store.Locations[k]
		fmt.Fprintf(tw, "%s\t%s\t%s\n", k, r.Location, r.Geo)
	}
	return tw.Flush()
}

func init() {
	rulesImportCmd.Flags().BoolVar(&importOverwrite, "overwrite", false, "Replace existing rules with imported ones")
	rulesCmd.AddCommand(rulesListCmd, rulesImportCmd)
	rootCmd.AddCommand(rulesCmd)
}
