package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"calnorm/internal/ics"
)

var (
	previewDays int
	previewFrom string
)

var previewCmd = &cobra.Command{
	Use:   "preview <file.ics>",
	Short: "List upcoming occurrences of an ICS file",
	Long: `Expands recurring events of an ICS file (input or normalized output) and
lists the occurrences in a window, to check the result of a run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		doc, err := ics.Decode(body)
		if err != nil {
			return err
		}

		from := time.Now().Truncate(24 * time.Hour)
		if previewFrom != "" {
			from, err = time.ParseInLocation("2006-01-02", previewFrom, time.Local)
			if err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
		}
		if previewDays <= 0 {
			previewDays = 14
		}

		occ, err := doc.Preview(ics.PreviewOptions{
			From: from,
			To:   from.AddDate(0, 0, previewDays),
		})
		if err != nil {
			return err
		}
		return printOccurrences(cmd.OutOrStdout(), occ)
	},
}

func printOccurrences(w io.Writer, occ []ics.Occurrence) error {
	if len(occ) == 0 {
		_, err := fmt.Fprintln(w, "no events in window")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, o := range occ {
		when := o.Start.Format("Mon 2006-01-02 15:04") + "-" + o.End.Format("15:04")
		if o.AllDay {
			when = o.Start.Format("Mon 2006-01-02") + " (all day)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", when, o.Summary, o.Location)
	}
	return tw.Flush()
}

func init() {
	previewCmd.Flags().IntVar(&previewDays, "days", 14, "Number of days to list")
	previewCmd.Flags().StringVar(&previewFrom, "from", "", "First day (YYYY-MM-DD, default today)")
	rootCmd.AddCommand(previewCmd)
}
