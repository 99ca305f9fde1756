package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evreco/core/decisionlog"
	"github.com/kilianp07/evreco/pkg/export"
)

var decisionOpts struct {
	start, end string
	stationID  int64
	source     string
	format     string
}

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Export served recommendations from the decision log",
	RunE:  runDecisions,
}

func init() {
	f := decisionsCmd.Flags()
	f.StringVar(&decisionOpts.start, "start", "", "only records at or after this RFC3339 time")
	f.StringVar(&decisionOpts.end, "end", "", "only records at or before this RFC3339 time")
	f.Int64Var(&decisionOpts.stationID, "station", 0, "only records that ranked this station")
	f.StringVar(&decisionOpts.source, "source", "", "only records from this source (model, rule_based)")
	f.StringVar(&decisionOpts.format, "format", "csv", "output format (csv, json)")
	rootCmd.AddCommand(decisionsCmd)
}

func runDecisions(cmd *cobra.Command, args []string) error {
	q := decisionlog.Query{StationID: decisionOpts.stationID, Source: decisionOpts.source}
	var err error
	if q.Start, err = parseTime(decisionOpts.start); err != nil {
		return fmt.Errorf("--start: %w", err)
	}
	if q.End, err = parseTime(decisionOpts.end); err != nil {
		return fmt.Errorf("--end: %w", err)
	}
	if decisionOpts.format != "csv" && decisionOpts.format != "json" {
		return fmt.Errorf("unknown format %q", decisionOpts.format)
	}

	svc, err := build(cmd.Context())
	if err != nil {
		return err
	}
	defer closeService(svc)

	records, err := svc.Decisions.Query(cmd.Context(), q)
	if err != nil {
		return err
	}
	if decisionOpts.format == "json" {
		return export.WriteJSON(cmd.OutOrStdout(), records)
	}
	return export.WriteCSV(cmd.OutOrStdout(), records)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
