package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evreco/infra/stationdb"
)

var seedCmd = &cobra.Command{
	Use:   "seed [fixtures.yaml]",
	Short: "Import stations and bookings from a YAML fixture file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	path := "fixtures.example.yaml"
	if len(args) == 1 {
		path = args[0]
	}
	f, err := stationdb.LoadFixtures(path)
	if err != nil {
		return err
	}
	svc, err := build(cmd.Context())
	if err != nil {
		return err
	}
	defer closeService(svc)

	res, err := svc.Repo.ImportFixtures(cmd.Context(), f)
	if err != nil {
		return fmt.Errorf("import fixtures: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d stations and %d bookings\n", res.Stations, res.Bookings)
	return nil
}
