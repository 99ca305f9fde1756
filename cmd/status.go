package cmd

import (
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show model and booking status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	svc, err := build(cmd.Context())
	if err != nil {
		return err
	}
	defer closeService(svc)

	svc.Engine.Warm()
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(svc.Engine.Status(cmd.Context()))
}
