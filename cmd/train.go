package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	apirecommend "github.com/kilianp07/evreco/api/recommend"
	"github.com/kilianp07/evreco/core/recommend"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the scoring model from historical bookings",
	RunE:  runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	svc, err := build(cmd.Context())
	if err != nil {
		return err
	}
	defer closeService(svc)

	rep, err := svc.Engine.TrainWithReport(cmd.Context())
	out := cmd.OutOrStdout()
	switch {
	case err == nil:
		fmt.Fprintf(out, "Model trained successfully: %d samples from %d eligible bookings (%d skipped), persisted=%t\n",
			rep.Assembled, rep.Eligible, rep.Skipped, rep.Persisted)
		for label, n := range rep.Labels {
			fmt.Fprintf(out, "  %-10s %d\n", label, n)
		}
		return nil
	case errors.Is(err, recommend.ErrInsufficientData):
		return errors.New(apirecommend.InsufficientDataMessage)
	default:
		return fmt.Errorf("training failed: %w", err)
	}
}
