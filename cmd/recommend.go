package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/core/recommend"
)

var recommendOpts struct {
	lat, lng    float64
	chargerType string
	limit       int
	asJSON      bool
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Rank stations for a position",
	RunE:  runRecommend,
}

func init() {
	f := recommendCmd.Flags()
	f.Float64Var(&recommendOpts.lat, "lat", model.DefaultLocation.Lat, "user latitude")
	f.Float64Var(&recommendOpts.lng, "lng", model.DefaultLocation.Lng, "user longitude")
	f.StringVar(&recommendOpts.chargerType, "charger", string(model.ChargerFast), "preferred charger type (rapid, fast, slow)")
	f.IntVar(&recommendOpts.limit, "limit", 5, "number of stations")
	f.BoolVar(&recommendOpts.asJSON, "json", false, "print the full result as JSON")
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	switch model.ChargerType(recommendOpts.chargerType) {
	case model.ChargerRapid, model.ChargerFast, model.ChargerSlow:
	default:
		return fmt.Errorf("unknown charger type %q", recommendOpts.chargerType)
	}
	svc, err := build(cmd.Context())
	if err != nil {
		return err
	}
	defer closeService(svc)

	res := svc.Engine.RecommendDetailed(cmd.Context(), recommend.Request{
		Location:    model.Location{Lat: recommendOpts.lat, Lng: recommendOpts.lng},
		Preferences: &model.Preferences{ChargerType: model.ChargerType(recommendOpts.chargerType)},
		Limit:       recommendOpts.limit,
	})
	out := cmd.OutOrStdout()
	if recommendOpts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintf(out, "source: %s", res.Source)
	if res.FallbackReason != "" {
		fmt.Fprintf(out, " (%s)", res.FallbackReason)
	}
	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tID\tSTATION\tSCORE\tWAIT(min)\tDISTANCE")
	for i, r := range res.Recommendations {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%.3f\t%d\t%.4f\n", i+1, r.Station.ID, r.Station.Name, r.Score, r.PredictedWaitTime, r.Distance)
	}
	return tw.Flush()
}
