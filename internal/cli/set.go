package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"mmn-tracker/internal/app"
)

var (
	setZip         string
	setCommodities []string
	setUnit        string
	setInterval    int
	setRetention   int
)

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Update tracked-location and polling preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SetOptions{}

		if cmd.Flags().Changed("zip") {
			opts.Zip = &setZip
		}
		if cmd.Flags().Changed("commodities") {
			opts.Commodities = setCommodities
		}
		if cmd.Flags().Changed("unit") {
			opts.Unit = &setUnit
		}
		if cmd.Flags().Changed("interval") {
			opts.Interval = &setInterval
		}
		if cmd.Flags().Changed("retention") {
			opts.Retention = &setRetention
		}

		if opts.Zip == nil && opts.Commodities == nil && opts.Unit == nil && opts.Interval == nil && opts.Retention == nil {
			return fmt.Errorf("nothing to change; pass at least one flag")
		}

		return getApp().Set(cmd.Context(), opts)
	},
}

func init() {
	setCmd.Flags().StringVar(&setZip, "zip", "", "Preferred ZIP code")
	setCmd.Flags().StringSliceVar(&setCommodities, "commodities", nil, "Comma-separated list of tracked commodities")
	setCmd.Flags().StringVar(&setUnit, "unit", "", "Preferred price unit")
	setCmd.Flags().IntVar(&setInterval, "interval", 0, "Poll interval in minutes")
	setCmd.Flags().IntVar(&setRetention, "retention", 0, "Snapshot retention in days")
}
