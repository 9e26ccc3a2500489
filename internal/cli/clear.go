package cli

import (
	"github.com/spf13/cobra"

	"mmn-tracker/internal/app"
)

var clearSettings bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete cached snapshots, locations, and alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ClearOptions{
			ResetSettings: clearSettings,
		}

		return getApp().Clear(cmd.Context(), opts)
	},
}

func init() {
	clearCmd.Flags().BoolVar(&clearSettings, "settings", false, "Also reset stored settings to configured defaults")
}
