package cli

import (
	"github.com/spf13/cobra"

	"mmn-tracker/internal/app"
)

var showAll bool

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display cached commodity prices",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ShowOptions{
			All: showAll,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().BoolVar(&showAll, "all", false, "Show every cached snapshot instead of the latest per commodity")
}
