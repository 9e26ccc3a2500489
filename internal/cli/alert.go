package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Manage price alerts",
}

var alertAddCmd = &cobra.Command{
	Use:   "add <commodity> <condition>",
	Short: "Create a price alert, e.g. alert add corn \">=4.50\"",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().AddAlert(cmd.Context(), args[0], args[1])
	},
}

var alertListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ListAlerts(cmd.Context())
	},
}

var alertRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete an alert by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] == "" {
			return fmt.Errorf("alert id is required")
		}
		return getApp().RemoveAlert(cmd.Context(), args[0])
	},
}

func init() {
	alertCmd.AddCommand(alertAddCmd)
	alertCmd.AddCommand(alertListCmd)
	alertCmd.AddCommand(alertRemoveCmd)
}
