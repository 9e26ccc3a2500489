package cli

import (
	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run a single sync cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Refresh(cmd.Context())
	},
}
