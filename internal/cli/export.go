package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"mmn-tracker/internal/app"
)

var (
	exportCSVPath string
	exportPNGPath string
	exportMaxRows int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export cached snapshots as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportCSVPath == "" && exportPNGPath == "" {
			return fmt.Errorf("at least one of --csv or --png is required")
		}

		opts := app.ExportOptions{
			CSVPath: exportCSVPath,
			PNGPath: exportPNGPath,
			MaxRows: exportMaxRows,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().IntVar(&exportMaxRows, "max-rows", 0, "Maximum rows to export (defaults to config)")
}
