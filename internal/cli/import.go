package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"goldwatch/internal/app"
)

var (
	importCSVPath string
	importDryRun  bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Backfill price history from a waktu,harga CSV file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if importCSVPath == "" {
			return fmt.Errorf("--csv must be provided")
		}

		opts := app.ImportOptions{
			CSVPath: importCSVPath,
			DryRun:  importDryRun,
		}

		return getApp().Import(cmd.Context(), opts)
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "Path of the CSV file to import")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Parse the file without writing to storage")
}
