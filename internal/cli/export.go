package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"goldwatch/internal/app"
)

var (
	exportFrom string
	exportTo   string
	exportLast time.Duration
	exportOpts app.ExportOptions
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write stored prices to a waktu,harga CSV and/or a PNG chart",
	Example: `  goldwatch export --csv data_emas.csv
  goldwatch export --last 24h --png harga.png
  goldwatch export --from 2026-10-01 --to "2026-10-08 12:00" --csv minggu.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp()
		opts := exportOpts

		if exportLast > 0 {
			if exportFrom != "" {
				return fmt.Errorf("--last and --from cannot be combined")
			}
			from := time.Now().Add(-exportLast)
			opts.From = &from
		}
		if exportFrom != "" {
			from, err := a.ParseTime(exportFrom)
			if err != nil {
				return fmt.Errorf("invalid --from value: %w", err)
			}
			opts.From = &from
		}
		if exportTo != "" {
			to, err := a.ParseTime(exportTo)
			if err != nil {
				return fmt.Errorf("invalid --to value: %w", err)
			}
			opts.To = &to
		}

		return a.Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Start, inclusive (RFC3339 or 2006-01-02[ 15:04[:05]] in the schedule timezone)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "End, exclusive (same formats as --from)")
	exportCmd.Flags().DurationVar(&exportLast, "last", 0, "Export only the trailing window, e.g. 24h")
	exportCmd.Flags().StringVar(&exportOpts.PNGPath, "png", "", "Write a price chart to this PNG file")
	exportCmd.Flags().StringVar(&exportOpts.CSVPath, "csv", "", "Write waktu,harga rows to this CSV file")
	exportCmd.Flags().IntVar(&exportOpts.MaxPoints, "max-points", 0, "Downsample to at most this many points (defaults to export.max_data_points)")
}
