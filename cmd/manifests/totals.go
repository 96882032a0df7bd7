package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"manifests/internal/pipeline"
)

var totalsCmd = &cobra.Command{
	Use:   "totals",
	Short: "Monthly earnings and trip counts per plate",
	Long: `Sum stored fares per month and plate. Trips without a month or a
plate are left out.

Examples:
  manifests totals
  manifests totals --out totales.xlsx`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, _ := cmd.Flags().GetString("out")

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		totals, err := db.MonthlyTotalsByPlate()
		if err != nil {
			return err
		}
		if strings.TrimSpace(out) != "" {
			if err := pipeline.ExportTotalsToXLSX(totals, out); err != nil {
				return err
			}
			fmt.Printf("exported %d rows to %s\n", len(totals), out)
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "MES\tPLACA\tCONDUCTOR\tVIAJES\tTOTAL")
		for _, t := range totals {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", t.Month, t.Plate, t.Driver, t.Trips, t.Total)
		}
		return w.Flush()
	},
}

func init() {
	totalsCmd.Flags().String("out", "", "write the report to an xlsx file instead of stdout")
	rootCmd.AddCommand(totalsCmd)
}
