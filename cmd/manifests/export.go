package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"manifests/internal/pipeline"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Rebuild the workbook of a stored run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		runID, _ := cmd.Flags().GetString("run")
		out, _ := cmd.Flags().GetString("out")

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		batch, err := db.LoadRun(runID)
		if err != nil {
			return err
		}
		if err := pipeline.ExportBatchToXLSX(batch, out); err != nil {
			return err
		}
		fmt.Printf("exported run=%s accepted=%d duplicates=%d to %s\n",
			runID, len(batch.Accepted), len(batch.Duplicates), out)
		return nil
	},
}

func init() {
	f := exportCmd.Flags()
	f.String("run", "", "run id")
	f.String("out", "", "output xlsx path")
	_ = exportCmd.MarkFlagRequired("run")
	_ = exportCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(exportCmd)
}
