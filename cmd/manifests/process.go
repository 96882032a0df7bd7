package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"manifests/internal/pdftext"
	"manifests/internal/pipeline"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process every PDF in a directory",
	Long: `Extract, normalize and deduplicate every manifest PDF in --dir, store
the run and write the workbook.

Examples:
  # Process a folder with the default output path
  manifests process --dir ./entrada

  # Explicit workbook and worker count
  manifests process --dir ./entrada --out reporte.xlsx --workers 8`,
	RunE: runProcess,
}

func init() {
	f := processCmd.Flags()
	f.String("dir", "", "directory with manifest PDFs")
	f.String("out", "", "output xlsx path (default: OUTPUT_DIR/manifiestos_<run>.xlsx)")
	f.Int("workers", 0, "concurrent documents (0=use WORKERS)")
	f.Bool("no-save", false, "skip storing the run in the database")
	_ = processCmd.MarkFlagRequired("dir")

	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, _ []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	out, _ := cmd.Flags().GetString("out")
	workers, _ := cmd.Flags().GetInt("workers")
	noSave, _ := cmd.Flags().GetBool("no-save")
	if workers <= 0 {
		workers = cfg.Workers
	}

	_, p, err := loadRules()
	if err != nil {
		return err
	}
	processor := pipeline.NewProcessor(p, pdftext.New(), workers)

	batch, err := processor.ProcessDirectory(cmd.Context(), dir)
	if err != nil {
		return err
	}

	if !noSave {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.SaveBatch(dir, batch, p.Assembler().Fares()); err != nil {
			return err
		}
	}

	if strings.TrimSpace(out) == "" {
		out = filepath.Join(cfg.OutputDir, fmt.Sprintf("manifiestos_%s.xlsx", batch.RunID))
	}
	if err := pipeline.ExportBatchToXLSX(batch, out); err != nil {
		return err
	}

	counts := batch.Counts()
	zap.L().Info("process done", zap.String("run_id", batch.RunID), zap.String("out", out))
	fmt.Printf("run=%s documents=%d accepted=%d duplicates=%d failures=%d out=%s\n",
		batch.RunID, counts.Documents, counts.Accepted, counts.Duplicates, counts.Failures, out)
	return nil
}
