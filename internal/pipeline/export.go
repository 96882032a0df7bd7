package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"manifests/internal"
)

const (
	SheetManifests  = "MANIFIESTOS"
	SheetDuplicates = "DUPLICADOS"
	SheetFailures   = "ERRORES"
	SheetTotals     = "TOTALES"
)

var manifestHeaders = []string{
	"PLACA", "CONDUCTOR", "ORIGEN", "DESTINO", "FECHA VIAJE", "MES",
	"ID", "KOF", "REMESA", "EMPRESA", "VALOR FLETE", "ARCHIVO PDF",
}

var duplicateHeaders = []string{"ARCHIVO PDF", "CLAVE", "VALOR", "DUPLICADO DE"}

var failureHeaders = []string{"ARCHIVO PDF", "ERROR"}

var totalHeaders = []string{"MES", "PLACA", "CONDUCTOR", "VIAJES", "TOTAL GANANCIA"}

func ExportBatchToXLSX(batch internal.BatchResult, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetManifests); err != nil {
		return eris.Wrap(err, "export: rename sheet")
	}
	if _, err := f.NewSheet(SheetDuplicates); err != nil {
		return eris.Wrap(err, "export: create duplicates sheet")
	}
	if _, err := f.NewSheet(SheetFailures); err != nil {
		return eris.Wrap(err, "export: create failures sheet")
	}

	writeRow(f, SheetManifests, 1, toAny(manifestHeaders))
	for i, r := range batch.Accepted {
		writeRow(f, SheetManifests, i+2, []any{
			r.Plate,
			r.Driver,
			r.Origin,
			r.Destination,
			r.TripDate.String(),
			r.Month,
			r.LoadID,
			strings.Join(r.BillingCodes, ", "),
			r.RemittanceCode,
			r.Company,
			r.FareValue,
			r.Source,
		})
	}

	writeRow(f, SheetDuplicates, 1, toAny(duplicateHeaders))
	for i, d := range batch.Duplicates {
		writeRow(f, SheetDuplicates, i+2, []any{d.Record.Source, string(d.Key.Kind), d.Key.Value, d.Original.Source})
	}

	writeRow(f, SheetFailures, 1, toAny(failureHeaders))
	for i, fail := range batch.Failures {
		msg := ""
		if fail.Err != nil {
			msg = fail.Err.Error()
		}
		writeRow(f, SheetFailures, i+2, []any{fail.Source, msg})
	}

	return save(f, outputPath)
}

// ExportTotalsToXLSX writes the monthly per-plate report.
func ExportTotalsToXLSX(totals []internal.PlateTotal, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetTotals); err != nil {
		return eris.Wrap(err, "export: rename sheet")
	}
	writeRow(f, SheetTotals, 1, toAny(totalHeaders))
	for i, t := range totals {
		writeRow(f, SheetTotals, i+2, []any{t.Month, t.Plate, t.Driver, t.Trips, t.Total})
	}
	return save(f, outputPath)
}

func save(f *excelize.File, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return eris.Wrap(err, "export: create output dir")
	}
	if err := f.SaveAs(outputPath); err != nil {
		return eris.Wrapf(err, "export: save %s", outputPath)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for col, v := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toAny(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}
