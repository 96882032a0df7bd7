package storage

import (
	"strings"

	"github.com/rotisserie/eris"

	"manifests/internal"
	"manifests/internal/pipeline"
)

// plateNotFound is how older sheets wrote a missing plate.
const plateNotFound = "NO ENCONTRADA"

// MonthlyTotalsByPlate sums fares and counts trips per month and plate
// over every stored manifest. Records without a month or a plate are left
// out. Rows are ordered by month name, then plate.
func (d *DB) MonthlyTotalsByPlate() ([]internal.PlateTotal, error) {
	rows, err := d.conn.Query(`
WITH t AS (
  SELECT id, month, UPPER(TRIM(plate)) AS plate, driver, fareValue
  FROM manifests
  WHERE month NOT IN ('', ?) AND UPPER(TRIM(plate)) NOT IN ('', ?, ?)
)
SELECT month, plate, SUM(fareValue), COUNT(1),
       (SELECT f.driver FROM t f WHERE f.month = t.month AND f.plate = t.plate ORDER BY f.id ASC LIMIT 1)
FROM t
GROUP BY month, plate
ORDER BY month ASC, plate ASC`, pipeline.MonthNotFound, internal.NotFound, plateNotFound)
	if err != nil {
		return nil, eris.Wrap(err, "storage: monthly totals")
	}
	defer rows.Close()

	var out []internal.PlateTotal
	for rows.Next() {
		var row internal.PlateTotal
		if err := rows.Scan(&row.Month, &row.Plate, &row.Total, &row.Trips, &row.Driver); err != nil {
			return nil, eris.Wrap(err, "storage: scan monthly total")
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// SearchByLoadID returns stored manifests whose load id contains query,
// ignoring case. An empty query matches nothing.
func (d *DB) SearchByLoadID(query string) ([]internal.ManifestRecord, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	return d.listManifests(`WHERE loadId != ? AND instr(LOWER(loadId), ?) > 0 ORDER BY id ASC`, internal.NotFound, q)
}
