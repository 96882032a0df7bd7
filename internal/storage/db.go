package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"manifests/internal"
)

// FareChecker recomputes a record's fare; records whose stored fare
// disagrees are refused.
type FareChecker interface {
	Verify(r internal.ManifestRecord) bool
}

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrap(err, "storage: create db dir")
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "storage: open")
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, eris.Wrap(err, "storage: enable wal")
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  sourceDir TEXT NOT NULL,
  startedAt TEXT NOT NULL,
  finishedAt TEXT NOT NULL,
  countsJson TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS manifests (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  batchIndex INTEGER NOT NULL,
  source TEXT NOT NULL,
  loadId TEXT NOT NULL,
  driver TEXT NOT NULL,
  plate TEXT NOT NULL,
  tripDate TEXT,
  tripDateStatus TEXT NOT NULL,
  tripDateRaw TEXT,
  returnDate TEXT,
  returnDateStatus TEXT NOT NULL,
  returnDateRaw TEXT,
  departureTime TEXT NOT NULL,
  returnTime TEXT NOT NULL,
  month TEXT NOT NULL,
  origin TEXT NOT NULL,
  destination TEXT NOT NULL,
  destinationRaw TEXT NOT NULL,
  billingCodesJson TEXT NOT NULL,
  codeCount INTEGER NOT NULL,
  remittanceCode TEXT NOT NULL,
  company TEXT NOT NULL,
  fareValue INTEGER NOT NULL,
  status TEXT NOT NULL,
  processedAt TEXT NOT NULL,
  UNIQUE(runId, batchIndex),
  FOREIGN KEY(runId) REFERENCES runs(id)
);
CREATE INDEX IF NOT EXISTS idx_manifests_loadId ON manifests(loadId);
CREATE INDEX IF NOT EXISTS idx_manifests_remittance ON manifests(remittanceCode);

CREATE TABLE IF NOT EXISTS duplicates (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  batchIndex INTEGER NOT NULL,
  source TEXT NOT NULL,
  keyKind TEXT NOT NULL,
  keyValue TEXT NOT NULL,
  originalIndex INTEGER NOT NULL,
  originalSource TEXT NOT NULL,
  FOREIGN KEY(runId) REFERENCES runs(id)
);

CREATE TABLE IF NOT EXISTS failures (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  source TEXT NOT NULL,
  error TEXT NOT NULL,
  FOREIGN KEY(runId) REFERENCES runs(id)
);

CREATE TABLE IF NOT EXISTS seen_documents (
  hash TEXT PRIMARY KEY,
  source TEXT NOT NULL,
  firstSeenAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	if _, err := d.conn.Exec(schema); err != nil {
		return eris.Wrap(err, "storage: init schema")
	}
	return nil
}

// SaveBatch stores a processed batch in one transaction. Accepted records
// are stored with their position in the batch; duplicates keep a pointer
// to the record they collided with.
func (d *DB) SaveBatch(sourceDir string, batch internal.BatchResult, fares FareChecker) error {
	for _, r := range batch.Accepted {
		if !fares.Verify(r) {
			return eris.Errorf("storage: fare %d of %s does not match destination %s with %d codes",
				r.FareValue, r.Source, r.Destination, r.CodeCount)
		}
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return eris.Wrap(err, "storage: begin")
	}
	defer func() { _ = tx.Rollback() }()

	countsJSON, _ := json.Marshal(batch.Counts())
	if _, err := tx.Exec(`INSERT INTO runs (id, sourceDir, startedAt, finishedAt, countsJson) VALUES (?, ?, ?, ?, ?)`,
		batch.RunID, sourceDir, formatTime(batch.StartedAt), formatTime(batch.FinishedAt), string(countsJSON)); err != nil {
		return eris.Wrap(err, "storage: insert run")
	}

	stmt, err := tx.Prepare(`
INSERT INTO manifests (
  runId, batchIndex, source, loadId, driver, plate,
  tripDate, tripDateStatus, tripDateRaw, returnDate, returnDateStatus, returnDateRaw,
  departureTime, returnTime, month, origin, destination, destinationRaw,
  billingCodesJson, codeCount, remittanceCode, company, fareValue, status, processedAt
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "storage: prepare manifest insert")
	}
	defer stmt.Close()

	for i, r := range batch.Accepted {
		position := i
		if i < len(batch.AcceptedIndexes) {
			position = batch.AcceptedIndexes[i]
		}
		codesJSON, _ := json.Marshal(r.BillingCodes)
		if _, err := stmt.Exec(
			batch.RunID, position, r.Source, r.LoadID, r.Driver, r.Plate,
			r.TripDate.ISO, string(r.TripDate.Status), r.TripDate.Raw,
			r.ReturnDate.ISO, string(r.ReturnDate.Status), r.ReturnDate.Raw,
			r.DepartureTime, r.ReturnTime, r.Month, r.Origin, r.Destination, r.DestinationRaw,
			string(codesJSON), r.CodeCount, r.RemittanceCode, r.Company, r.FareValue, string(r.Status),
			formatTime(r.ProcessedAt),
		); err != nil {
			return eris.Wrapf(err, "storage: insert manifest %s", r.Source)
		}
	}

	for _, dup := range batch.Duplicates {
		if _, err := tx.Exec(`
INSERT INTO duplicates (runId, batchIndex, source, keyKind, keyValue, originalIndex, originalSource)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
			batch.RunID, dup.Index, dup.Record.Source, string(dup.Key.Kind), dup.Key.Value, dup.OriginalIndex, dup.Original.Source); err != nil {
			return eris.Wrapf(err, "storage: insert duplicate %s", dup.Record.Source)
		}
	}

	for _, f := range batch.Failures {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		if _, err := tx.Exec(`INSERT INTO failures (runId, source, error) VALUES (?, ?, ?)`, batch.RunID, f.Source, msg); err != nil {
			return eris.Wrapf(err, "storage: insert failure %s", f.Source)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "storage: commit batch")
	}
	return nil
}

func (d *DB) ListRuns(limit int) ([]internal.RunRow, error) {
	rows, err := d.conn.Query(`
SELECT id, sourceDir, startedAt, finishedAt, countsJson
FROM runs ORDER BY startedAt DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "storage: list runs")
	}
	defer rows.Close()

	var out []internal.RunRow
	for rows.Next() {
		var row internal.RunRow
		var countsJSON string
		if err := rows.Scan(&row.ID, &row.SourceDir, &row.StartedAt, &row.FinishedAt, &countsJSON); err != nil {
			return nil, eris.Wrap(err, "storage: scan run")
		}
		_ = json.Unmarshal([]byte(countsJSON), &row.Counts)
		out = append(out, row)
	}
	return out, rows.Err()
}

// LoadRun rebuilds the batch result of a stored run for export.
func (d *DB) LoadRun(runID string) (internal.BatchResult, error) {
	var started, finished string
	err := d.conn.QueryRow(`SELECT startedAt, finishedAt FROM runs WHERE id = ?`, runID).Scan(&started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return internal.BatchResult{}, eris.Errorf("storage: run not found: %s", runID)
	}
	if err != nil {
		return internal.BatchResult{}, eris.Wrap(err, "storage: load run")
	}

	out := internal.BatchResult{RunID: runID, StartedAt: parseTime(started), FinishedAt: parseTime(finished)}
	if out.Accepted, err = d.listManifests(`WHERE runId = ? ORDER BY batchIndex ASC`, runID); err != nil {
		return internal.BatchResult{}, err
	}
	irows, err := d.conn.Query(`SELECT batchIndex FROM manifests WHERE runId = ? ORDER BY batchIndex ASC`, runID)
	if err != nil {
		return internal.BatchResult{}, eris.Wrap(err, "storage: load positions")
	}
	defer irows.Close()
	for irows.Next() {
		var position int
		if err := irows.Scan(&position); err != nil {
			return internal.BatchResult{}, eris.Wrap(err, "storage: scan position")
		}
		out.AcceptedIndexes = append(out.AcceptedIndexes, position)
	}
	if err := irows.Err(); err != nil {
		return internal.BatchResult{}, eris.Wrap(err, "storage: positions")
	}

	rows, err := d.conn.Query(`
SELECT batchIndex, source, keyKind, keyValue, originalIndex, originalSource
FROM duplicates WHERE runId = ? ORDER BY batchIndex ASC`, runID)
	if err != nil {
		return internal.BatchResult{}, eris.Wrap(err, "storage: load duplicates")
	}
	defer rows.Close()
	for rows.Next() {
		var dup internal.Duplicate
		var kind string
		if err := rows.Scan(&dup.Index, &dup.Record.Source, &kind, &dup.Key.Value, &dup.OriginalIndex, &dup.Original.Source); err != nil {
			return internal.BatchResult{}, eris.Wrap(err, "storage: scan duplicate")
		}
		dup.Key.Kind = internal.KeyKind(kind)
		out.Duplicates = append(out.Duplicates, dup)
	}
	if err := rows.Err(); err != nil {
		return internal.BatchResult{}, eris.Wrap(err, "storage: duplicates")
	}

	frows, err := d.conn.Query(`SELECT source, error FROM failures WHERE runId = ? ORDER BY id ASC`, runID)
	if err != nil {
		return internal.BatchResult{}, eris.Wrap(err, "storage: load failures")
	}
	defer frows.Close()
	for frows.Next() {
		var source, msg string
		if err := frows.Scan(&source, &msg); err != nil {
			return internal.BatchResult{}, eris.Wrap(err, "storage: scan failure")
		}
		out.Failures = append(out.Failures, internal.DocumentFailure{Source: source, Err: errors.New(msg)})
	}
	return out, frows.Err()
}

// ListManifests returns every accepted record in the order it was stored.
func (d *DB) ListManifests() ([]internal.ManifestRecord, error) {
	return d.listManifests(`ORDER BY id ASC`)
}

func (d *DB) listManifests(where string, args ...any) ([]internal.ManifestRecord, error) {
	rows, err := d.conn.Query(`
SELECT source, loadId, driver, plate,
       tripDate, tripDateStatus, tripDateRaw, returnDate, returnDateStatus, returnDateRaw,
       departureTime, returnTime, month, origin, destination, destinationRaw,
       billingCodesJson, codeCount, remittanceCode, company, fareValue, status, processedAt
FROM manifests `+where, args...)
	if err != nil {
		return nil, eris.Wrap(err, "storage: list manifests")
	}
	defer rows.Close()

	var out []internal.ManifestRecord
	for rows.Next() {
		var r internal.ManifestRecord
		var tripStatus, returnStatus, codesJSON, status, processedAt string
		if err := rows.Scan(
			&r.Source, &r.LoadID, &r.Driver, &r.Plate,
			&r.TripDate.ISO, &tripStatus, &r.TripDate.Raw, &r.ReturnDate.ISO, &returnStatus, &r.ReturnDate.Raw,
			&r.DepartureTime, &r.ReturnTime, &r.Month, &r.Origin, &r.Destination, &r.DestinationRaw,
			&codesJSON, &r.CodeCount, &r.RemittanceCode, &r.Company, &r.FareValue, &status, &processedAt,
		); err != nil {
			return nil, eris.Wrap(err, "storage: scan manifest")
		}
		r.TripDate.Status = internal.DateStatus(tripStatus)
		r.ReturnDate.Status = internal.DateStatus(returnStatus)
		r.Status = internal.RecordStatus(status)
		r.ProcessedAt = parseTime(processedAt)
		_ = json.Unmarshal([]byte(codesJSON), &r.BillingCodes)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) IsSeen(hash string) (bool, error) {
	var n int
	if err := d.conn.QueryRow(`SELECT COUNT(1) FROM seen_documents WHERE hash = ?`, hash).Scan(&n); err != nil {
		return false, eris.Wrap(err, "storage: seen lookup")
	}
	return n > 0, nil
}

func (d *DB) MarkSeen(hash, source string) error {
	_, err := d.conn.Exec(`INSERT INTO seen_documents (hash, source) VALUES (?, ?) ON CONFLICT(hash) DO NOTHING`, hash, source)
	if err != nil {
		return eris.Wrap(err, "storage: mark seen")
	}
	return nil
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
