package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifests/internal"
)

type flatFares struct{ value int64 }

func (f flatFares) Verify(r internal.ManifestRecord) bool { return r.FareValue == f.value }

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "manifests.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleBatch(runID string, started time.Time) internal.BatchResult {
	first := internal.ManifestRecord{
		Source:         "1.pdf",
		LoadID:         "4471203",
		Driver:         "JUAN PEREZ",
		Plate:          "TSK482",
		TripDate:       internal.TripDate{Status: internal.DateValid, ISO: "2025-10-02", Raw: "02.102025"},
		ReturnDate:     internal.TripDate{Status: internal.DateInvalid, Raw: "31.02.2025"},
		DepartureTime:  "08:30",
		ReturnTime:     internal.NotFound,
		Month:          "OCTUBRE",
		Origin:         "BARRANQUILLA",
		Destination:    "SOLEDAD",
		DestinationRaw: "Soledad",
		BillingCodes:   []string{"612345678", "687654321"},
		CodeCount:      2,
		RemittanceCode: "KBQ1",
		Company:        "EMPRESA",
		FareValue:      280000,
		Status:         internal.StatusPending,
		ProcessedAt:    started.Add(time.Second),
	}
	third := first
	third.Source = "3.pdf"
	third.LoadID = "99"
	third.BillingCodes = []string{}
	third.CodeCount = 0

	dup := first
	dup.Source = "2.pdf"

	return internal.BatchResult{
		RunID:           runID,
		Accepted:        []internal.ManifestRecord{first, third},
		AcceptedIndexes: []int{0, 3},
		Duplicates: []internal.Duplicate{{
			Index: 1, Record: dup, Key: internal.KeyOf(dup), OriginalIndex: 0, Original: first,
		}},
		Failures:   []internal.DocumentFailure{{Source: "4.pdf", Err: errors.New("no text layer")}},
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
	}
}

func TestSaveAndLoadRun(t *testing.T) {
	db := openTestDB(t)
	started := time.Date(2025, 10, 4, 12, 0, 0, 0, time.UTC)
	batch := sampleBatch("run-1", started)

	require.NoError(t, db.SaveBatch("/inbox", batch, flatFares{value: 280000}))

	got, err := db.LoadRun("run-1")
	require.NoError(t, err)

	assert.Equal(t, started, got.StartedAt)
	assert.Equal(t, batch.Accepted, got.Accepted)
	assert.Equal(t, []int{0, 3}, got.AcceptedIndexes)

	require.Len(t, got.Duplicates, 1)
	assert.Equal(t, 1, got.Duplicates[0].Index)
	assert.Equal(t, "2.pdf", got.Duplicates[0].Record.Source)
	assert.Equal(t, internal.DuplicateKey{Kind: internal.KeyLoadID, Value: "4471203"}, got.Duplicates[0].Key)
	assert.Equal(t, "1.pdf", got.Duplicates[0].Original.Source)

	require.Len(t, got.Failures, 1)
	assert.EqualError(t, got.Failures[0].Err, "no text layer")
}

func TestSaveBatchRejectsFareDrift(t *testing.T) {
	db := openTestDB(t)
	batch := sampleBatch("run-1", time.Now().UTC())

	err := db.SaveBatch("/inbox", batch, flatFares{value: 250000})
	require.Error(t, err)

	runs, err := db.ListRuns(10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSaveBatchDuplicateRunIDRollsBack(t *testing.T) {
	db := openTestDB(t)
	batch := sampleBatch("run-1", time.Now().UTC())
	require.NoError(t, db.SaveBatch("/inbox", batch, flatFares{value: 280000}))
	require.Error(t, db.SaveBatch("/inbox", batch, flatFares{value: 280000}))

	all, err := db.ListManifests()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestListRunsNewestFirst(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.SaveBatch("/a", sampleBatch("old", base), flatFares{value: 280000}))
	require.NoError(t, db.SaveBatch("/b", sampleBatch("new", base.Add(time.Hour)), flatFares{value: 280000}))

	runs, err := db.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "/b", runs[0].SourceDir)
	assert.Equal(t, internal.BatchCounts{Documents: 4, Accepted: 2, Duplicates: 1, Failures: 1}, runs[0].Counts)
	assert.Equal(t, "old", runs[1].ID)

	runs, err = db.ListRuns(1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestLoadRunMissing(t *testing.T) {
	db := openTestDB(t)
	_, err := db.LoadRun("nope")
	assert.Error(t, err)
}

func TestSeenDocuments(t *testing.T) {
	db := openTestDB(t)

	seen, err := db.IsSeen("abc")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, db.MarkSeen("abc", "1.pdf"))
	require.NoError(t, db.MarkSeen("abc", "copia.pdf"))

	seen, err = db.IsSeen("abc")
	require.NoError(t, err)
	assert.True(t, seen)
}
