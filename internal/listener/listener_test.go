package listener

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifests/internal"
	"manifests/internal/config"
	"manifests/internal/pipeline"
	"manifests/internal/rules"
	"manifests/internal/storage"
)

type plainText struct{}

func (plainText) ExtractText(_ context.Context, content []byte) (string, error) {
	return string(content), nil
}

func writeManifest(t *testing.T, dir, name, loadID string) {
	t.Helper()
	text := fmt.Sprintf("ARCHIVO %s\nFecha: 02.10.2025 Hora: 08:00\nLOAD ID # %s\nExp. Soledad (ATL)\nKOF 612345678\n", name, loadID)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644))
}

func newTestService(t *testing.T, db *storage.DB, cfg config.Config) *Service {
	t.Helper()
	p, err := pipeline.New(rules.Default())
	require.NoError(t, err)
	svc, err := NewService(db, cfg, p, plainText{})
	require.NoError(t, err)
	return svc
}

func TestRunCycle(t *testing.T) {
	root := t.TempDir()
	cfg := config.Config{
		InboxDir:        filepath.Join(root, "inbox"),
		OutputDir:       filepath.Join(root, "out"),
		Workers:         2,
		WatchAutoExport: true,
	}
	require.NoError(t, EnsureInbox(cfg.InboxDir))

	db, err := storage.Open(filepath.Join(root, "manifests.db"))
	require.NoError(t, err)
	defer db.Close()

	svc := newTestService(t, db, cfg)
	ctx := context.Background()

	writeManifest(t, cfg.InboxDir, "a.pdf", "100")
	writeManifest(t, cfg.InboxDir, "b.pdf", "100")
	require.NoError(t, svc.RunCycle(ctx))

	runs, err := db.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Counts.Accepted)
	assert.Equal(t, 1, runs[0].Counts.Duplicates)

	exported, err := filepath.Glob(filepath.Join(cfg.OutputDir, "watcher", "*.xlsx"))
	require.NoError(t, err)
	assert.Len(t, exported, 1)

	// nothing new: no run is stored
	require.NoError(t, svc.RunCycle(ctx))
	runs, err = db.ListRuns(10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	writeManifest(t, cfg.InboxDir, "c.pdf", "100")
	writeManifest(t, cfg.InboxDir, "d.pdf", "200")
	require.NoError(t, svc.RunCycle(ctx))

	runs, err = db.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	second, err := db.LoadRun(runs[0].ID)
	require.NoError(t, err)
	require.Len(t, second.Accepted, 1)
	assert.Equal(t, "d.pdf", second.Accepted[0].Source)
	require.Len(t, second.Duplicates, 1)
	assert.Equal(t, "c.pdf", second.Duplicates[0].Record.Source)
	assert.Equal(t, -1, second.Duplicates[0].OriginalIndex)
	assert.Equal(t, "a.pdf", second.Duplicates[0].Original.Source)
}

func TestNewServiceSeedsFromStoredRecords(t *testing.T) {
	root := t.TempDir()
	cfg := config.Config{InboxDir: filepath.Join(root, "inbox"), OutputDir: root, Workers: 1}
	require.NoError(t, EnsureInbox(cfg.InboxDir))

	db, err := storage.Open(filepath.Join(root, "manifests.db"))
	require.NoError(t, err)
	defer db.Close()

	writeManifest(t, cfg.InboxDir, "a.pdf", "300")
	require.NoError(t, newTestService(t, db, cfg).RunCycle(context.Background()))

	writeManifest(t, cfg.InboxDir, "b.pdf", "300")
	restarted := newTestService(t, db, cfg)
	require.NoError(t, restarted.RunCycle(context.Background()))

	all, err := db.ListManifests()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "a.pdf", all[0].Source)
}

func TestRunStopsWithContext(t *testing.T) {
	root := t.TempDir()
	cfg := config.Config{InboxDir: filepath.Join(root, "inbox"), OutputDir: root, Workers: 1, WatchIntervalSec: 60}
	require.NoError(t, EnsureInbox(cfg.InboxDir))

	db, err := storage.Open(filepath.Join(root, "manifests.db"))
	require.NoError(t, err)
	defer db.Close()

	writeManifest(t, cfg.InboxDir, "a.pdf", "400")
	svc := newTestService(t, db, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, svc.Run(ctx))

	runs, err := db.ListRuns(10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

// failingStore refuses the first saves it is asked for.
type failingStore struct {
	*storage.DB
	failures int
}

func (s *failingStore) SaveBatch(sourceDir string, batch internal.BatchResult, fares storage.FareChecker) error {
	if s.failures > 0 {
		s.failures--
		return eris.New("database is locked")
	}
	return s.DB.SaveBatch(sourceDir, batch, fares)
}

func TestRunCycleRetriesAfterFailedSave(t *testing.T) {
	root := t.TempDir()
	cfg := config.Config{InboxDir: filepath.Join(root, "inbox"), OutputDir: root, Workers: 1}
	require.NoError(t, EnsureInbox(cfg.InboxDir))

	db, err := storage.Open(filepath.Join(root, "manifests.db"))
	require.NoError(t, err)
	defer db.Close()

	store := &failingStore{DB: db, failures: 1}
	p, err := pipeline.New(rules.Default())
	require.NoError(t, err)
	svc, err := NewService(store, cfg, p, plainText{})
	require.NoError(t, err)

	writeManifest(t, cfg.InboxDir, "a.pdf", "777")
	require.Error(t, svc.RunCycle(context.Background()))

	seen, err := db.ListManifests()
	require.NoError(t, err)
	require.Empty(t, seen)

	require.NoError(t, svc.RunCycle(context.Background()))

	all, err := db.ListManifests()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "a.pdf", all[0].Source)

	runs, err := db.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 0, runs[0].Counts.Duplicates)

	// a later copy with the same load id still points at the stored record
	writeManifest(t, cfg.InboxDir, "b.pdf", "777")
	require.NoError(t, svc.RunCycle(context.Background()))
	all, err = db.ListManifests()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestContentHash(t *testing.T) {
	assert.Equal(t, contentHash([]byte("x")), contentHash([]byte("x")))
	assert.NotEqual(t, contentHash([]byte("x")), contentHash([]byte("y")))
	assert.Len(t, contentHash(nil), 64)
}
