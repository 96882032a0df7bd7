package listener

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"manifests/internal"
	"manifests/internal/config"
	"manifests/internal/pipeline"
	"manifests/internal/storage"
)

// Store is the persistence the watcher needs.
type Store interface {
	ListManifests() ([]internal.ManifestRecord, error)
	IsSeen(hash string) (bool, error)
	MarkSeen(hash, source string) error
	SaveBatch(sourceDir string, batch internal.BatchResult, fares storage.FareChecker) error
}

// Service polls the inbox directory and processes PDFs it has not seen
// before. Duplicates are resolved against everything stored so far, not
// only the current cycle.
type Service struct {
	db        Store
	cfg       config.Config
	pipeline  *pipeline.Pipeline
	processor *pipeline.Processor
	deduper   *pipeline.Deduper
}

func NewService(db Store, cfg config.Config, p *pipeline.Pipeline, text pipeline.TextExtractor) (*Service, error) {
	stored, err := db.ListManifests()
	if err != nil {
		return nil, err
	}
	deduper := pipeline.NewDeduper()
	for _, r := range stored {
		deduper.Observe(r)
	}
	return &Service{
		db:        db,
		cfg:       cfg,
		pipeline:  p,
		processor: pipeline.NewProcessor(p, text, cfg.Workers),
		deduper:   deduper,
	}, nil
}

// settleDelay gives a scanner time to finish writing a new file before
// the cycle reads it.
const settleDelay = 2 * time.Second

// Run processes the inbox every WATCH_INTERVAL_SEC and additionally as
// soon as a PDF appears in it.
func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.WatchIntervalSec) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	wake, stop := s.watchInbox()
	defer stop()

	for {
		if err := s.RunCycle(ctx); err != nil {
			zap.L().Error("watcher cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		case <-wake:
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(settleDelay):
			}
		}
	}
}

// watchInbox signals new or rewritten PDFs in the inbox. When file
// notifications are unavailable the channel never fires and Run falls
// back to polling.
func (s *Service) watchInbox() (<-chan struct{}, func()) {
	wake := make(chan struct{}, 1)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		zap.L().Warn("inbox notifications unavailable, polling only", zap.Error(err))
		return wake, func() {}
	}
	if err := w.Add(s.cfg.InboxDir); err != nil {
		_ = w.Close()
		zap.L().Warn("cannot watch inbox, polling only", zap.String("dir", s.cfg.InboxDir), zap.Error(err))
		return wake, func() {}
	}

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
					continue
				}
				if !strings.HasSuffix(strings.ToLower(ev.Name), ".pdf") {
					continue
				}
				select {
				case wake <- struct{}{}:
				default:
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				zap.L().Warn("inbox watch error", zap.Error(err))
			}
		}
	}()

	return wake, func() { _ = w.Close() }
}

// RunCycle processes one snapshot of the inbox.
func (s *Service) RunCycle(ctx context.Context) error {
	docs, err := pipeline.ListDocuments(s.cfg.InboxDir)
	if err != nil {
		return err
	}

	fresh := make([]pipeline.Document, 0, len(docs))
	hashes := make([]string, 0, len(docs))
	for _, doc := range docs {
		blob, err := doc.Load()
		if err != nil {
			zap.L().Warn("cannot read inbox document", zap.String("source", doc.Name), zap.Error(err))
			continue
		}
		hash := contentHash(blob)
		seen, err := s.db.IsSeen(hash)
		if err != nil {
			return err
		}
		if seen {
			continue
		}
		fresh = append(fresh, pipeline.Document{Name: doc.Name, Load: func() ([]byte, error) { return blob, nil }})
		hashes = append(hashes, hash)
	}
	if len(fresh) == 0 {
		return nil
	}

	batch, err := s.processor.ProcessBatch(ctx, fresh)
	if err != nil {
		return err
	}
	batch = s.crossCycleDedup(batch)

	if err := s.db.SaveBatch(s.cfg.InboxDir, batch, s.pipeline.Assembler().Fares()); err != nil {
		return err
	}
	// only stored records may become originals of later duplicates
	for _, r := range batch.Accepted {
		s.deduper.Observe(r)
	}
	for i, doc := range fresh {
		if err := s.db.MarkSeen(hashes[i], doc.Name); err != nil {
			return err
		}
	}

	if s.cfg.WatchAutoExport && len(batch.Accepted)+len(batch.Duplicates) > 0 {
		out := filepath.Join(s.cfg.OutputDir, "watcher", fmt.Sprintf("manifiestos_%s.xlsx", batch.RunID))
		if err := pipeline.ExportBatchToXLSX(batch, out); err != nil {
			return err
		}
	}

	counts := batch.Counts()
	zap.L().Info("watcher cycle done",
		zap.String("run_id", batch.RunID),
		zap.Int("new_documents", len(fresh)),
		zap.Int("accepted", counts.Accepted),
		zap.Int("duplicates", counts.Duplicates),
		zap.Int("failures", counts.Failures),
	)
	return nil
}

// crossCycleDedup re-checks the records accepted in this cycle against
// every record stored before it. It does not record anything; keys within
// one batch are already distinct.
func (s *Service) crossCycleDedup(batch internal.BatchResult) internal.BatchResult {
	accepted := make([]internal.ManifestRecord, 0, len(batch.Accepted))
	indexes := make([]int, 0, len(batch.Accepted))
	for i, r := range batch.Accepted {
		dup, isDup := s.deduper.Lookup(r)
		if !isDup {
			accepted = append(accepted, r)
			indexes = append(indexes, batch.AcceptedIndexes[i])
			continue
		}
		dup.Index = batch.AcceptedIndexes[i]
		dup.OriginalIndex = -1
		batch.Duplicates = append(batch.Duplicates, dup)
	}
	batch.Accepted = accepted
	batch.AcceptedIndexes = indexes
	return batch
}

func contentHash(blob []byte) string {
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}

// EnsureInbox creates the inbox directory when missing.
func EnsureInbox(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "listener: create inbox %s", dir)
	}
	return nil
}
