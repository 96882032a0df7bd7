package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"manifests/internal"
	"manifests/internal/rules"
)

// TextExtractor turns document bytes into plain text. Implementations
// report unreadable documents as errors; those documents never reach the
// field extractor.
type TextExtractor interface {
	ExtractText(ctx context.Context, content []byte) (string, error)
}

type Document struct {
	Name string
	Load func() ([]byte, error)
}

// Pipeline runs extraction and assembly for one document. It keeps no
// state between documents.
type Pipeline struct {
	extractor *Extractor
	assembler *Assembler
}

func New(r rules.Rules) (*Pipeline, error) {
	extractor, err := NewExtractor(r)
	if err != nil {
		return nil, err
	}
	assembler, err := NewAssembler(r)
	if err != nil {
		return nil, err
	}
	return &Pipeline{extractor: extractor, assembler: assembler}, nil
}

func (p *Pipeline) Assembler() *Assembler { return p.assembler }

func (p *Pipeline) Process(source, text string) internal.ManifestRecord {
	return p.assembler.Assemble(source, p.extractor.Extract(text))
}

type Processor struct {
	pipeline *Pipeline
	text     TextExtractor
	workers  int
}

func NewProcessor(p *Pipeline, text TextExtractor, workers int) *Processor {
	if workers <= 0 {
		workers = 1
	}
	return &Processor{pipeline: p, text: text, workers: workers}
}

type slot struct {
	record *internal.ManifestRecord
	err    error
}

// ProcessBatch extracts documents concurrently and then deduplicates the
// records sequentially in the input order. If ctx is cancelled, documents
// not yet finished are skipped, neither accepted nor failed, and the
// completed ones are still returned alongside the context error.
func (s *Processor) ProcessBatch(ctx context.Context, docs []Document) (internal.BatchResult, error) {
	result := internal.BatchResult{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log := zap.L().With(zap.String("run_id", result.RunID))
	log.Info("processing batch", zap.Int("documents", len(docs)), zap.Int("workers", s.workers))

	slots := make([]slot, len(docs))
	g := new(errgroup.Group)
	g.SetLimit(s.workers)

	for i, doc := range docs {
		if ctx.Err() != nil {
			break
		}
		i, doc := i, doc
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			record, err := s.processOne(ctx, doc)
			if err != nil {
				// abandoned, not failed
				if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
					return nil
				}
				slots[i] = slot{err: err}
				return nil
			}
			slots[i] = slot{record: &record}
			return nil
		})
	}
	_ = g.Wait()

	records := make([]internal.ManifestRecord, 0, len(docs))
	positions := make([]int, 0, len(docs))
	for i, sl := range slots {
		switch {
		case sl.err != nil:
			log.Warn("document failed", zap.String("source", docs[i].Name), zap.Error(sl.err))
			result.Failures = append(result.Failures, internal.DocumentFailure{Source: docs[i].Name, Err: sl.err})
		case sl.record != nil:
			records = append(records, *sl.record)
			positions = append(positions, i)
		}
	}

	dedup := DetectDuplicates(records)
	for j := range dedup.Duplicates {
		d := &dedup.Duplicates[j]
		d.Index = positions[d.Index]
		d.OriginalIndex = positions[d.OriginalIndex]
		log.Info("duplicate manifest",
			zap.String("source", d.Record.Source),
			zap.String("key_kind", string(d.Key.Kind)),
			zap.String("key", d.Key.Value),
			zap.String("original", d.Original.Source),
		)
	}
	result.Accepted = dedup.Accepted
	result.AcceptedIndexes = make([]int, 0, len(dedup.AcceptedIndexes))
	for _, j := range dedup.AcceptedIndexes {
		result.AcceptedIndexes = append(result.AcceptedIndexes, positions[j])
	}
	result.Duplicates = dedup.Duplicates
	result.FinishedAt = time.Now().UTC()

	counts := result.Counts()
	log.Info("batch complete",
		zap.Int("accepted", counts.Accepted),
		zap.Int("duplicates", counts.Duplicates),
		zap.Int("failures", counts.Failures),
	)

	if err := ctx.Err(); err != nil {
		return result, eris.Wrap(err, "process batch: cancelled")
	}
	return result, nil
}

func (s *Processor) processOne(ctx context.Context, doc Document) (internal.ManifestRecord, error) {
	content, err := doc.Load()
	if err != nil {
		return internal.ManifestRecord{}, eris.Wrapf(err, "load %s", doc.Name)
	}
	text, err := s.text.ExtractText(ctx, content)
	if err != nil {
		return internal.ManifestRecord{}, eris.Wrapf(err, "extract text from %s", doc.Name)
	}
	return s.pipeline.Process(doc.Name, text), nil
}
