package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"manifests/internal"
)

// ListDocuments returns the PDFs of dir in directory listing order, which
// is the order duplicates are resolved in.
func ListDocuments(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "list documents in %s", dir)
	}
	out := make([]Document, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".pdf") {
			continue
		}
		out = append(out, FileDocument(filepath.Join(dir, entry.Name())))
	}
	return out, nil
}

func FileDocument(path string) Document {
	return Document{
		Name: filepath.Base(path),
		Load: func() ([]byte, error) { return os.ReadFile(path) },
	}
}

func (s *Processor) ProcessDirectory(ctx context.Context, dir string) (internal.BatchResult, error) {
	docs, err := ListDocuments(dir)
	if err != nil {
		return internal.BatchResult{}, err
	}
	return s.ProcessBatch(ctx, docs)
}
