package pipeline

import (
	"manifests/internal"
)

// origin is what a later duplicate needs to point back at.
type origin struct {
	index  int
	source string
}

// Deduper remembers where every duplicate key was first seen. It is not
// safe for concurrent use; the order of Observe calls is the tie-break.
type Deduper struct {
	seen map[internal.DuplicateKey]origin
	next int
}

func NewDeduper() *Deduper {
	return &Deduper{seen: map[internal.DuplicateKey]origin{}}
}

// Lookup classifies r against the keys observed so far without recording
// anything. Duplicate.Original only carries the original's Source.
func (d *Deduper) Lookup(r internal.ManifestRecord) (internal.Duplicate, bool) {
	key := internal.KeyOf(r)
	if key.Kind == internal.KeyNone {
		return internal.Duplicate{}, false
	}
	first, ok := d.seen[key]
	if !ok {
		return internal.Duplicate{}, false
	}
	return internal.Duplicate{
		Index:         d.next,
		Record:        r,
		Key:           key,
		OriginalIndex: first.index,
		Original:      internal.ManifestRecord{Source: first.source},
	}, true
}

// Observe classifies the next record and records its key when it is the
// first one. Records without a key are always accepted.
func (d *Deduper) Observe(r internal.ManifestRecord) (internal.Duplicate, bool) {
	dup, isDup := d.Lookup(r)
	if !isDup {
		if key := internal.KeyOf(r); key.Kind != internal.KeyNone {
			d.seen[key] = origin{index: d.next, source: r.Source}
		}
	}
	d.next++
	return dup, isDup
}

// DetectDuplicates splits an ordered batch into accepted records and
// duplicates of earlier ones.
func DetectDuplicates(records []internal.ManifestRecord) internal.DedupResult {
	d := NewDeduper()
	out := internal.DedupResult{
		Accepted:        make([]internal.ManifestRecord, 0, len(records)),
		AcceptedIndexes: make([]int, 0, len(records)),
		Duplicates:      []internal.Duplicate{},
	}
	for i, r := range records {
		if dup, isDup := d.Observe(r); isDup {
			dup.Original = records[dup.OriginalIndex]
			out.Duplicates = append(out.Duplicates, dup)
			continue
		}
		out.Accepted = append(out.Accepted, r)
		out.AcceptedIndexes = append(out.AcceptedIndexes, i)
	}
	return out
}
