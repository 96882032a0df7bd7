package pipeline

import (
	"time"

	"manifests/internal"
	"manifests/internal/rules"
	"manifests/internal/util"
)

// Assembler turns extracted fields into a complete ManifestRecord. Every
// record carries every field; unresolved ones hold internal.NotFound.
type Assembler struct {
	dates   *DateNormalizer
	dest    *Canonicalizer
	fares   *FareCalculator
	origin  string
	company string
	now     func() time.Time
}

func NewAssembler(r rules.Rules) (*Assembler, error) {
	dates, err := NewDateNormalizer(r)
	if err != nil {
		return nil, err
	}
	return &Assembler{
		dates:   dates,
		dest:    NewCanonicalizer(r.Destinations),
		fares:   NewFareCalculator(r.Fares),
		origin:  util.CollapseSpaces(r.Origin),
		company: util.CollapseSpaces(r.Company),
		now:     time.Now,
	}, nil
}

// WithClock replaces the timestamp source.
func (a *Assembler) WithClock(now func() time.Time) *Assembler {
	a.now = now
	return a
}

func (a *Assembler) Fares() *FareCalculator { return a.fares }

func (a *Assembler) Assemble(source string, raw internal.RawFields) internal.ManifestRecord {
	trip := a.dates.Normalize(nth(raw.Dates, 0))
	dest := a.dest.Canonicalize(raw.Destination)
	codes := append([]string{}, raw.BillingCodes...)

	return internal.ManifestRecord{
		Source:         source,
		LoadID:         orNotFound(raw.LoadID),
		Driver:         orNotFound(raw.Driver),
		Plate:          orNotFound(raw.Plate),
		TripDate:       trip,
		ReturnDate:     a.dates.Normalize(nth(raw.Dates, 1)),
		DepartureTime:  nth(raw.Times, 0),
		ReturnTime:     nth(raw.Times, 1),
		Month:          MonthName(trip),
		Origin:         a.origin,
		Destination:    dest.Name,
		DestinationRaw: orNotFound(raw.Destination),
		BillingCodes:   codes,
		CodeCount:      len(codes),
		RemittanceCode: orNotFound(raw.RemittanceCode),
		Company:        a.company,
		FareValue:      a.fares.Fare(dest.Name, len(codes)),
		Status:         internal.StatusPending,
		ProcessedAt:    a.now(),
	}
}

func nth(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return internal.NotFound
}

func orNotFound(v string) string {
	if internal.Found(v) {
		return v
	}
	return internal.NotFound
}
