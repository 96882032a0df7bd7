package pipeline

import (
	"manifests/internal"
	"manifests/internal/rules"
	"manifests/internal/util"
)

// FareCalculator prices a trip from its canonical destination and the
// number of billing codes on the manifest. It has no other inputs.
type FareCalculator struct {
	premium   map[string]struct{}
	flat      int64
	oneWay    int64
	roundTrip int64
}

func NewFareCalculator(f rules.Fares) *FareCalculator {
	c := &FareCalculator{
		premium:   map[string]struct{}{},
		flat:      f.Premium,
		oneWay:    f.OneWay,
		roundTrip: f.RoundTrip,
	}
	for _, city := range f.PremiumCities {
		c.premium[util.NormalizePhrase(city)] = struct{}{}
	}
	return c
}

func (c *FareCalculator) Fare(destination string, codeCount int) int64 {
	if _, ok := c.premium[util.NormalizePhrase(destination)]; ok {
		return c.flat
	}
	if codeCount < 2 {
		return c.oneWay
	}
	return c.roundTrip
}

// Verify reports whether the record's fare still equals Fare for its
// destination and code count.
func (c *FareCalculator) Verify(r internal.ManifestRecord) bool {
	return r.FareValue == c.Fare(r.Destination, r.CodeCount)
}
