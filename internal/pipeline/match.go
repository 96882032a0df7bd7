package pipeline

import (
	"strings"

	"manifests/internal"
	"manifests/internal/catalog"
	"manifests/internal/rules"
	"manifests/internal/util"
)

// Canonicalizer maps a raw destination phrase to one catalog city:
// exact alias, then alias containment, then fuzzy similarity against the
// catalog. Anything else falls back to the upper-cased phrase.
type Canonicalizer struct {
	index          *catalog.Index
	threshold      float64
	minContainment int
}

func NewCanonicalizer(d rules.Destinations) *Canonicalizer {
	return &Canonicalizer{
		index:          catalog.BuildIndex(d),
		threshold:      d.FuzzyThreshold,
		minContainment: d.MinContainmentLen,
	}
}

func (c *Canonicalizer) Canonicalize(raw string) internal.Canonical {
	if !internal.Found(raw) {
		return internal.Canonical{Name: internal.NotFound, Step: internal.StepUnknown}
	}

	normalized := util.NormalizePhrase(raw)
	if normalized != "" {
		if city, ok := c.index.ByAlias[normalized]; ok {
			return internal.Canonical{Name: city, Step: internal.StepAlias, Score: 1}
		}
		if city, ok := c.containment(normalized); ok {
			return internal.Canonical{Name: city, Step: internal.StepContainment, Score: 1}
		}
		if city, score, ok := c.fuzzy(normalized); ok {
			return internal.Canonical{Name: city, Step: internal.StepFuzzy, Score: score}
		}
	}

	return internal.Canonical{Name: strings.ToUpper(util.CollapseSpaces(raw)), Step: internal.StepFallback}
}

func (c *Canonicalizer) containment(phrase string) (string, bool) {
	if len([]rune(phrase)) < c.minContainment {
		return "", false
	}
	for _, a := range c.index.Aliases {
		if len([]rune(a.Key)) < c.minContainment {
			continue
		}
		if strings.Contains(phrase, a.Key) || strings.Contains(a.Key, phrase) {
			return a.City, true
		}
	}
	return "", false
}

func (c *Canonicalizer) fuzzy(phrase string) (string, float64, bool) {
	letters := util.LettersOnly(phrase)
	if letters == "" {
		return "", 0, false
	}

	best := ""
	bestScore := -1.0
	for _, city := range c.index.Cities {
		score := util.DiceCoefficient(letters, city.Letters)
		if score > bestScore {
			best, bestScore = city.Name, score
		}
	}
	if best == "" || bestScore < c.threshold {
		return "", bestScore, false
	}
	return best, bestScore, true
}
