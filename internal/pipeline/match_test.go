package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"manifests/internal"
	"manifests/internal/rules"
)

func TestCanonicalizeDefaults(t *testing.T) {
	c := NewCanonicalizer(rules.Default().Destinations)

	cases := []struct {
		name string
		raw  string
		want string
		step internal.CanonicalStep
	}{
		{name: "alias exact", raw: "Barranquilla", want: "BARRANQUILLA", step: internal.StepAlias},
		{name: "alias misspelling", raw: "Cartajena", want: "CARTAGENA", step: internal.StepAlias},
		{name: "alias with accents", raw: "Bogotá", want: "BOGOTA", step: internal.StepAlias},
		{name: "contains alias", raw: "SOLEDAD ATLANTICO", want: "SOLEDAD", step: internal.StepContainment},
		{name: "contained by alias", raw: "santa", want: "SANTA MARTA", step: internal.StepContainment},
		{name: "fuzzy", raw: "B.arranquila", want: "BARRANQUILLA", step: internal.StepFuzzy},
		{name: "fallback", raw: "puerto  colombia", want: "PUERTO COLOMBIA", step: internal.StepFallback},
		{name: "unknown", raw: internal.NotFound, want: internal.NotFound, step: internal.StepUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Canonicalize(tc.raw)
			assert.Equal(t, tc.want, got.Name)
			assert.Equal(t, tc.step, got.Step)
		})
	}
}

func TestCanonicalizeShortPhraseSkipsContainment(t *testing.T) {
	c := NewCanonicalizer(rules.Default().Destinations)

	got := c.Canonicalize("STA")
	assert.Equal(t, internal.StepFallback, got.Step)
	assert.Equal(t, "STA", got.Name)
}

func TestCanonicalizeFuzzyBoundary(t *testing.T) {
	d := rules.Destinations{FuzzyThreshold: 0.8, MinContainmentLen: 5, Catalog: []string{"ABCDEF"}}

	got := NewCanonicalizer(d).Canonicalize("abcdex")
	assert.Equal(t, "ABCDEF", got.Name)
	assert.Equal(t, internal.StepFuzzy, got.Step)
	assert.Equal(t, 0.8, got.Score)

	// 3 of 5 bigrams shared: 0.6
	got = NewCanonicalizer(d).Canonicalize("abcdxy")
	assert.Equal(t, "ABCDXY", got.Name)
	assert.Equal(t, internal.StepFallback, got.Step)

	d.FuzzyThreshold = 0.81
	got = NewCanonicalizer(d).Canonicalize("abcdex")
	assert.Equal(t, "ABCDEX", got.Name)
	assert.Equal(t, internal.StepFallback, got.Step)
}

func TestCanonicalizeFuzzyTieTakesFirstCity(t *testing.T) {
	d := rules.Destinations{FuzzyThreshold: 0.5, MinContainmentLen: 5, Catalog: []string{"ABCDXY", "ABCDZW"}}

	got := NewCanonicalizer(d).Canonicalize("ABCD")
	assert.Equal(t, "ABCDXY", got.Name)

	d.Catalog = []string{"ABCDZW", "ABCDXY"}
	got = NewCanonicalizer(d).Canonicalize("ABCD")
	assert.Equal(t, "ABCDZW", got.Name)
}

func TestCanonicalizeMonotonicUnderAliasGrowth(t *testing.T) {
	base := rules.Default().Destinations
	inputs := []string{"B.arranquila", "Cartajena", "SOLEDAD ATLANTICO", "puerto colombia", "Malambo", "Sta. Marta"}

	before := NewCanonicalizer(base)
	want := make([]internal.Canonical, len(inputs))
	for i, in := range inputs {
		want[i] = before.Canonicalize(in)
	}

	grown := base
	grown.Aliases = append(append([]rules.Alias{}, base.Aliases...), rules.Alias{Key: "PTO COLOMBIA", City: "PUERTO COLOMBIA"})
	after := NewCanonicalizer(grown)

	for i, in := range inputs {
		assert.Equal(t, want[i], after.Canonicalize(in), in)
	}
	assert.Equal(t, "PUERTO COLOMBIA", after.Canonicalize("Pto. Colombia").Name)
}
