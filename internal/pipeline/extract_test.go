package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifests/internal"
	"manifests/internal/rules"
)

func TestExtract(t *testing.T) {
	e, err := NewExtractor(rules.Default())
	require.NoError(t, err)

	got := e.Extract(sampleManifest)

	assert.Equal(t, []string{"02.102025", "03.10.2025"}, got.Dates)
	assert.Equal(t, []string{"08:30", "17:45"}, got.Times)
	assert.Equal(t, "4471203", got.LoadID)
	assert.Equal(t, "JUAN PEREZ GOMEZ", got.Driver)
	assert.Equal(t, "TSK482", got.Plate)
	assert.Equal(t, []string{"612345678", "687654321"}, got.BillingCodes)
	assert.Equal(t, "KBQ90017", got.RemittanceCode)
	assert.Equal(t, "B.arranquila", got.Destination)
}

func TestExtractMissingFields(t *testing.T) {
	e, err := NewExtractor(rules.Default())
	require.NoError(t, err)

	got := e.Extract("documento sin campos reconocibles")

	assert.Empty(t, got.Dates)
	assert.Empty(t, got.Times)
	assert.NotNil(t, got.BillingCodes)
	assert.Empty(t, got.BillingCodes)
	assert.Equal(t, internal.NotFound, got.LoadID)
	assert.Equal(t, internal.NotFound, got.Driver)
	assert.Equal(t, internal.NotFound, got.Plate)
	assert.Equal(t, internal.NotFound, got.RemittanceCode)
	assert.Equal(t, internal.NotFound, got.Destination)
}

func TestExtractFirstMatchWins(t *testing.T) {
	e, err := NewExtractor(rules.Default())
	require.NoError(t, err)

	got := e.Extract("LOAD ID # 111\nLOAD ID # 222\nREMESA No. kbq1\nremesa no. KBQ2\n")
	assert.Equal(t, "111", got.LoadID)
	assert.Equal(t, "kbq1", got.RemittanceCode)
}

func TestBillingCodeExclusions(t *testing.T) {
	e, err := NewExtractor(rules.Default())
	require.NoError(t, err)

	cases := []struct {
		name string
		text string
		want []string
	}{
		{name: "plain", text: "612345678", want: []string{"612345678"}},
		{name: "admin code", text: "601747000", want: []string{}},
		{name: "admin prefix with trailing digit", text: "6012525480", want: []string{}},
		{name: "admin prefix needs the ninth digit", text: "601252548 ", want: []string{"601252548"}},
		{name: "too short", text: "61234567", want: []string{}},
		{name: "overlapping prefix", text: "6601747000", want: []string{"660174700"}},
		{name: "scan resumes inside a rejected candidate", text: "6012525486123456789", want: []string{"612345678"}},
		{name: "document order", text: "699999999 x 611111111", want: []string{"699999999", "611111111"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, e.Extract(tc.text).BillingCodes)
		})
	}
}

func TestPlateSkipsInvalidWords(t *testing.T) {
	e, err := NewExtractor(rules.Default())
	require.NoError(t, err)

	assert.Equal(t, internal.NotFound, e.Extract("PLACA: NO\nPLACA: AB\n").Plate)
	assert.Equal(t, "XYZ987", e.Extract("PLACA: encontrado\nPLACA:XYZ987").Plate)
}

func TestNewExtractorRejectsBadExclusion(t *testing.T) {
	r := rules.Default()
	r.BillingCode.Exclude = []string{"("}
	_, err := NewExtractor(r)
	assert.Error(t, err)
}
