package pipeline

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"manifests/internal"
	"manifests/internal/rules"
	"manifests/internal/util"
)

var (
	reDate        = regexp.MustCompile(`Fecha\s*: (.*)Hora`)
	reTime        = regexp.MustCompile(` Hora\s*: (.*)`)
	reLoadID      = regexp.MustCompile(`LOAD\s+ID\s*#\s*(\d+)`)
	reDriver      = regexp.MustCompile(`CONDUCTOR\s*: (.*)`)
	rePlate       = regexp.MustCompile(`PLACA\s*:\s*([A-Za-z0-9]+)(?:\s|$)`)
	reRemittance  = regexp.MustCompile(`(?i)REMESA No\.\s*(KBQ[0-9]+)`)
	reDestination = regexp.MustCompile(`P?[Ee]xp\.\s*(.*?)\s*\(`)
)

// Extractor pulls raw field values out of manifest text. It holds only
// compiled configuration and is safe for concurrent use.
type Extractor struct {
	codePrefix   string
	codeDigits   int
	codeExcludes []*regexp.Regexp
	invalidPlate map[string]struct{}
}

func NewExtractor(r rules.Rules) (*Extractor, error) {
	e := &Extractor{
		codePrefix:   r.BillingCode.Prefix,
		codeDigits:   r.BillingCode.Digits,
		invalidPlate: map[string]struct{}{},
	}
	for _, ex := range r.BillingCode.Exclude {
		re, err := regexp.Compile(`^(?:` + ex + `)`)
		if err != nil {
			return nil, eris.Wrapf(err, "extractor: billing code exclusion %q", ex)
		}
		e.codeExcludes = append(e.codeExcludes, re)
	}
	for _, w := range r.PlateInvalidWords {
		e.invalidPlate[strings.ToUpper(strings.TrimSpace(w))] = struct{}{}
	}
	return e, nil
}

func (e *Extractor) Extract(text string) internal.RawFields {
	return internal.RawFields{
		Dates:          allMatches(reDate, text),
		Times:          allMatches(reTime, text),
		LoadID:         firstMatch(reLoadID, text),
		Driver:         firstMatch(reDriver, text),
		Plate:          e.plate(text),
		BillingCodes:   e.billingCodes(text),
		RemittanceCode: firstMatch(reRemittance, text),
		Destination:    firstMatch(reDestination, text),
	}
}

func (e *Extractor) plate(text string) string {
	for _, m := range rePlate.FindAllStringSubmatch(text, -1) {
		p := strings.TrimSpace(m[1])
		if len(p) < 3 {
			continue
		}
		if _, bad := e.invalidPlate[strings.ToUpper(p)]; bad {
			continue
		}
		return p
	}
	return internal.NotFound
}

// billingCodes scans left to right for prefix+digits runs. A candidate is
// rejected when an exclusion matches right after the prefix, and scanning
// then resumes one byte later, which mirrors a negative lookahead.
func (e *Extractor) billingCodes(text string) []string {
	out := []string{}
	width := len(e.codePrefix) + e.codeDigits
	for i := 0; i+width <= len(text); {
		if !strings.HasPrefix(text[i:], e.codePrefix) || !allDigits(text[i+len(e.codePrefix):i+width]) {
			i++
			continue
		}
		rest := text[i+len(e.codePrefix):]
		if e.excluded(rest) {
			i++
			continue
		}
		out = append(out, text[i:i+width])
		i += width
	}
	return out
}

func (e *Extractor) excluded(rest string) bool {
	for _, re := range e.codeExcludes {
		if re.MatchString(rest) {
			return true
		}
	}
	return false
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func firstMatch(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return internal.NotFound
	}
	v := util.CollapseSpaces(m[1])
	if v == "" {
		return internal.NotFound
	}
	return v
}

func allMatches(re *regexp.Regexp, text string) []string {
	out := []string{}
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if v := util.CollapseSpaces(m[1]); v != "" {
			out = append(out, v)
		}
	}
	return out
}
