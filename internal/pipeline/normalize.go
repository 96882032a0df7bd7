package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"manifests/internal"
	"manifests/internal/rules"
	"manifests/internal/util"
)

// DateRepair rewrites one malformed date shape into a parseable one.
type DateRepair struct {
	Name    string
	Pattern *regexp.Regexp
	Repair  func(m []string) string
}

func (r DateRepair) Apply(s string) (string, bool) {
	m := r.Pattern.FindStringSubmatch(s)
	if m == nil {
		return s, false
	}
	return r.Repair(m), true
}

var dateRepairs = map[string]DateRepair{
	// 02.102025 -> 02.10.2025
	"fused_month_year": {
		Name:    "fused_month_year",
		Pattern: regexp.MustCompile(`^(\d{2})\.(\d{2})(\d{4})$`),
		Repair:  func(m []string) string { return m[1] + "." + m[2] + "." + m[3] },
	},
	// 18.1.0.2025 -> 18.10.2025; the digit before ".0." is the tens of the month.
	"tens_month": {
		Name:    "tens_month",
		Pattern: regexp.MustCompile(`^(\d{2})\.(\d)\.0\.(\d{4})$`),
		Repair: func(m []string) string {
			digit, _ := strconv.Atoi(m[2])
			return fmt.Sprintf("%s.%02d.%s", m[1], digit*10, m[3])
		},
	},
	// 02.10 2025 -> 02.10.2025
	"space_separator": {
		Name:    "space_separator",
		Pattern: regexp.MustCompile(`^(\d{2})\.(\d{2})\s+(\d{4})$`),
		Repair:  func(m []string) string { return m[1] + "." + m[2] + "." + m[3] },
	},
	// 02.10,2025 -> 02.10.2025
	"comma_separator": {
		Name:    "comma_separator",
		Pattern: regexp.MustCompile(`^(\d{2})\.(\d{2}),(\d{4})$`),
		Repair:  func(m []string) string { return m[1] + "." + m[2] + "." + m[3] },
	},
}

// DateRepairNames lists the registered repair rules.
func DateRepairNames() []string {
	return []string{"fused_month_year", "tens_month", "space_separator", "comma_separator"}
}

type DateNormalizer struct {
	repairs []DateRepair
	layouts []string
}

func NewDateNormalizer(r rules.Rules) (*DateNormalizer, error) {
	n := &DateNormalizer{layouts: append([]string(nil), r.DateLayouts...)}
	for _, name := range r.DateRepairs {
		rep, ok := dateRepairs[name]
		if !ok {
			return nil, eris.Errorf("date normalizer: unknown repair rule %q (known: %v)", name, DateRepairNames())
		}
		n.repairs = append(n.repairs, rep)
	}
	if len(n.layouts) == 0 {
		return nil, eris.New("date normalizer: no layouts configured")
	}
	return n, nil
}

// Repair runs the configured repair rules in order over the raw string.
func (n *DateNormalizer) Repair(raw string) string {
	s := util.CollapseSpaces(raw)
	for _, rep := range n.repairs {
		s, _ = rep.Apply(s)
	}
	return s
}

func (n *DateNormalizer) Normalize(raw string) internal.TripDate {
	if !internal.Found(raw) {
		return internal.TripDate{Status: internal.DateUnknown}
	}
	repaired := n.Repair(raw)
	for _, layout := range n.layouts {
		t, err := time.Parse(layout, repaired)
		if err == nil {
			return internal.TripDate{Status: internal.DateValid, ISO: t.Format(time.DateOnly), Raw: raw}
		}
	}
	return internal.TripDate{Status: internal.DateInvalid, Raw: raw}
}

var monthNames = []string{
	"ENERO", "FEBRERO", "MARZO", "ABRIL", "MAYO", "JUNIO",
	"JULIO", "AGOSTO", "SEPTIEMBRE", "OCTUBRE", "NOVIEMBRE", "DICIEMBRE",
}

const (
	MonthNotFound = "NO_ENCONTRADO"
	MonthInvalid  = "FECHA_INVALIDA"
)

// MonthName gives the Spanish month used in the monthly reports.
func MonthName(d internal.TripDate) string {
	switch d.Status {
	case internal.DateValid:
		t, err := time.Parse(time.DateOnly, d.ISO)
		if err != nil {
			return MonthInvalid
		}
		return monthNames[t.Month()-1]
	case internal.DateInvalid:
		return MonthInvalid
	default:
		return MonthNotFound
	}
}
