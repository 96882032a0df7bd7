// Package rules holds the tables that drive manifest extraction: billing
// code exclusions, date repairs and layouts, the destination alias table
// and catalog, and fare constants. A Rules value is built once and handed
// to the pipeline constructors; nothing here is mutated afterwards.
package rules

import (
	_ "embed"
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

type BillingCode struct {
	Prefix  string   `yaml:"prefix"`
	Digits  int      `yaml:"digits"`
	Exclude []string `yaml:"exclude"`
}

type Alias struct {
	Key  string `yaml:"key"`
	City string `yaml:"city"`
}

type Destinations struct {
	FuzzyThreshold    float64  `yaml:"fuzzy_threshold"`
	MinContainmentLen int      `yaml:"min_containment_len"`
	Catalog           []string `yaml:"catalog"`
	Aliases           []Alias  `yaml:"aliases"`
}

type Fares struct {
	PremiumCities []string `yaml:"premium_cities"`
	Premium       int64    `yaml:"premium"`
	OneWay        int64    `yaml:"one_way"`
	RoundTrip     int64    `yaml:"round_trip"`
}

type Rules struct {
	Origin            string       `yaml:"origin"`
	Company           string       `yaml:"company"`
	PlateInvalidWords []string     `yaml:"plate_invalid_words"`
	BillingCode       BillingCode  `yaml:"billing_code"`
	DateRepairs       []string     `yaml:"date_repairs"`
	DateLayouts       []string     `yaml:"date_layouts"`
	Destinations      Destinations `yaml:"destinations"`
	Fares             Fares        `yaml:"fares"`
}

// Default returns the rules shipped with the binary.
func Default() Rules {
	r, err := Parse(defaultRulesYAML)
	if err != nil {
		panic(eris.Wrap(err, "rules: embedded defaults"))
	}
	return r
}

// Load reads a YAML rules file. Keys absent from the file keep their
// default values, so a deployment only lists what it changes.
func Load(path string) (Rules, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, eris.Wrapf(err, "rules: read %s", path)
	}
	return Parse(blob)
}

func Parse(blob []byte) (Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(defaultRulesYAML, &r); err != nil {
		return Rules{}, eris.Wrap(err, "rules: decode defaults")
	}
	if len(blob) > 0 {
		if err := yaml.Unmarshal(blob, &r); err != nil {
			return Rules{}, eris.Wrap(err, "rules: decode")
		}
	}
	if err := r.Validate(); err != nil {
		return Rules{}, err
	}
	return r, nil
}

func (r Rules) Validate() error {
	if strings.TrimSpace(r.Origin) == "" {
		return eris.New("rules: origin is required")
	}
	if r.BillingCode.Prefix == "" || r.BillingCode.Digits <= 0 {
		return eris.New("rules: billing_code needs a prefix and a positive digit count")
	}
	for _, ex := range r.BillingCode.Exclude {
		if _, err := regexp.Compile(ex); err != nil {
			return eris.Wrapf(err, "rules: billing_code exclusion %q", ex)
		}
	}
	if len(r.DateLayouts) == 0 {
		return eris.New("rules: at least one date layout is required")
	}
	if r.Destinations.FuzzyThreshold <= 0 || r.Destinations.FuzzyThreshold > 1 {
		return eris.Errorf("rules: fuzzy_threshold %v outside (0, 1]", r.Destinations.FuzzyThreshold)
	}
	for _, a := range r.Destinations.Aliases {
		if strings.TrimSpace(a.Key) == "" || strings.TrimSpace(a.City) == "" {
			return eris.Errorf("rules: alias %+v needs both key and city", a)
		}
	}
	if r.Fares.OneWay <= 0 || r.Fares.Premium <= 0 {
		return eris.New("rules: fares must be positive")
	}
	if r.Fares.RoundTrip <= r.Fares.OneWay {
		return eris.Errorf("rules: round_trip fare %d must exceed one_way fare %d", r.Fares.RoundTrip, r.Fares.OneWay)
	}
	return nil
}

// YAML renders the effective rules.
func (r Rules) YAML() ([]byte, error) {
	blob, err := yaml.Marshal(r)
	if err != nil {
		return nil, eris.Wrap(err, "rules: encode")
	}
	return blob, nil
}
