package internal

import "time"

// NotFound marks a field whose pattern had no match in the document text.
const NotFound = "NO ENCONTRADO"

type RawFields struct {
	Dates          []string
	Times          []string
	LoadID         string
	Driver         string
	Plate          string
	BillingCodes   []string
	RemittanceCode string
	Destination    string
}

func Found(value string) bool {
	return value != "" && value != NotFound
}

type DateStatus string

const (
	DateValid   DateStatus = "VALID"
	DateUnknown DateStatus = "UNKNOWN"
	DateInvalid DateStatus = "INVALID"
)

// TripDate keeps the raw source string next to the parsed value so an
// unparseable date is never lost.
type TripDate struct {
	Status DateStatus `json:"status"`
	ISO    string     `json:"iso,omitempty"`
	Raw    string     `json:"raw,omitempty"`
}

// String renders the date the way it goes into reports.
func (d TripDate) String() string {
	switch d.Status {
	case DateValid:
		return d.ISO
	case DateInvalid:
		return d.Raw
	default:
		return NotFound
	}
}

type CanonicalStep string

const (
	StepAlias       CanonicalStep = "ALIAS"
	StepContainment CanonicalStep = "CONTAINMENT"
	StepFuzzy       CanonicalStep = "FUZZY"
	StepFallback    CanonicalStep = "FALLBACK"
	StepUnknown     CanonicalStep = "UNKNOWN"
)

type Canonical struct {
	Name  string
	Step  CanonicalStep
	Score float64
}

type RecordStatus string

const StatusPending RecordStatus = "pendiente"

type ManifestRecord struct {
	Source         string       `json:"source"`
	LoadID         string       `json:"loadId"`
	Driver         string       `json:"driver"`
	Plate          string       `json:"plate"`
	TripDate       TripDate     `json:"tripDate"`
	ReturnDate     TripDate     `json:"returnDate"`
	DepartureTime  string       `json:"departureTime"`
	ReturnTime     string       `json:"returnTime"`
	Month          string       `json:"month"`
	Origin         string       `json:"origin"`
	Destination    string       `json:"destination"`
	DestinationRaw string       `json:"destinationRaw"`
	BillingCodes   []string     `json:"billingCodes"`
	CodeCount      int          `json:"codeCount"`
	RemittanceCode string       `json:"remittanceCode"`
	Company        string       `json:"company"`
	FareValue      int64        `json:"fareValue"`
	Status         RecordStatus `json:"status"`
	ProcessedAt    time.Time    `json:"processedAt"`
}

type KeyKind string

const (
	KeyNone       KeyKind = "NONE"
	KeyLoadID     KeyKind = "LOAD_ID"
	KeyRemittance KeyKind = "REMITTANCE"
)

// DuplicateKey is the natural key of a trip: load id, else remittance
// code, else nothing. Equal keys of different kinds never collide.
type DuplicateKey struct {
	Kind  KeyKind
	Value string
}

func KeyOf(r ManifestRecord) DuplicateKey {
	if Found(r.LoadID) {
		return DuplicateKey{Kind: KeyLoadID, Value: r.LoadID}
	}
	if Found(r.RemittanceCode) {
		return DuplicateKey{Kind: KeyRemittance, Value: r.RemittanceCode}
	}
	return DuplicateKey{Kind: KeyNone}
}

type Duplicate struct {
	Index         int
	Record        ManifestRecord
	Key           DuplicateKey
	OriginalIndex int
	Original      ManifestRecord
}

type DedupResult struct {
	Accepted        []ManifestRecord
	AcceptedIndexes []int
	Duplicates      []Duplicate
}

type DocumentFailure struct {
	Source string
	Err    error
}

// BatchResult indexes (AcceptedIndexes, Duplicate.Index and
// Duplicate.OriginalIndex) are positions in the submitted document list.
// OriginalIndex is -1 when the original was accepted by an earlier run.
type BatchResult struct {
	RunID           string
	Accepted        []ManifestRecord
	AcceptedIndexes []int
	Duplicates      []Duplicate
	Failures        []DocumentFailure
	StartedAt       time.Time
	FinishedAt      time.Time
}

type BatchCounts struct {
	Documents  int `json:"documents"`
	Accepted   int `json:"accepted"`
	Duplicates int `json:"duplicates"`
	Failures   int `json:"failures"`
}

func (b BatchResult) Counts() BatchCounts {
	return BatchCounts{
		Documents:  len(b.Accepted) + len(b.Duplicates) + len(b.Failures),
		Accepted:   len(b.Accepted),
		Duplicates: len(b.Duplicates),
		Failures:   len(b.Failures),
	}
}

type RunRow struct {
	ID         string
	SourceDir  string
	StartedAt  string
	FinishedAt string
	Counts     BatchCounts
}

// PlateTotal is one row of the monthly earnings report: every stored trip
// of one plate in one month. Driver is the first one seen for the pair.
type PlateTotal struct {
	Month  string `json:"month"`
	Plate  string `json:"plate"`
	Driver string `json:"driver"`
	Total  int64  `json:"total"`
	Trips  int    `json:"trips"`
}
