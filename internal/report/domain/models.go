package domain

import (
	"strings"
	"time"
)

type Granularity string

const (
	GranularityDay        Granularity = "day"
	GranularityWeek       Granularity = "week"
	GranularityMonth      Granularity = "month"
	GranularityIndividual Granularity = "individual"
)

func (g Granularity) Valid() bool {
	switch g {
	case GranularityDay, GranularityWeek, GranularityMonth, GranularityIndividual:
		return true
	}
	return false
}

type OutputFormat string

const (
	FormatJSON OutputFormat = "json"
	FormatCSV  OutputFormat = "csv"
	FormatXLSX OutputFormat = "xlsx"
	FormatPDF  OutputFormat = "pdf"
)

func (f OutputFormat) Valid() bool {
	switch f {
	case FormatJSON, FormatCSV, FormatXLSX, FormatPDF:
		return true
	}
	return false
}

type Preset string

const (
	PresetToday     Preset = "today"
	PresetThisWeek  Preset = "this_week"
	PresetThisMonth Preset = "this_month"
	PresetLastMonth Preset = "last_month"
	PresetThisYear  Preset = "this_year"
)

// Request is a validated report request. An empty SubjectID reports on every subject.
type Request struct {
	Start       time.Time
	End         time.Time
	Granularity Granularity
	SubjectID   string
	Format      OutputFormat
}

// AllSubjects reports whether the request spans every subject.
func (r Request) AllSubjects() bool {
	return strings.TrimSpace(r.SubjectID) == ""
}

// IncludeLines reports whether individual records are flattened into the result.
func (r Request) IncludeLines() bool {
	return !r.AllSubjects() || r.Granularity == GranularityIndividual
}

type Total struct {
	Currency string `json:"currency"`
	Minor    int64  `json:"amount_minor"`
	Amount   string `json:"amount"`
}

type Bucket struct {
	Label       string  `json:"label"`
	Start       string  `json:"start"`
	End         string  `json:"end"`
	RecordCount int     `json:"record_count"`
	Totals      []Total `json:"totals"`
}

type Line struct {
	RecordID     string `json:"record_id"`
	ServiceDate  string `json:"service_date"`
	SubjectID    string `json:"subject_id"`
	ActionCode   string `json:"action_code"`
	ActionName   string `json:"action_name"`
	Quantity     string `json:"quantity"`
	Unit         string `json:"unit,omitempty"`
	Currency     string `json:"currency"`
	UnitPrice    string `json:"unit_price"`
	ProcedureFee string `json:"procedure_fee"`
	Amount       string `json:"amount"`
	AmountMinor  int64  `json:"amount_minor"`
}

type RequestEcho struct {
	Start       string       `json:"start"`
	End         string       `json:"end"`
	Granularity Granularity  `json:"granularity"`
	SubjectID   string       `json:"subject_id,omitempty"`
	Format      OutputFormat `json:"format"`
}

type Result struct {
	RunID       string      `json:"run_id"`
	GeneratedAt time.Time   `json:"generated_at"`
	Request     RequestEcho `json:"request"`
	Buckets     []Bucket    `json:"buckets"`
	RecordCount int         `json:"record_count"`
	Totals      []Total     `json:"totals"`
	Lines       []Line      `json:"records,omitempty"`
}

// Export is a rendered report ready to be sent to a client.
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
}
