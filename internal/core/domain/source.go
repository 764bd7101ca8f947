package domain

import "time"

// Source kinds.
const (
	SourceKindHTTP = "http"
	SourceKindFile = "file"
)

// Payload formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// CSV time column formats.
const (
	TimeDecimalYear = "decimal-year"
	TimeYear        = "year"
	TimeDate        = "date"
	TimeRFC3339     = "rfc3339"
)

// FetchResult is the uniform shape every source returns.
type FetchResult struct {
	Source      string
	Attribution string
	Records     []Observation
}

// CSVLayout describes how to read observations out of a CSV payload.
// Column indexes are zero based.
type CSVLayout struct {
	TimeColumn   int            `yaml:"time_column"`
	ValueColumn  int            `yaml:"value_column"`
	TimeFormat   string         `yaml:"time_format"`
	Comment      string         `yaml:"comment"`
	SkipRows     int            `yaml:"skip_rows"`
	Header       bool           `yaml:"header"`
	Missing      []string       `yaml:"missing"`
	FieldColumns map[string]int `yaml:"fields"`
}

// SourceSpec is one entry of a dataset's ordered fallback list.
type SourceSpec struct {
	Name     string
	Kind     string
	Location string
	Format   string
	CSV      CSVLayout
}

// DatasetSpec is a named dataset with its ordered sources.
// The first source that succeeds wins.
type DatasetSpec struct {
	Name        string
	Attribution string
	MaxAge      time.Duration
	Sources     []SourceSpec
}
