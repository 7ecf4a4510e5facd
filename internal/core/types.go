package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrBusy is returned when a parse or upload is already running for the session.
	ErrBusy = errors.New("operation already in progress")

	// ErrTargetLocked is returned when a session's target is changed after selection.
	ErrTargetLocked = errors.New("target already selected for this session")

	// ErrUnsupportedFormat is returned for files that are not CSV, JSON or XLSX.
	ErrUnsupportedFormat = errors.New("unsupported file type")

	// ErrUnknownTarget is returned for target names outside the registry.
	ErrUnknownTarget = errors.New("unknown target")

	// ErrSessionNotFound is returned when a session id has expired or never existed.
	ErrSessionNotFound = errors.New("session not found")
)

// Target identifies the destination collection of an import.
type Target string

const (
	TargetItems          Target = "items"
	TargetProcess        Target = "process"
	TargetBillOfMaterial Target = "bill-of-material"
	TargetProcessStep    Target = "process-step"
)

func (t Target) String() string { return string(t) }

// ParseTarget resolves a target name. Unknown names return ErrUnknownTarget.
func ParseTarget(s string) (Target, error) {
	t := Target(s)
	if _, ok := Lookup(t); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTarget, s)
	}
	return t, nil
}

// Format is the input file format, resolved once when a file is selected.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

func (f Format) String() string { return string(f) }

// SourceFile is a user-selected input file. It is held in memory only.
type SourceFile struct {
	Name   string
	Format Format
	Data   []byte
}

// Supported CSV byte encodings.
const (
	EncodingUTF8        = "utf-8"
	EncodingWindows1252 = "windows-1252"
	EncodingISO88591    = "iso-8859-1"
	EncodingWindows1251 = "windows-1251"
)

// ParseOptions controls how a file is parsed.
type ParseOptions struct {
	Header   bool   `json:"header"`   // first CSV row holds field names
	Encoding string `json:"encoding"` // CSV byte encoding; empty means UTF-8
}

// Metadata fields stamped onto every parsed record.
const (
	FieldCreatedAt = "created_at"
	FieldDeletedAt = "deleted_at"
)

// timestampLayout matches the millisecond UTC form browsers produce.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Record is one parsed row keyed by header name or positional index.
type Record map[string]any

func (r Record) stamp(now time.Time) {
	r[FieldCreatedAt] = now.UTC().Format(timestampLayout)
	r[FieldDeletedAt] = nil
}

// ImportError is a user-facing failure. Row > 0 ties it to a row of the
// input; Row == 0 applies to the whole batch.
type ImportError struct {
	Row     int    `json:"row,omitempty"`
	Message string `json:"message"`
}

func (e ImportError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("Row %d: %s", e.Row, e.Message)
	}
	return e.Message
}

// ParseOutcome is the result of parsing a file: records or errors, never both.
type ParseOutcome struct {
	Records []Record
	Errors  []ImportError
}

// OK reports whether the parse produced no errors.
func (o ParseOutcome) OK() bool { return len(o.Errors) == 0 }

func failed(e ImportError) ParseOutcome {
	return ParseOutcome{Errors: []ImportError{e}}
}

// User-facing messages.
const (
	MsgSelectTarget    = "Please select an option (Items, Process, Bill of Material, or Process Step)."
	MsgNoData          = "No valid data found. Please upload and parse a valid file."
	MsgNoFile          = "Please upload a file."
	MsgUploadFailed    = "An error occurred while uploading data."
	MsgUploadSucceeded = "Data uploaded successfully!"
	MsgJSONFailed      = "Failed to parse JSON file."
)
