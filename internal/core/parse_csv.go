package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// parseCSV tokenizes comma-separated text. Blank lines are skipped. Any
// tokenization error aborts the parse with a single row-scoped error.
func parseCSV(data []byte, opts ParseOptions) ParseOutcome {
	text, err := decodeText(data, opts.Encoding)
	if err != nil {
		return failed(ImportError{Message: err.Error()})
	}

	r := csv.NewReader(strings.NewReader(text))
	if opts.Header {
		r.FieldsPerRecord = 0 // every row must match the header
	} else {
		r.FieldsPerRecord = -1
	}

	var (
		header  []string
		records []Record
	)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return failed(csvError(err, row, len(header)))
		}

		if !opts.Header {
			rec := make(Record, len(row))
			for i, v := range row {
				rec[strconv.Itoa(i)] = v
			}
			records = append(records, rec)
			continue
		}

		if header == nil {
			header = uniqueHeaders(row, strconv.Itoa)
			continue
		}

		rec := make(Record, len(header))
		for i, v := range row {
			rec[header[i]] = v
		}
		records = append(records, rec)
	}

	return ParseOutcome{Records: records}
}

// csvError converts a reader error into an ImportError keyed by file line.
func csvError(err error, row []string, want int) ImportError {
	var pe *csv.ParseError
	if !errors.As(err, &pe) {
		return ImportError{Message: err.Error()}
	}

	line := pe.Line
	if line == 0 {
		line = pe.StartLine
	}

	if errors.Is(pe.Err, csv.ErrFieldCount) && want > 0 {
		got := len(row)
		if got < want {
			return ImportError{Row: line, Message: fmt.Sprintf("Too few fields: expected %d fields but parsed %d", want, got)}
		}
		return ImportError{Row: line, Message: fmt.Sprintf("Too many fields: expected %d fields but parsed %d", want, got)}
	}

	return ImportError{Row: line, Message: pe.Err.Error()}
}
