package core

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"
)

// parseXLSX reads the first worksheet. The first non-blank row is the header;
// blank rows are skipped and blank cells are left out of the record.
func parseXLSX(data []byte) ParseOutcome {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return failed(spreadsheetError(err.Error()))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return failed(spreadsheetError("workbook has no sheets"))
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return failed(spreadsheetError(err.Error()))
	}

	var (
		raw     []string // trimmed header cells
		header  []string
		records []Record
	)
	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}
		if header == nil {
			raw = trimCells(row)
			header = uniqueHeaders(raw, columnName)
			continue
		}

		// Cells past the header are keyed by column letter, deduplicated
		// against the header names.
		if len(row) > len(header) {
			raw = append(raw, make([]string, len(row)-len(raw))...)
			header = uniqueHeaders(raw, columnName)
		}

		rec := make(Record, len(row))
		for i, v := range row {
			if v != "" {
				rec[header[i]] = v
			}
		}
		records = append(records, rec)
	}

	return ParseOutcome{Records: records}
}

func spreadsheetError(reason string) ImportError {
	return ImportError{Message: "Failed to read spreadsheet: " + reason}
}

// columnName returns the spreadsheet letter for a zero-based column index.
func columnName(i int) string {
	name, err := excelize.ColumnNumberToName(i + 1)
	if err != nil {
		return ""
	}
	return name
}

func trimCells(row []string) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
