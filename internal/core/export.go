package core

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"
)

// TemplateFile is a rendered template download.
type TemplateFile struct {
	Name        string
	ContentType string
	Data        []byte
}

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// RenderTemplate renders rows for def as CSV or XLSX. With no rows the
// result is a header-only template of the declared field names.
func RenderTemplate(def TargetDefinition, rows []map[string]any, format Format) (*TemplateFile, error) {
	columns := templateColumns(def, rows)
	name := fmt.Sprintf("%s-template.%s", def.Target, format)

	switch format {
	case FormatCSV:
		data, err := renderCSV(columns, rows)
		if err != nil {
			return nil, err
		}
		return &TemplateFile{Name: name, ContentType: contentTypeCSV, Data: data}, nil
	case FormatXLSX:
		data, err := renderXLSX(string(def.Target), columns, rows)
		if err != nil {
			return nil, err
		}
		return &TemplateFile{Name: name, ContentType: contentTypeXLSX, Data: data}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// templateColumns returns the sorted union of keys across rows, or the
// declared field names when rows is empty.
func templateColumns(def TargetDefinition, rows []map[string]any) []string {
	if len(rows) == 0 {
		return def.FieldNames()
	}

	set := make(map[string]struct{})
	for _, row := range rows {
		for k := range row {
			set[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(set))
	for k := range set {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func renderCSV(columns []string, rows []map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	line := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			line[i] = valueString(row[col])
		}
		if err := w.Write(line); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func renderXLSX(sheet string, columns []string, rows []map[string]any) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for r, row := range rows {
		values := make([]any, len(columns))
		for i, col := range columns {
			values[i] = valueString(row[col])
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", r+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
