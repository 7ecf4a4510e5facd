package core

import (
	"strconv"
	"time"
)

// Parse converts src into records or errors. It performs no I/O beyond
// reading src.Data, and every record it returns is stamped with now.
func Parse(src SourceFile, opts ParseOptions, now time.Time) ParseOutcome {
	var out ParseOutcome

	switch src.Format {
	case FormatCSV:
		out = parseCSV(src.Data, opts)
	case FormatJSON:
		out = parseJSON(src.Data)
	case FormatXLSX:
		out = parseXLSX(src.Data)
	default:
		return failed(unsupportedFormatError(src.Name))
	}

	if !out.OK() {
		return ParseOutcome{Errors: out.Errors}
	}
	for _, r := range out.Records {
		r.stamp(now)
	}
	return out
}

// uniqueHeaders returns header names safe to use as record keys. Blank names
// are replaced by blank(i) and repeated names get _1, _2 suffixes.
func uniqueHeaders(header []string, blank func(i int) string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))

	for i, h := range header {
		if h == "" {
			h = blank(i)
		}
		name := h
		for n := 1; used[name]; n++ {
			name = h + "_" + strconv.Itoa(n)
		}
		used[name] = true
		out[i] = name
	}
	return out
}
