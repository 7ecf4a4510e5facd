package core

import (
	"bytes"
	"encoding/json"
	"io"
)

// parseJSON decodes a JSON array of objects. Numbers keep their literal form
// as json.Number so they are re-encoded unchanged on upload.
func parseJSON(data []byte) ParseOutcome {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	dec.UseNumber()

	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil || rows == nil {
		return failed(ImportError{Message: MsgJSONFailed})
	}
	if _, err := dec.Token(); err != io.EOF {
		return failed(ImportError{Message: MsgJSONFailed})
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			return failed(ImportError{Message: MsgJSONFailed})
		}
		records = append(records, Record(row))
	}
	return ParseOutcome{Records: records}
}
