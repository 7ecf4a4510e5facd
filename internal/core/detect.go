package core

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DetectFormat resolves the input format from a file name's extension.
func DetectFormat(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
	switch ext {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

func unsupportedFormatError(name string) ImportError {
	return ImportError{Message: fmt.Sprintf("Unsupported file type: %q", filepath.Ext(name))}
}
