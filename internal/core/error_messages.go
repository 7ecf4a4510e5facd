package core

// error_messages.go maps technical errors to user-facing messages.
//
// # Error Codes Reference
//
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis. Codes are grouped by category.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the maximum upload size
//	          Patterns: "file too large", "request body too large"
//	FILE002 - Unsupported type: Only CSV, JSON and XLSX files are accepted
//	          Patterns: "unsupported file type"
//	FILE003 - No file: No file was selected
//	          Patterns: "no file provided", "please upload a file"
//	FILE004 - Empty file: The uploaded file is empty
//	          Patterns: "empty file"
//
// # Parse Errors (PARSE001-PARSE099)
//
//	PARSE001 - Invalid JSON: The file is not a JSON array of objects
//	           Patterns: "failed to parse json"
//	PARSE002 - Unreadable spreadsheet
//	           Patterns: "failed to read spreadsheet"
//	PARSE003 - Unknown encoding or undecodable bytes
//	           Patterns: "unknown encoding", "encoding error"
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - No target: No import target selected
//	         Patterns: "please select an option"
//	UPL002 - No data: Nothing parsed to upload
//	         Patterns: "no valid data found"
//	UPL003 - Busy: Another parse or upload is running for this session
//	         Patterns: "already in progress"
//	UPL004 - Request cancelled
//	         Patterns: "context canceled"
//	UPL005 - Request timeout
//	         Patterns: "context deadline exceeded"
//	UPL006 - Upload capacity: Too many uploads are running
//	         Patterns: "too many concurrent uploads"
//
// # API Errors (API001-API099)
//
//	API001 - Rejected: The master-data API refused a record (4xx)
//	         Patterns: "api status 4"
//	API002 - Unavailable: The master-data API failed (5xx)
//	         Patterns: "api status 5"
//	API003 - Unreachable: The master-data API could not be contacted
//	         Patterns: "connection refused", "no such host", "connection reset"
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Session expired
//	         Patterns: "session not found"
//	SES002 - Target locked: The target cannot change within a session
//	         Patterns: "target already selected"
//	SES003 - Unknown target
//	         Patterns: "unknown target"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Check application logs for the
// original technical error.
//
// Patterns are matched case-insensitively using strings.Contains and the
// first match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgTooLarge = UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller files",
		Code:    "FILE001",
	}
	msgNoFile = UserMessage{
		Message: "No file was selected",
		Action:  "Choose a CSV, JSON or XLSX file to import",
		Code:    "FILE003",
	}
	msgBadEncoding = UserMessage{
		Message: "The file could not be decoded",
		Action:  "Pick the encoding the file was saved with, or save it as UTF-8",
		Code:    "PARSE003",
	}
	msgUnreachable = UserMessage{
		Message: "Unable to reach the master-data service",
		Action:  "Please try again in a few moments",
		Code:    "API003",
	}
)

var errorPatterns = []errorPattern{
	// File errors
	{"file too large", msgTooLarge},
	{"request body too large", msgTooLarge},
	{"unsupported file type", UserMessage{
		Message: "This file type is not supported",
		Action:  "Upload a .csv, .json or .xlsx file",
		Code:    "FILE002",
	}},
	{"no file provided", msgNoFile},
	{"please upload a file", msgNoFile},
	{"empty file", UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Upload a file with at least one data row",
		Code:    "FILE004",
	}},

	// Parse errors
	{"failed to parse json", UserMessage{
		Message: "The file is not a valid JSON array of objects",
		Action:  "Check the file contents and try again",
		Code:    "PARSE001",
	}},
	{"failed to read spreadsheet", UserMessage{
		Message: "The spreadsheet could not be read",
		Action:  "Re-save the workbook as .xlsx and try again",
		Code:    "PARSE002",
	}},
	{"unknown encoding", msgBadEncoding},
	{"encoding error", msgBadEncoding},

	// Upload errors
	{"please select an option", UserMessage{
		Message: "No import target selected",
		Action:  "Choose Items, Process, Bill of Material or Process Step",
		Code:    "UPL001",
	}},
	{"no valid data found", UserMessage{
		Message: "There is no parsed data to upload",
		Action:  "Upload and parse a valid file first",
		Code:    "UPL002",
	}},
	{"already in progress", UserMessage{
		Message: "Another operation is running for this import",
		Action:  "Wait for it to finish and try again",
		Code:    "UPL003",
	}},
	{"context canceled", UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}},
	{"context deadline exceeded", UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "UPL005",
	}},
	{"too many concurrent uploads", UserMessage{
		Message: "The server is busy with other uploads",
		Action:  "Please try again in a minute",
		Code:    "UPL006",
	}},

	// Rate limiting (must precede API errors)
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},

	// API errors
	{"api status 4", UserMessage{
		Message: "The master-data service rejected a record",
		Action:  "Correct the highlighted record and upload again",
		Code:    "API001",
	}},
	{"api status 5", UserMessage{
		Message: "The master-data service is unavailable",
		Action:  "Please try again in a few moments",
		Code:    "API002",
	}},
	{"connection refused", msgUnreachable},
	{"no such host", msgUnreachable},
	{"connection reset", msgUnreachable},

	// Session errors
	{"session not found", UserMessage{
		Message: "Your import session has expired",
		Action:  "Start a new import",
		Code:    "SES001",
	}},
	{"target already selected", UserMessage{
		Message: "The import target cannot be changed",
		Action:  "Start a new import to use a different target",
		Code:    "SES002",
	}},
	{"unknown target", UserMessage{
		Message: "Unknown import target",
		Action:  "Choose Items, Process, Bill of Material or Process Step",
		Code:    "SES003",
	}},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, a generic fallback with code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
