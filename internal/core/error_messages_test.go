package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"unsupported file", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ".pdf"), "FILE002"},
		{"body too large", errors.New("http: request body too large"), "FILE001"},
		{"no file", ImportError{Message: MsgNoFile}, "FILE003"},
		{"json failure", ImportError{Message: MsgJSONFailed}, "PARSE001"},
		{"spreadsheet failure", ImportError{Message: "Failed to read spreadsheet: zip: not a valid zip file"}, "PARSE002"},
		{"unknown encoding", errors.New(`unknown encoding "ebcdic"`), "PARSE003"},
		{"no target", ImportError{Message: MsgSelectTarget}, "UPL001"},
		{"no data", ImportError{Message: MsgNoData}, "UPL002"},
		{"busy upload", &busyError{op: opUpload}, "UPL003"},
		{"busy parse", &busyError{op: opParse}, "UPL003"},
		{"deadline", fmt.Errorf("record 3: %w", errors.New("context deadline exceeded")), "UPL005"},
		{"upload capacity", ErrTooManyUploads, "UPL006"},
		{"rate limit wait", errors.New("rate limit wait: rate: Wait(n=1) would exceed context deadline"), "RATE001"},
		{"api rejected", errors.New("record 2: api status 422: tenant_id is required"), "API001"},
		{"api down", errors.New("record 1: api status 503"), "API002"},
		{"unreachable", errors.New("POST /items: dial tcp 10.0.0.1:443: connect: connection refused"), "API003"},
		{"session expired", ErrSessionNotFound, "SES001"},
		{"target locked", fmt.Errorf("%w: items", ErrTargetLocked), "SES002"},
		{"unknown target", fmt.Errorf("%w: %q", ErrUnknownTarget, "widgets"), "SES003"},
		{"unknown error returns default", errors.New("some random internal error"), "ERR000"},
		{"case insensitive matching", errors.New("UNSUPPORTED FILE TYPE"), "FILE002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrSessionNotFound)
	want := "Your import session has expired (Code: SES001). Start a new import"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("nil should not be user facing")
	}
	if !IsUserFacing(&busyError{op: opParse}) {
		t.Error("busy error should be user facing")
	}
	if IsUserFacing(errors.New("boom")) {
		t.Error("unknown error should not be user facing")
	}
}
