package core

// upload.go submits parsed records to the master-data API.
//
// Records go out strictly in order, one request per record, and the sequence
// stops at the first failure. Batch mode sends the whole slice as a single
// JSON array when the remote endpoint accepts array bodies. Neither mode
// retries.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Submitter sends one JSON body to an API path.
type Submitter interface {
	Post(ctx context.Context, path string, body any) error
}

// UploadResult summarizes a finished upload sequence.
type UploadResult struct {
	Target     Target    `json:"target"`
	FileName   string    `json:"fileName,omitempty"`
	Format     Format    `json:"format,omitempty"`
	Total      int       `json:"total"`
	Submitted  int       `json:"submitted"`
	Batch      bool      `json:"batch"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// OK reports whether every record was accepted.
func (r UploadResult) OK() bool { return r.Error == "" }

// Duration returns how long the sequence ran.
func (r UploadResult) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Submit posts records one at a time and stops at the first failure. It
// returns the number of records accepted before the failure.
func Submit(ctx context.Context, sub Submitter, path string, records []Record) (int, error) {
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return i, fmt.Errorf("record %d: %w", i+1, err)
		}
		if err := sub.Post(ctx, path, rec); err != nil {
			return i, fmt.Errorf("record %d: %w", i+1, err)
		}
	}
	return len(records), nil
}

// SubmitBatch posts all records in one request.
func SubmitBatch(ctx context.Context, sub Submitter, path string, records []Record) (int, error) {
	if err := sub.Post(ctx, path, records); err != nil {
		return 0, fmt.Errorf("batch of %d records: %w", len(records), err)
	}
	return len(records), nil
}

// serverMessenger is implemented by API errors that carry a message from the
// remote server.
type serverMessenger interface {
	ServerMessage() string
}

// uploadFailureMessage returns the server-supplied message for err, or the
// generic upload failure message.
func uploadFailureMessage(err error) string {
	var sm serverMessenger
	if errors.As(err, &sm) {
		if msg := strings.TrimSpace(sm.ServerMessage()); msg != "" {
			return msg
		}
	}
	return MsgUploadFailed
}
