package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DisplayState is the view a session should render.
type DisplayState string

const (
	StateErrors DisplayState = "errors"
	StateData   DisplayState = "data"
	StateReady  DisplayState = "ready"
)

const (
	opParse  = "parse"
	opUpload = "upload"
)

// busyError reports which operation holds the session.
type busyError struct{ op string }

func (e *busyError) Error() string {
	if e.op == opUpload {
		return "an upload is already in progress"
	}
	return "a parse is already in progress"
}

func (e *busyError) Unwrap() error { return ErrBusy }

// Session holds the state of one import: target, file, records and errors.
// Methods are safe for concurrent use; parse and upload are single-flight.
type Session struct {
	id  string
	now func() time.Time

	mu         sync.Mutex
	busy       string
	target     Target
	file       *SourceFile
	options    ParseOptions
	records    []Record
	errors     []ImportError
	warnings   []ImportError
	notice     string
	lastUpload *UploadResult
	createdAt  time.Time
	touchedAt  time.Time
}

// NewSession creates an empty session. now defaults to time.Now.
func NewSession(id string, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	t := now()
	return &Session{
		id:        id,
		now:       now,
		options:   ParseOptions{Encoding: EncodingUTF8},
		createdAt: t,
		touchedAt: t,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Target returns the selected target, or "" if none.
func (s *Session) Target() Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// lock acquires the session mutex and rejects the call if an operation is
// running. The caller must unlock on success.
func (s *Session) lock() error {
	s.mu.Lock()
	if s.busy != "" {
		op := s.busy
		s.mu.Unlock()
		return &busyError{op: op}
	}
	s.touchedAt = s.now()
	return nil
}

// SelectTarget sets the destination collection. The target can be chosen
// once; choosing the same one again is a no-op.
func (s *Session) SelectTarget(t Target) error {
	if _, ok := Lookup(t); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTarget, t)
	}
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if s.target != "" && s.target != t {
		return fmt.Errorf("%w: %s", ErrTargetLocked, s.target)
	}
	s.target = t
	s.refreshWarnings()
	return nil
}

// SelectFile replaces the current file. Records parsed from a previous file
// and any errors are cleared. Unsupported formats leave the session without
// a file and record an ImportError.
func (s *Session) SelectFile(name string, data []byte) error {
	format, detectErr := DetectFormat(name)

	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	s.records = nil
	s.warnings = nil
	s.notice = ""

	if detectErr != nil {
		s.file = nil
		s.errors = []ImportError{unsupportedFormatError(name)}
		return detectErr
	}

	s.file = &SourceFile{Name: name, Format: format, Data: data}
	s.errors = nil
	return nil
}

// ClearFile discards the current file and anything parsed from it.
func (s *Session) ClearFile() error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	s.file = nil
	s.records = nil
	s.errors = nil
	s.warnings = nil
	s.notice = ""
	return nil
}

// Parse parses the current file. On success records replace any previous
// errors; on failure errors replace any previous records. Without a file the
// session records MsgNoFile.
func (s *Session) Parse(ctx context.Context, opts ParseOptions) (ParseOutcome, error) {
	if err := s.lock(); err != nil {
		return ParseOutcome{}, err
	}
	s.options = opts
	s.notice = ""
	if s.file == nil {
		e := ImportError{Message: MsgNoFile}
		s.records = nil
		s.warnings = nil
		s.errors = []ImportError{e}
		s.mu.Unlock()
		return failed(e), e
	}
	src := *s.file
	s.busy = opParse
	s.mu.Unlock()

	out := Parse(src, opts, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = ""

	if err := ctx.Err(); err != nil {
		return ParseOutcome{}, err
	}
	if out.OK() {
		s.records = out.Records
		s.errors = nil
	} else {
		s.records = nil
		s.errors = out.Errors
	}
	s.refreshWarnings()
	return out, nil
}

// CheckUploadable reports whether an upload could start now. A missing
// target or missing records is recorded on the session like a rejected
// Upload would record it.
func (s *Session) CheckUploadable() error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.uploadPrecondition()
}

// uploadPrecondition records and returns the first unmet upload
// precondition. Callers hold s.mu.
func (s *Session) uploadPrecondition() error {
	var msg string
	switch {
	case s.target == "":
		msg = MsgSelectTarget
	case len(s.records) == 0:
		msg = MsgNoData
	default:
		return nil
	}
	e := ImportError{Message: msg}
	s.errors = []ImportError{e}
	s.notice = ""
	return e
}

// Upload submits the parsed records to the target's endpoint. Preconditions
// are checked before any network call. A nil result means nothing was sent.
func (s *Session) Upload(ctx context.Context, sub Submitter, batch bool) (*UploadResult, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	if err := s.uploadPrecondition(); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	def, _ := Lookup(s.target)
	records := s.records
	result := &UploadResult{
		Target: def.Target,
		Total:  len(records),
		Batch:  batch,
	}
	if s.file != nil {
		result.FileName = s.file.Name
		result.Format = s.file.Format
	}
	s.busy = opUpload
	s.notice = ""
	s.mu.Unlock()

	result.StartedAt = s.now()

	var err error
	if batch {
		result.Submitted, err = SubmitBatch(ctx, sub, def.Path, records)
	} else {
		result.Submitted, err = Submit(ctx, sub, def.Path, records)
	}
	result.FinishedAt = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = ""
	s.lastUpload = result

	if err != nil {
		msg := uploadFailureMessage(err)
		result.Error = msg
		s.errors = []ImportError{{Message: msg}}
		return result, err
	}

	s.errors = nil
	s.notice = MsgUploadSucceeded
	return result, nil
}

// refreshWarnings recomputes advisory warnings. Callers hold s.mu.
func (s *Session) refreshWarnings() {
	if s.target == "" || len(s.records) == 0 {
		s.warnings = nil
		return
	}
	s.warnings = Validate(s.target, s.records)
}

// idleSince reports whether the session has been untouched since t.
func (s *Session) idleSince(t time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy == "" && s.touchedAt.Before(t)
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ID          string        `json:"id"`
	Target      Target        `json:"target,omitempty"`
	TargetLabel string        `json:"targetLabel,omitempty"`
	FileName    string        `json:"fileName,omitempty"`
	Format      Format        `json:"format,omitempty"`
	FileSize    int           `json:"fileSize,omitempty"`
	Options     ParseOptions  `json:"options"`
	Records     []Record      `json:"records"`
	Errors      []ImportError `json:"errors"`
	Warnings    []ImportError `json:"warnings"`
	Notice      string        `json:"notice,omitempty"`
	LastUpload  *UploadResult `json:"lastUpload,omitempty"`
	Busy        string        `json:"busy,omitempty"`
	State       DisplayState  `json:"state"`
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:       s.id,
		Target:   s.target,
		Options:  s.options,
		Records:  append([]Record{}, s.records...),
		Errors:   append([]ImportError{}, s.errors...),
		Warnings: append([]ImportError{}, s.warnings...),
		Notice:   s.notice,
		Busy:     s.busy,
	}
	if def, ok := Lookup(s.target); ok {
		snap.TargetLabel = def.Label
	}
	if s.file != nil {
		snap.FileName = s.file.Name
		snap.Format = s.file.Format
		snap.FileSize = len(s.file.Data)
	}
	if s.lastUpload != nil {
		lu := *s.lastUpload
		snap.LastUpload = &lu
	}

	switch {
	case len(snap.Errors) > 0:
		snap.State = StateErrors
	case len(snap.Records) > 0:
		snap.State = StateData
	default:
		snap.State = StateReady
	}
	return snap
}

// IsBusy reports whether err was caused by an operation already running.
func IsBusy(err error) bool { return errors.Is(err, ErrBusy) }
