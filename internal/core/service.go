package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/masterdata/internal/history"
	"github.com/JonMunkholm/masterdata/internal/logging"
	"github.com/JonMunkholm/masterdata/internal/metrics"
)

// API is the remote master-data service.
type API interface {
	Submitter
	List(ctx context.Context, path string) ([]map[string]any, error)
}

// Options configures a Service. Zero values take defaults.
type Options struct {
	Batch         bool          // submit all records in one request
	UploadTimeout time.Duration // upper bound for one upload sequence (default: 10m)
	SessionTTL    time.Duration // idle time before a session expires (default: 1h)

	MaxConcurrentUploads int           // upload sequences running at once (default: 5)
	UploadWait           time.Duration // wait for a free upload slot (default: 30s)

	Now func() time.Time
}

// Service owns import sessions and runs parses and uploads for them.
type Service struct {
	api     API
	store   history.Store
	opts    Options
	limiter *UploadLimiter

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService creates a Service. store may be nil to disable run history.
func NewService(api API, store history.Store, opts Options) *Service {
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 10 * time.Minute
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		api:      api,
		store:    store,
		opts:     opts,
		limiter:  NewUploadLimiter(opts.MaxConcurrentUploads, opts.UploadWait),
		sessions: make(map[string]*Session),
	}
}

// NewSession creates and registers an empty session.
func (s *Service) NewSession() *Session {
	sess := NewSession(uuid.NewString(), s.opts.Now)

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.SessionsActive.Set(float64(n))
	return sess
}

// Session returns the session with id.
func (s *Service) Session(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// ResetSession discards session id, if present, and returns a new one.
func (s *Service) ResetSession(id string) *Session {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return s.NewSession()
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Parse parses the session's current file and records metrics.
func (s *Service) Parse(ctx context.Context, sess *Session, opts ParseOptions) (ParseOutcome, error) {
	log := logging.WithFields(logging.ContextWithSession(ctx, sess.ID()))
	start := time.Now()

	out, err := sess.Parse(ctx, opts)
	if IsBusy(err) {
		return out, err
	}

	snap := sess.Snapshot()
	target, format := string(snap.Target), string(snap.Format)
	if snap.FileName == "" {
		return out, err
	}

	metrics.RecordParse(labelOr(target), format, len(out.Records), out.OK())
	if out.OK() {
		log.Info("file parsed",
			"file", snap.FileName,
			"format", format,
			"header", opts.Header,
			"records", len(out.Records),
			"warnings", len(snap.Warnings),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	} else {
		log.Info("file parse failed",
			"file", snap.FileName,
			"format", format,
			"error", out.Errors[0].Error(),
		)
	}
	return out, err
}

// Upload submits the session's records. The sequence runs detached from the
// caller's cancellation so it finishes or fails on its own, bounded by
// Options.UploadTimeout.
func (s *Service) Upload(ctx context.Context, sess *Session) (*UploadResult, error) {
	ctx = logging.ContextWithSession(ctx, sess.ID())
	log := logging.WithFields(ctx)

	if err := sess.CheckUploadable(); err != nil {
		log.Info("upload rejected", "error", err)
		return nil, err
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		log.Warn("upload slot unavailable", "error", err)
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.UploadTimeout)
	defer cancel()

	log.Info("upload started", "target", sess.Target(), "batch", s.opts.Batch)

	result, err := sess.Upload(ctx, s.api, s.opts.Batch)
	if result == nil {
		if err != nil {
			log.Info("upload rejected", "error", err)
		}
		return nil, err
	}

	rejected := 0
	if !result.OK() {
		rejected = 1
	}
	metrics.RecordUpload(string(result.Target), result.Submitted, rejected, result.Duration(), result.OK())

	if err != nil {
		log.Warn("upload failed",
			"target", result.Target,
			"file", result.FileName,
			"submitted", result.Submitted,
			"total", result.Total,
			"error", err,
		)
	} else {
		log.Info("upload completed",
			"target", result.Target,
			"file", result.FileName,
			"submitted", result.Submitted,
			"duration_ms", result.Duration().Milliseconds(),
		)
	}

	s.recordRun(ctx, sess.ID(), result)
	return result, err
}

func (s *Service) recordRun(ctx context.Context, sessionID string, result *UploadResult) {
	if s.store == nil {
		return
	}

	run := history.Run{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Target:     string(result.Target),
		FileName:   result.FileName,
		Format:     string(result.Format),
		Records:    result.Total,
		Submitted:  result.Submitted,
		Status:     history.StatusSucceeded,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
	}
	if !result.OK() {
		run.Status = history.StatusFailed
		run.Error = result.Error
	}

	if err := s.store.Record(ctx, run); err != nil {
		logging.FromContext(ctx).Error("failed to record import run", "error", err)
	}
}

// UploadStatus reports how many upload sequences are running.
func (s *Service) UploadStatus() UploadLimiterStatus {
	return s.limiter.Status()
}

// WaitForUploads blocks until running upload sequences finish or ctx is done.
func (s *Service) WaitForUploads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// ExportTemplate downloads the current collection for target and renders it
// as a CSV or XLSX template.
func (s *Service) ExportTemplate(ctx context.Context, target Target, format Format) (*TemplateFile, error) {
	def, ok := Lookup(target)
	if !ok {
		return nil, ErrUnknownTarget
	}
	if format != FormatCSV && format != FormatXLSX {
		return nil, ErrUnsupportedFormat
	}

	rows, err := s.api.List(ctx, def.Path)
	if err != nil {
		return nil, err
	}
	return RenderTemplate(def, rows, format)
}

// History returns the most recent import runs.
func (s *Service) History(ctx context.Context, limit int) ([]history.Run, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.Recent(ctx, limit)
}

// StartJanitor expires idle sessions every interval until ctx is cancelled.
func (s *Service) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.expireSessions(); n > 0 {
				slog.Debug("expired import sessions", "count", n)
			}
		}
	}
}

// expireSessions removes sessions idle longer than SessionTTL.
func (s *Service) expireSessions() int {
	cutoff := s.opts.Now().Add(-s.opts.SessionTTL)

	s.mu.Lock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.idleSince(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.SessionsActive.Set(float64(n))
	return removed
}

func labelOr(target string) string {
	if target == "" {
		return "none"
	}
	return target
}

// IsImportError reports whether err is a user-facing ImportError.
func IsImportError(err error) bool {
	var ie ImportError
	return errors.As(err, &ie)
}
