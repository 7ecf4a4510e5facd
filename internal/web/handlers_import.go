package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/masterdata/internal/core"
	"github.com/JonMunkholm/masterdata/internal/web/templates"
)

var (
	errNoFile    = errors.New("no file provided")
	errEmptyFile = errors.New("empty file")
)

// multipartOverhead is allowed on top of the file size for form framing.
const multipartOverhead = 1 << 20

// handleImportPage renders the console for the caller's session.
func (s *Server) handleImportPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, templates.ImportPage(templates.ImportView{
		Session:   s.viewSnapshot(r),
		Targets:   core.Targets(),
		Encodings: core.Encodings(),
		MaxSize:   s.cfg.Upload.MaxFileSize,
	}))
}

// handleState returns the caller's session as JSON.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.viewSnapshot(r))
}

func (s *Server) handleSelectTarget(w http.ResponseWriter, r *http.Request) {
	sess, _ := s.session(w, r)

	name, err := formValue(r, "target")
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	target, err := core.ParseTarget(strings.TrimSpace(name))
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	if err := sess.SelectTarget(target); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.respondSession(w, r, sess, http.StatusOK)
}

// handleSelectFile stores the uploaded file in the session. Unsupported
// formats are recorded on the session and shown on the page.
func (s *Server) handleSelectFile(w http.ResponseWriter, r *http.Request) {
	sess, ctx := s.session(w, r)
	maxSize := s.cfg.Upload.MaxFileSize

	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		status := http.StatusBadRequest
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
		}
		s.respondError(w, r, fmt.Errorf("parse form: %w", err), status)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, errNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > maxSize {
		s.respondError(w, r, fmt.Errorf("file too large: %d bytes exceeds %d", header.Size, maxSize), http.StatusRequestEntityTooLarge)
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("read file: %w", err), http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		s.respondError(w, r, errEmptyFile, http.StatusBadRequest)
		return
	}

	err = sess.SelectFile(header.Filename, data)
	switch {
	case errors.Is(err, core.ErrUnsupportedFormat):
		s.respondSession(w, r, sess, http.StatusUnsupportedMediaType)
	case err != nil:
		s.respondError(w, r, err, statusFor(err))
	default:
		slog.InfoContext(ctx, "file selected", "file", header.Filename, "bytes", len(data))
		s.respondSession(w, r, sess, http.StatusOK)
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	sess, _ := s.session(w, r)
	if err := sess.ClearFile(); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.respondSession(w, r, sess, http.StatusOK)
}

// handleParse parses the session's file. Parse failures are recorded on the
// session; only busy sessions produce an error response.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	sess, ctx := s.session(w, r)

	opts, err := parseOptions(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	out, err := s.service.Parse(ctx, sess, opts)
	switch {
	case core.IsImportError(err), err == nil && !out.OK():
		s.respondSession(w, r, sess, http.StatusUnprocessableEntity)
	case err != nil:
		s.respondError(w, r, err, statusFor(err))
	default:
		s.respondSession(w, r, sess, http.StatusOK)
	}
}

// handleUpload submits the session's records. Failed preconditions and
// failed uploads are recorded on the session.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess, ctx := s.session(w, r)

	result, err := s.service.Upload(ctx, sess)
	switch {
	case err == nil:
		s.respondSession(w, r, sess, http.StatusOK)
	case result != nil:
		s.respondSession(w, r, sess, http.StatusBadGateway)
	case core.IsImportError(err):
		s.respondSession(w, r, sess, http.StatusUnprocessableEntity)
	default:
		s.respondError(w, r, err, statusFor(err))
	}
}

// handleReset discards the session and starts a new one.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var oldID string
	if old, ok := s.existingSession(r); ok {
		oldID = old.ID()
	}
	sess := s.service.ResetSession(oldID)
	setSessionCookie(w, r, sess.ID())
	s.respondSession(w, r, sess, http.StatusOK)
}

// respondSession answers an import action: the session snapshot for JSON
// clients, a redirect to the console for form posts.
func (s *Server) respondSession(w http.ResponseWriter, r *http.Request, sess *core.Session, status int) {
	if wantsJSON(r) {
		writeJSON(w, status, sess.Snapshot())
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// parseOptions reads parse options from a JSON body or form fields.
// Header mode is off unless requested; a form without the header field
// means the checkbox is unticked.
func parseOptions(r *http.Request) (core.ParseOptions, error) {
	opts := core.ParseOptions{Encoding: core.EncodingUTF8}

	if isJSONBody(r) {
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
			return opts, fmt.Errorf("decode parse options: %w", err)
		}
		return opts, nil
	}

	if err := r.ParseForm(); err != nil {
		return opts, fmt.Errorf("parse form: %w", err)
	}
	switch strings.ToLower(r.PostFormValue("header")) {
	case "true", "on", "1", "yes":
		opts.Header = true
	default:
		opts.Header = false
	}
	if enc := r.PostFormValue("encoding"); enc != "" {
		opts.Encoding = enc
	}
	return opts, nil
}

// formValue reads one string field from a JSON body or a form post.
func formValue(r *http.Request, field string) (string, error) {
	if isJSONBody(r) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return "", fmt.Errorf("decode body: %w", err)
		}
		v, _ := body[field].(string)
		return v, nil
	}
	if err := r.ParseForm(); err != nil {
		return "", fmt.Errorf("parse form: %w", err)
	}
	return r.PostFormValue(field), nil
}

func isJSONBody(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
