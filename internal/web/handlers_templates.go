package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/masterdata/internal/core"
	"github.com/JonMunkholm/masterdata/internal/web/templates"
)

func (s *Server) handleTemplatesPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, templates.TemplatesPage(core.Targets()))
}

// handleDownloadTemplate exports a target's current collection as CSV or XLSX.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	target, err := core.ParseTarget(chi.URLParam(r, "target"))
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}

	format := core.FormatCSV
	if f := r.URL.Query().Get("format"); f != "" {
		format = core.Format(f)
	}
	if format != core.FormatCSV && format != core.FormatXLSX {
		s.respondError(w, r, fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, format), http.StatusBadRequest)
		return
	}

	file, err := s.service.ExportTemplate(r.Context(), target, format)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		s.respondError(w, r, err, status)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Data); err != nil {
		slog.ErrorContext(r.Context(), "write template", "target", target, "error", err)
	}
}

// render writes an HTML component with status.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.ErrorContext(r.Context(), "render page", "path", r.URL.Path, "error", err)
	}
}
