package web

import (
	"net/http"
	"strconv"

	"github.com/JonMunkholm/masterdata/internal/history"
	"github.com/JonMunkholm/masterdata/internal/web/templates"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

func (s *Server) handleHistoryPage(w http.ResponseWriter, r *http.Request) {
	runs, err := s.service.History(r.Context(), historyLimit(r))
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	s.render(w, r, http.StatusOK, templates.HistoryPage(runs))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	runs, err := s.service.History(r.Context(), historyLimit(r))
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// historyLimit reads ?limit=, clamped to [1, maxHistoryLimit].
func historyLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultHistoryLimit
	}
	return min(n, maxHistoryLimit)
}
