package session

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

const (
	defaultJournalLimit = 20
	maxJournalLimit     = 200
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to write json response", "error", err)
	}
}

// HealthHandler reports liveness and the currently open sessions.
func (m *Manager) HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		m.mu.Lock()
		closing := m.closing
		m.mu.Unlock()

		status, code := "ok", http.StatusOK
		if closing {
			status, code = "shutting_down", http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{
			"status":   status,
			"sessions": m.Sessions(),
		})
	})
}

// JournalHandler serves GET /sessions and GET /sessions/{id} from the session journal.
func (m *Manager) JournalHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
		limit := defaultJournalLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
				return
			}
			limit = min(n, maxJournalLimit)
		}
		list, err := m.repo.ListRecentSessions(r.Context(), limit)
		if err != nil {
			slog.Error("failed to list journal sessions", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list sessions"})
			return
		}
		writeJSON(w, http.StatusOK, list)
	})
	mux.HandleFunc("GET /sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		s, err := m.repo.GetSession(r.Context(), id)
		if err != nil {
			slog.Error("failed to get journal session", "error", err, "session_id", id)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get session"})
			return
		}
		if s == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
			return
		}
		writeJSON(w, http.StatusOK, s)
	})
	return mux
}
