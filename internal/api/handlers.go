package api

import (
	"crypto/subtle"
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/calbot/calbot/internal/models"
)

// exportUser authenticates an export request via its token query parameter
// and returns the owning user's id. A zero return means the response has
// already been written.
func (s *Server) exportUser(w http.ResponseWriter, r *http.Request) int64 {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return 0
	}
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		slog.Warn("Server.exportUser: missing token", "path", r.URL.Path)
		writeJSONResponse(w, http.StatusUnauthorized, models.Error("Missing required parameter: token"))
		return 0
	}
	userID, err := s.tokens.Verify(tokenStr)
	if err != nil {
		slog.Warn("Server.exportUser: token rejected", "error", err)
		writeJSONResponse(w, http.StatusUnauthorized, models.Error("Invalid or expired token"))
		return 0
	}
	return userID
}

func (s *Server) exportJSONHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.exportJSONHandler: processing export request", "method", r.Method)
	userID := s.exportUser(w, r)
	if userID == 0 {
		return
	}
	events, err := s.store.ListEvents(r.Context(), userID)
	if err != nil {
		slog.Error("Server.exportJSONHandler: failed to list events", "error", err, "user_id", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load events"))
		return
	}
	slog.Info("Server.exportJSONHandler: export served", "user_id", userID, "count", len(events))
	writeJSONResponse(w, http.StatusOK, models.Success(events))
}

func (s *Server) exportCSVHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.exportCSVHandler: processing export request", "method", r.Method)
	userID := s.exportUser(w, r)
	if userID == 0 {
		return
	}
	events, err := s.store.ListEvents(r.Context(), userID)
	if err != nil {
		slog.Error("Server.exportCSVHandler: failed to list events", "error", err, "user_id", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load events"))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="events.csv"`)
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write([]string{"id", "name", "date", "time", "details"}); err != nil {
		slog.Error("Server.exportCSVHandler: failed to write CSV header", "error", err)
		return
	}
	for _, ev := range events {
		record := []string{strconv.FormatInt(ev.ID, 10), ev.Name, ev.Date, ev.Time, ev.Details}
		if err := cw.Write(record); err != nil {
			slog.Error("Server.exportCSVHandler: failed to write CSV record", "error", err, "event_id", ev.ID)
			return
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		slog.Error("Server.exportCSVHandler: failed to flush CSV", "error", err)
		return
	}
	slog.Info("Server.exportCSVHandler: export served", "user_id", userID, "count", len(events))
}

func (s *Server) publicEventsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.publicEventsHandler: processing request", "method", r.Method)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ownerStr := r.URL.Query().Get("owner")
	ownerID, err := strconv.ParseInt(ownerStr, 10, 64)
	if err != nil || ownerID <= 0 {
		slog.Warn("Server.publicEventsHandler: invalid owner parameter", "owner", ownerStr)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Parameter owner must be a positive integer"))
		return
	}
	events, err := s.store.ListPublicEvents(r.Context(), ownerID)
	if err != nil {
		slog.Error("Server.publicEventsHandler: failed to list public events", "error", err, "owner_id", ownerID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load events"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(events))
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.statsHandler: processing request", "method", r.Method)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.adminKey == "" {
		writeJSONResponse(w, http.StatusForbidden, models.Error("Statistics endpoint is not configured"))
		return
	}
	key := r.Header.Get("X-Admin-Key")
	if subtle.ConstantTimeCompare([]byte(key), []byte(s.adminKey)) != 1 {
		slog.Warn("Server.statsHandler: admin key rejected")
		writeJSONResponse(w, http.StatusUnauthorized, models.Error("Invalid admin key"))
		return
	}
	stats, err := s.store.ListStats(r.Context())
	if err != nil {
		slog.Error("Server.statsHandler: failed to list statistics", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load statistics"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(stats))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}
