package main

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	duckbot "github.com/dresos/duckbot"
	"github.com/dresos/duckbot/internal/auditlog"
	"github.com/dresos/duckbot/internal/blacklist"
)

// bearerAuth returns middleware requiring "Authorization: Bearer <token>".
func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			got := strings.TrimPrefix(header, "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// handleUpdate feeds a chat update to the dispatcher and returns the reply.
func handleUpdate(bot *duckbot.Bot) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var upd duckbot.Update
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			writeError(w, http.StatusBadRequest, "invalid update payload")
			return
		}
		reply := bot.Dispatch(r.Context(), upd)
		writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
	}
}

// handleJoin renders the welcome message for a member-join event.
func handleJoin(bot *duckbot.Bot) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var event struct {
			ChatID  int64  `json:"chat_id"`
			Mention string `json:"mention"`
		}
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			writeError(w, http.StatusBadRequest, "invalid join payload")
			return
		}
		reply := bot.HandleJoin(r.Context(), event.ChatID, event.Mention)
		writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
	}
}

func handleBlacklistList(store blacklist.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		ids, err := store.List()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "blacklist unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"ids": ids})
	}
}

func handleBlacklistAdd(store blacklist.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "id must be an integer")
			return
		}
		if err := store.Add(id); err != nil {
			writeError(w, http.StatusInternalServerError, "blacklist unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "blacklisted": true})
	}
}

func handleBlacklistRemove(store blacklist.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "id must be an integer")
			return
		}
		if err := store.Remove(id); err != nil {
			writeError(w, http.StatusInternalServerError, "blacklist unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "blacklisted": false})
	}
}

// handleAuditRecent lists the latest authorization decisions. The optional
// "limit" query parameter caps the result (default 50).
func handleAuditRecent(audit *auditlog.SQLWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}
		records, err := audit.Recent(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "audit log unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"entries": records})
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{"message": message},
	})
}
