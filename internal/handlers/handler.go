package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ramevans/Medical-Platform/internal/store"
)

// emailRegex validates email addresses per RFC 5322 (simplified).
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	logger    zerolog.Logger
	db        store.DataStore
	chat      *store.ChatStore
	redis     *store.RedisStore
	uploadDir string
}

// NewHandler creates a new Handler with the given stores. uploadDir is where
// speech-to-text uploads land; empty disables uploads.
func NewHandler(logger zerolog.Logger, db store.DataStore, chat *store.ChatStore, redis *store.RedisStore, uploadDir string) *Handler {
	return &Handler{logger: logger, db: db, chat: chat, redis: redis, uploadDir: uploadDir}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// ErrorList sends the collected validation errors as a JSON response.
func (h *Handler) ErrorList(w http.ResponseWriter, status int, errs []string) {
	h.JSON(w, status, map[string]interface{}{
		"errors": errs,
		"count":  len(errs),
	})
}

// isValidEmail validates email addresses using RFC 5322 pattern.
func isValidEmail(email string) bool {
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}

// parseIDList parses a comma-separated list of integer ids, as used in query
// strings like ?user_ids=1,2,3.
func parseIDList(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
