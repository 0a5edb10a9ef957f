package handler

import (
	"encoding/json"
	"net/http"

	"app/internal/middleware"

	"github.com/rs/zerolog"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}, logger zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// callerID pulls the authenticated user ID out of the request context. It
// writes a 401 and returns false when the auth middleware didn't run.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}
