package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

const maxMessageLen = 512

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError writes the error envelope {"error", "message"} plus the request
// id when one is set.
func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	payload := map[string]any{
		"error":   code,
		"message": sanitize(message),
	}
	if id := middleware.GetReqID(ctx); id != "" {
		payload["request_id"] = id
	}
	writeJSON(w, status, payload)
}

func sanitize(value string) string {
	value = strings.NewReplacer("\n", " ", "\r", " ").Replace(value)
	value = strings.TrimSpace(value)
	if len(value) > maxMessageLen {
		value = value[:maxMessageLen]
	}
	return value
}
