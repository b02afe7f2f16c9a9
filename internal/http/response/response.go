package response

import (
	"encoding/json"
	"net/http"
)

// The wire format is flat: auth endpoints answer with {"user": ...} or
// {"error": ...}, api endpoints with {"success": true, ...} or
// {"success": false, "error": ...}. Browser clients key off these
// exact shapes.

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// AuthError writes the auth-surface error shape.
func AuthError(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// APIError writes the api-surface error shape.
func APIError(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{"success": false, "error": message})
}

// Success writes {"success": true} merged with the given extra fields.
func Success(w http.ResponseWriter, status int, extra map[string]any) {
	payload := map[string]any{"success": true}
	for k, v := range extra {
		payload[k] = v
	}
	JSON(w, status, payload)
}
