package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// envelope is the uniform JSON response shape. Every handler answers with
// success plus endpoint-specific fields, or success=false plus an error
// message.
type envelope map[string]any

func respond(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("server: encoding response", "error", err)
	}
}

func respondOK(w http.ResponseWriter, body envelope) {
	if body == nil {
		body = envelope{}
	}
	body["success"] = true
	respond(w, http.StatusOK, body)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respond(w, status, envelope{"success": false, "error": msg})
}
