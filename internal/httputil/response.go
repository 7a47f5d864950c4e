// Package httputil holds the response envelope, the boundary error translator
// and request helpers shared by handlers and middleware.
package httputil

import (
	"encoding/json"
	"net/http"
)

// Envelope is the body shape of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes a success envelope.
func WriteSuccess(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// WriteData writes a success envelope without a message.
func WriteData(w http.ResponseWriter, data any) {
	WriteSuccess(w, http.StatusOK, "", data)
}

// WriteFailure writes an error envelope with a client-safe message.
func WriteFailure(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Envelope{Success: false, Message: message})
}
