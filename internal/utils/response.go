package utils

import (
	"encoding/json"
	"net/http"
)

// Payload is the envelope of every JSON response. Reason carries the
// machine-readable error kind and Errors lists individual violations.
type Payload struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Reason  string   `json:"reason,omitempty"`
	Errors  []string `json:"errors,omitempty"`
	Data    any      `json:"data,omitempty"`
}

// JSONResponse sends a JSON response with given status, success flag, and payload
func JSONResponse(w http.ResponseWriter, status int, payload Payload) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Fail writes an unsuccessful payload.
func Fail(w http.ResponseWriter, status int, reason, message string) {
	JSONResponse(w, status, Payload{Success: false, Message: message, Reason: reason})
}
