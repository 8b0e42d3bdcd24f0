package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// Error codes carried in the envelope so the UI can tell bad input, upstream outage and server faults apart.
const (
	CodeBadRequest       = "bad_request"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeUnavailable      = "unavailable"
	CodeNotFound         = "not_found"
	CodeInternal         = "internal"
)

// Envelope is the JSON shape of every API response.
type Envelope struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data"`
	Error     string      `json:"error,omitempty"`
	ErrorCode string      `json:"errorCode,omitempty"`
	Partial   bool        `json:"partial,omitempty"`
	Cached    bool        `json:"cached,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes a 405 envelope).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method+", OPTIONS")
		WriteError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteData writes a successful envelope.
func WriteData(w http.ResponseWriter, data interface{}, partial, cached bool) error {
	return WriteJSON(w, http.StatusOK, Envelope{
		Success:   true,
		Data:      data,
		Partial:   partial,
		Cached:    cached,
		Timestamp: time.Now().UTC(),
	})
}

// WriteError writes a failed envelope with no data.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) error {
	return WriteErrorData(w, statusCode, code, message, nil)
}

// WriteErrorData writes a failed envelope that still carries diagnostic data.
func WriteErrorData(w http.ResponseWriter, statusCode int, code, message string, data interface{}) error {
	return WriteJSON(w, statusCode, Envelope{
		Success:   false,
		Data:      data,
		Error:     message,
		ErrorCode: code,
		Timestamp: time.Now().UTC(),
	})
}
