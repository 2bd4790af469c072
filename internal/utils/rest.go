package utils

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the error body every handler emits. Reason carries the
// machine-readable denial class on quota responses and is omitted elsewhere.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// RespondWithError sends an error response
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorResponse{Error: message})
}

// RespondWithDenial sends a quota denial: 429 with the human-facing message
// plus the reason tag clients branch on to pick between upgrade and wait.
func RespondWithDenial(w http.ResponseWriter, message, reason string) {
	RespondWithJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: message, Reason: reason})
}

// RespondWithJSON sends a JSON response. The charset is explicit because most
// payloads carry Vietnamese text.
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "Failed to encode response: "+err.Error(), http.StatusInternalServerError)
		return err
	}
	return nil
}
