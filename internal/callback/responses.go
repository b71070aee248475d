// responses.go -- Package-wide HTTP response helpers.
//
// Bodies are JSON objects with a "message" key; upstream failures add "error"
// with the identity failure kind.
package callback

import (
	"encoding/json"
	"net/http"
)

// messageResponse is the body shape for every non-ping response.
type messageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// writeJSON writes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// InternalServerError logs the error and returns a generic 500 JSON response.
// Never exposes internal error details.
func InternalServerError(w http.ResponseWriter, r *http.Request, err error) {
	logError(r, "internal server error", "error", err)
	writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "internal server error"})
}

// BadRequest returns a 400 JSON response with the given message.
// Use for client input validation failures; not logged as a server fault.
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	writeJSON(w, http.StatusBadRequest, messageResponse{Message: message})
}

// UpstreamFailure returns a 500 JSON response naming the identity failure kind.
func UpstreamFailure(w http.ResponseWriter, kind string) {
	writeJSON(w, http.StatusInternalServerError, messageResponse{
		Message: "identity service failed to complete authorization",
		Error:   kind,
	})
}

// OK returns a 200 JSON response with the given message.
func OK(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, messageResponse{Message: message})
}
