// Package httpx adapts dispatch results to HTTP: envelope encoding and
// transport-code to status mapping.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/relay-core/relay/internal/rpc"
)

// Envelope is the wire shape returned for every RPC call.
type Envelope struct {
	OK    any                 `json:"ok,omitempty"`
	Error *rpc.TransportError `json:"error,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK sends a successful dispatch result.
func OK(w http.ResponseWriter, result any) {
	JSON(w, http.StatusOK, Envelope{OK: result})
}

// Fail sends a transport error with its mapped HTTP status.
func Fail(w http.ResponseWriter, terr rpc.TransportError) {
	JSON(w, StatusFor(terr.Code), Envelope{Error: &terr})
}

// StatusFor maps a transport error code to an HTTP status.
func StatusFor(code string) int {
	switch code {
	case rpc.CodeUnauthorized:
		return http.StatusUnauthorized
	case rpc.CodeForbidden:
		return http.StatusForbidden
	case rpc.CodeNotFound:
		return http.StatusNotFound
	case rpc.CodeBadRequest:
		return http.StatusBadRequest
	case rpc.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
