// Package httputil maps domain errors onto the HTTP error body shape used by
// every endpoint: {"error": code, "error_description": message}. Internal
// errors omit the description so storage details never leak to clients.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "askme/pkg/domain-errors"
)

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeBadRequest:         http.StatusBadRequest,
	dErrors.CodeInvalidInput:       http.StatusBadRequest,
	dErrors.CodePrecondition:       http.StatusConflict,
	dErrors.CodeNotFound:           http.StatusNotFound,
	dErrors.CodeConflict:           http.StatusConflict,
	dErrors.CodeGone:               http.StatusGone,
	dErrors.CodeVerificationFailed: http.StatusUnauthorized,
	dErrors.CodeDecoding:           http.StatusBadRequest,
	dErrors.CodeInternal:           http.StatusInternalServerError,
}

// WriteError renders err as a JSON error response.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal {
		if desc := dErrors.Description(err); desc != "" {
			body["error_description"] = desc
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteJSON renders v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
