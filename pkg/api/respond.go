package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"schneider.vip/problem"
)

// Machine-readable error codes of problem responses.
const (
	CodeUnauthorized      = "unauthorized"
	CodeNotFound          = "not_found"
	CodeMissingName       = "missing_name"
	CodeNoImageReference  = "no_image_reference"
	CodeImageNotFound     = "image_not_found"
	CodeSelfUpdateBlocked = "self_update_blocked"
	CodeUpdateInProgress  = "update_in_progress"
	CodeRuntimeError      = "runtime_error"
)

// WriteProblem writes an application/problem+json response carrying the error code and an
// optional detail.
func WriteProblem(w http.ResponseWriter, status int, code string, detail string) {
	options := []problem.Option{problem.Custom("error", code)}
	if detail != "" {
		options = append(options, problem.Detail(detail))
	}

	if _, err := problem.Of(status).Append(options...).WriteTo(w); err != nil {
		logrus.WithError(err).WithField("status", status).Debug("Failed to write problem response")
	}
}

// WriteJSON writes value as a JSON response with the status.
func WriteJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(value); err != nil {
		logrus.WithError(err).Debug("Failed to write JSON response")
	}
}

// QueryFlag reports whether a query parameter is set to 1, true or yes.
func QueryFlag(r *http.Request, name string) bool {
	switch strings.ToLower(r.URL.Query().Get(name)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
