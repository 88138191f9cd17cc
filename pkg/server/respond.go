package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lumen-ed/compass/pkg/batch"
	"github.com/lumen-ed/compass/pkg/featurestore"
	"github.com/lumen-ed/compass/pkg/fusion"
	"github.com/lumen-ed/compass/pkg/inference"
	"github.com/lumen-ed/compass/pkg/skills"
)

// apiError is the error body every endpoint returns. Category is set for
// pipeline failures and omitted for plain request errors.
type apiError struct {
	Error    string               `json:"error"`
	Category skills.ErrorCategory `json:"category,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiError{Error: message})
}

// writePipelineError maps a pipeline failure to a status code and tags
// the body with its error category.
func writePipelineError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), apiError{
		Error:    err.Error(),
		Category: inference.Categorize(err),
	})
}

// statusFor maps the pipeline error taxonomy onto HTTP status codes. A
// student without a feature record is a 404: the resource addressed by
// the URL does not exist upstream. Shape and prediction failures stay
// 500-class boundary failures.
func statusFor(err error) int {
	switch {
	case inference.IsMissingRecordError(err):
		return http.StatusNotFound
	case fusion.IsInvalidConfigError(err):
		return http.StatusBadRequest
	case batch.IsSizeError(err):
		return http.StatusBadRequest
	case featurestore.IsUpstreamError(err):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
