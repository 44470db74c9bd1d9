// internal/app/features/errors/render.go

// Package errors renders store errors as JSON responses. The status comes
// from the apperr kind; handlers never translate kinds themselves.
package errors

import (
	stderrors "errors"
	"encoding/json"
	"net/http"

	"github.com/maestranote/maestranote/internal/app/system/apperr"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Render writes err as a JSON error response. Client-class errors keep
// their message; everything 5xx is masked and logged, since driver errors
// can leak topology details.
func Render(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	status := apperr.Status(err)

	resp := errorResponse{Error: err.Error()}
	var verr *apperr.ValidationError
	if stderrors.As(err, &verr) {
		resp.Field = verr.Field
	}

	if status >= http.StatusInternalServerError {
		if log != nil {
			log.Error("request failed",
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Error(err))
		}
		resp = errorResponse{Error: http.StatusText(status)}
	}
	JSON(w, status, resp)
}
