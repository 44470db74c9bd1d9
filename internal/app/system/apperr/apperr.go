// internal/app/system/apperr/apperr.go

// Package apperr defines the error kinds shared by the stores and the HTTP
// feature layer, and the mapping from each kind to an HTTP status.
//
// Kinds, not messages, are the contract: callers branch with errors.Is
// against the sentinel values here, never by matching error text.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrMissingTenant means no tenant context reached a store. Always
	// fatal to the request; never retried.
	ErrMissingTenant = errors.New("missing tenant context")

	// ErrEntityNotFound means a referenced id does not resolve within the
	// caller's tenant scope.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrNotAuthorized means the caller lacks admin/role/ownership
	// privilege for the specific entity instance. Kept distinct from
	// ErrEntityNotFound so authorization failures are never confused with
	// missing data.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrSyncRollback means a mirror-side write failed and the
	// compensating rollback of the authoritative side also failed, leaving
	// a confirmed one-sided edge. The roster store logs this as a
	// data-integrity alert before returning it.
	ErrSyncRollback = errors.New("relationship sync rollback failed")

	// ErrStorageTimeout / ErrStorageUnavailable are transient; the caller
	// retries the whole logical operation, never a partial sequence.
	ErrStorageTimeout     = errors.New("storage timeout")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ValidationError reports a malformed input payload with the offending
// field. It matches errors.Is(err, ErrValidation).
type ValidationError struct {
	Field  string
	Reason string
}

// ErrValidation is the kind all ValidationError values match.
var ErrValidation = errors.New("validation failed")

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a field-level ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Storage classifies a raw driver error into the transient kinds, wrapping
// the original. Context deadline and server-selection failures map to
// timeout/unavailable; anything else passes through unchanged so store code
// can still inspect driver-specific errors.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), mongo.IsTimeout(err):
		return fmt.Errorf("%w: %v", ErrStorageTimeout, err)
	case mongo.IsNetworkError(err), errors.Is(err, mongo.ErrClientDisconnected):
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return err
}

// Status maps an error kind to the HTTP status the feature layer answers
// with. Unrecognized errors map to 500.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrMissingTenant):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrEntityNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrStorageTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
