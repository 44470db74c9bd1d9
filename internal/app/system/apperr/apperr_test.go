package apperr_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/maestranote/maestranote/internal/app/system/apperr"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"missing tenant", apperr.ErrMissingTenant, http.StatusBadRequest},
		{"validation", apperr.Invalid("name", "required"), http.StatusBadRequest},
		{"not authorized", apperr.ErrNotAuthorized, http.StatusForbidden},
		{"not found", apperr.ErrEntityNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", apperr.ErrEntityNotFound), http.StatusNotFound},
		{"storage timeout", apperr.ErrStorageTimeout, http.StatusGatewayTimeout},
		{"storage unavailable", apperr.ErrStorageUnavailable, http.StatusServiceUnavailable},
		{"sync rollback", apperr.ErrSyncRollback, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := apperr.Status(tc.err); got != tc.want {
				t.Errorf("Status: got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestInvalid(t *testing.T) {
	err := apperr.Invalid("startDate", "required")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Error("ValidationError does not match ErrValidation")
	}

	var verr *apperr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatal("errors.As failed for ValidationError")
	}
	if verr.Field != "startDate" || verr.Reason != "required" {
		t.Errorf("got %+v", verr)
	}
}

func TestStorage(t *testing.T) {
	if apperr.Storage(nil) != nil {
		t.Error("Storage(nil) must be nil")
	}

	err := apperr.Storage(context.DeadlineExceeded)
	if !errors.Is(err, apperr.ErrStorageTimeout) {
		t.Errorf("deadline exceeded: got %v, want ErrStorageTimeout", err)
	}

	// Non-transient errors pass through unchanged so callers can still
	// branch on their original kind.
	err = apperr.Storage(apperr.ErrEntityNotFound)
	if !errors.Is(err, apperr.ErrEntityNotFound) {
		t.Errorf("pass-through broken: got %v", err)
	}
	if errors.Is(err, apperr.ErrStorageTimeout) || errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Error("non-transient error misclassified as transient")
	}
}
