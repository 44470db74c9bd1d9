// internal/app/features/students/handler.go
package students

import (
	"context"
	"encoding/json"
	"net/http"

	uierrors "github.com/maestranote/maestranote/internal/app/features/errors"
	cascadestore "github.com/maestranote/maestranote/internal/app/store/cascade"
	studentstore "github.com/maestranote/maestranote/internal/app/store/students"
	"github.com/maestranote/maestranote/internal/app/system/apperr"
	"github.com/maestranote/maestranote/internal/app/system/authz"
	"github.com/maestranote/maestranote/internal/app/system/tenantscope"
	"github.com/maestranote/maestranote/internal/app/system/timeouts"
	"github.com/maestranote/maestranote/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves the student endpoints.
type Handler struct {
	Students *studentstore.Store
	Cascade  *cascadestore.Store
	Log      *zap.Logger
}

// NewHandler constructs a students Handler.
func NewHandler(students *studentstore.Store, cascade *cascadestore.Store, logger *zap.Logger) *Handler {
	return &Handler{Students: students, Cascade: cascade, Log: logger}
}

func caller(r *http.Request) (authz.Caller, error) {
	c := authz.FromRequest(r)
	if err := tenantscope.Require(c.TenantID); err != nil {
		return authz.Caller{}, err
	}
	return c, nil
}

func urlID(r *http.Request, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		return primitive.NilObjectID, apperr.Invalid(name, "malformed id")
	}
	return id, nil
}

type studentRequest struct {
	FullName   string `json:"full_name"`
	Instrument string `json:"instrument,omitempty"`
}

// HandleCreate handles POST /students.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	var req studentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		uierrors.Render(w, r, h.Log, apperr.Invalid("body", "malformed JSON"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	st, err := h.Students.Create(ctx, c.TenantID, models.Student{
		FullName:   req.FullName,
		Instrument: req.Instrument,
	})
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusCreated, st)
}

// HandleList handles GET /students.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	out, err := h.Students.List(ctx, c.TenantID)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, out)
}

// HandleGet handles GET /students/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	id, err := urlID(r, "id")
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	st, err := h.Students.GetByID(ctx, c.TenantID, id)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, st)
}

// HandleUpdate handles PUT /students/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	id, err := urlID(r, "id")
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	var req studentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		uierrors.Render(w, r, h.Log, apperr.Invalid("body", "malformed JSON"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	st, err := h.Students.UpdateInfo(ctx, c.TenantID, id, req.FullName, req.Instrument)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, st)
}

// HandleDeactivate handles DELETE /students/{id} (admin only): soft-delete
// plus cascade removal from rosters and attendance lists.
func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	if !c.IsAdmin {
		uierrors.Render(w, r, h.Log, apperr.ErrNotAuthorized)
		return
	}
	id, err := urlID(r, "id")
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if err := h.Students.Deactivate(ctx, c.TenantID, id); err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	if err := h.Cascade.StudentDeactivated(ctx, c.TenantID, id); err != nil {
		h.Log.Warn("student cascade failed; reconciliation will retry",
			zap.String("tenant_id", c.TenantID),
			zap.String("student_id", id.Hex()),
			zap.Error(err))
	}

	uierrors.JSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}
