// internal/app/features/teachers/handler.go
package teachers

import (
	"context"
	"encoding/json"
	"net/http"

	uierrors "github.com/maestranote/maestranote/internal/app/features/errors"
	cascadestore "github.com/maestranote/maestranote/internal/app/store/cascade"
	teacherstore "github.com/maestranote/maestranote/internal/app/store/teachers"
	"github.com/maestranote/maestranote/internal/app/system/apperr"
	"github.com/maestranote/maestranote/internal/app/system/authz"
	"github.com/maestranote/maestranote/internal/app/system/tenantscope"
	"github.com/maestranote/maestranote/internal/app/system/timeouts"
	"github.com/maestranote/maestranote/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves the teacher endpoints.
type Handler struct {
	Teachers *teacherstore.Store
	Cascade  *cascadestore.Store
	Log      *zap.Logger
}

// NewHandler constructs a teachers Handler.
func NewHandler(teachers *teacherstore.Store, cascade *cascadestore.Store, logger *zap.Logger) *Handler {
	return &Handler{Teachers: teachers, Cascade: cascade, Log: logger}
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

type teacherRequest struct {
	FullName string `json:"full_name"`
}

// HandleCreate handles POST /teachers (admin only).
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	if !c.IsAdmin {
		uierrors.Render(w, r, h.Log, apperr.ErrNotAuthorized)
		return
	}

	var req teacherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		uierrors.Render(w, r, h.Log, apperr.Invalid("body", "malformed JSON"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	tch, err := h.Teachers.Create(ctx, c.TenantID, models.Teacher{FullName: req.FullName})
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusCreated, tch)
}

// HandleList handles GET /teachers.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	out, err := h.Teachers.List(ctx, c.TenantID)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, out)
}

// HandleGet handles GET /teachers/{id}.
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

	tch, err := h.Teachers.GetByID(ctx, c.TenantID, id)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, tch)
}

// HandleDeactivate handles DELETE /teachers/{id} (admin only): soft-delete
// plus cascade clearing of any podium the teacher still holds.
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

	if err := h.Teachers.Deactivate(ctx, c.TenantID, id); err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	if err := h.Cascade.TeacherDeactivated(ctx, c.TenantID, id); err != nil {
		h.Log.Warn("teacher cascade failed; reconciliation will retry",
			zap.String("tenant_id", c.TenantID),
			zap.String("teacher_id", id.Hex()),
			zap.Error(err))
	}

	uierrors.JSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}
