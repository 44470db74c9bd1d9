// internal/app/features/orchestras/handler.go
package orchestras

import (
	"context"
	"encoding/json"
	"net/http"

	uierrors "github.com/maestranote/maestranote/internal/app/features/errors"
	cascadestore "github.com/maestranote/maestranote/internal/app/store/cascade"
	orchestrastore "github.com/maestranote/maestranote/internal/app/store/orchestras"
	rosterstore "github.com/maestranote/maestranote/internal/app/store/roster"
	"github.com/maestranote/maestranote/internal/app/system/apperr"
	"github.com/maestranote/maestranote/internal/app/system/authz"
	"github.com/maestranote/maestranote/internal/app/system/tenantscope"
	"github.com/maestranote/maestranote/internal/app/system/timeouts"
	"github.com/maestranote/maestranote/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves the orchestra endpoints.
type Handler struct {
	Orchestras *orchestrastore.Store
	Roster     *rosterstore.Store
	Cascade    *cascadestore.Store
	Log        *zap.Logger
}

// NewHandler constructs an orchestras Handler.
func NewHandler(orchestras *orchestrastore.Store, roster *rosterstore.Store, cascade *cascadestore.Store, logger *zap.Logger) *Handler {
	return &Handler{Orchestras: orchestras, Roster: roster, Cascade: cascade, Log: logger}
}

// caller extracts the call contract and enforces the tenant guard before
// any handler reaches a store.
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

type createRequest struct {
	Name string `json:"name"`
}

// HandleCreate handles POST /orchestras.
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

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		uierrors.Render(w, r, h.Log, apperr.Invalid("body", "malformed JSON"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	o, err := h.Orchestras.Create(ctx, c.TenantID, models.Orchestra{Name: req.Name})
	if err != nil {
		if err == orchestrastore.ErrDuplicateOrchestraName {
			uierrors.Render(w, r, h.Log, apperr.Invalid("name", err.Error()))
			return
		}
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusCreated, o)
}

// HandleList handles GET /orchestras.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	out, err := h.Orchestras.List(ctx, c.TenantID, includeInactive)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, out)
}

// HandleGet handles GET /orchestras/{id}, returning the orchestra with its
// member details resolved.
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

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	detail, err := h.Orchestras.DetailWithMembers(ctx, c.TenantID, id)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, detail)
}

// HandleUpdate handles PUT /orchestras/{id}. Only descriptive fields;
// roster edges have their own endpoints.
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

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		uierrors.Render(w, r, h.Log, apperr.Invalid("body", "malformed JSON"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	o, err := h.Orchestras.UpdateInfo(ctx, c.TenantID, id, req.Name, c)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, o)
}

// HandleDeactivate handles DELETE /orchestras/{id}: soft-delete, then
// cascade cleanup. A cascade failure is logged inside the cascade store and
// never reverses the deactivation the caller already observed.
func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if err := h.Orchestras.Deactivate(ctx, c.TenantID, id, c); err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	if err := h.Cascade.OrchestraRemoved(ctx, c.TenantID, id); err != nil {
		h.Log.Warn("orchestra cascade failed; reconciliation will retry",
			zap.String("tenant_id", c.TenantID),
			zap.String("orchestra_id", id.Hex()),
			zap.Error(err))
	}

	uierrors.JSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// HandleReconcile handles POST /orchestras/reconcile (admin only): re-runs
// the reference cleanup sweep for the tenant.
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	if !c.IsAdmin {
		uierrors.Render(w, r, h.Log, apperr.ErrNotAuthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	cleaned, err := h.Cascade.ReconcileOrchestraRefs(ctx, c.TenantID)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, map[string]int{"cleaned": cleaned})
}
