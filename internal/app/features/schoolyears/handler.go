// internal/app/features/schoolyears/handler.go
package schoolyears

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	uierrors "github.com/maestranote/maestranote/internal/app/features/errors"
	schoolyearstore "github.com/maestranote/maestranote/internal/app/store/schoolyears"
	"github.com/maestranote/maestranote/internal/app/system/apperr"
	"github.com/maestranote/maestranote/internal/app/system/authz"
	"github.com/maestranote/maestranote/internal/app/system/tenantscope"
	"github.com/maestranote/maestranote/internal/app/system/timeouts"
	"github.com/maestranote/maestranote/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves the school-year endpoints.
type Handler struct {
	Years *schoolyearstore.Store
	Log   *zap.Logger
}

// NewHandler constructs a schoolyears Handler.
func NewHandler(years *schoolyearstore.Store, logger *zap.Logger) *Handler {
	return &Handler{Years: years, Log: logger}
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

// HandleGetCurrent handles GET /school-years/current, synthesizing the
// default year for tenants that have none.
func (h *Handler) HandleGetCurrent(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	year, err := h.Years.GetCurrent(ctx, c.TenantID)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, year)
}

// HandleList handles GET /school-years.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	years, err := h.Years.List(ctx, c.TenantID)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, years)
}

type yearRequest struct {
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	IsCurrent bool      `json:"is_current"`
}

// HandleCreate handles POST /school-years (admin only).
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

	var req yearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		uierrors.Render(w, r, h.Log, apperr.Invalid("body", "malformed JSON"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	year, err := h.Years.Create(ctx, c.TenantID, models.SchoolYear{
		Name:      req.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		IsCurrent: req.IsCurrent,
	})
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusCreated, year)
}

// HandleUpdate handles PUT /school-years/{id} (admin only). The current
// flag moves only through HandleSetCurrent.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
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

	var req yearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		uierrors.Render(w, r, h.Log, apperr.Invalid("body", "malformed JSON"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	year, err := h.Years.Update(ctx, c.TenantID, id, req.Name, req.StartDate, req.EndDate)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, year)
}

// HandleSetCurrent handles PUT /school-years/{id}/current (admin only).
func (h *Handler) HandleSetCurrent(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	year, err := h.Years.SetCurrent(ctx, c.TenantID, id)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, year)
}

// HandleRollover handles POST /school-years/{id}/rollover (admin only):
// creates and returns the year following {id}, marking it current.
func (h *Handler) HandleRollover(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	year, err := h.Years.Rollover(ctx, c.TenantID, id)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusCreated, year)
}
