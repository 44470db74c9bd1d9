// internal/app/features/rehearsals/handler.go
package rehearsals

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	uierrors "github.com/maestranote/maestranote/internal/app/features/errors"
	rehearsalstore "github.com/maestranote/maestranote/internal/app/store/rehearsals"
	"github.com/maestranote/maestranote/internal/app/system/apperr"
	"github.com/maestranote/maestranote/internal/app/system/authz"
	"github.com/maestranote/maestranote/internal/app/system/tenantscope"
	"github.com/maestranote/maestranote/internal/app/system/timeouts"
	"github.com/maestranote/maestranote/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves the rehearsal endpoints.
type Handler struct {
	Rehearsals *rehearsalstore.Store
	Log        *zap.Logger
}

// NewHandler constructs a rehearsals Handler.
func NewHandler(rehearsals *rehearsalstore.Store, logger *zap.Logger) *Handler {
	return &Handler{Rehearsals: rehearsals, Log: logger}
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

type createRequest struct {
	GroupID      string    `json:"group_id"`
	SchoolYearID string    `json:"school_year_id,omitempty"`
	Date         time.Time `json:"date"`
	Location     string    `json:"location,omitempty"`
	StartHour    int       `json:"start_hour,omitempty"`
	EndHour      int       `json:"end_hour,omitempty"`
}

// HandleCreate handles POST /rehearsals.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		uierrors.Render(w, r, h.Log, apperr.Invalid("body", "malformed JSON"))
		return
	}
	groupID, err := primitive.ObjectIDFromHex(req.GroupID)
	if err != nil {
		uierrors.Render(w, r, h.Log, apperr.Invalid("group_id", "malformed id"))
		return
	}
	yearID := primitive.NilObjectID
	if req.SchoolYearID != "" {
		yearID, err = primitive.ObjectIDFromHex(req.SchoolYearID)
		if err != nil {
			uierrors.Render(w, r, h.Log, apperr.Invalid("school_year_id", "malformed id"))
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	created, err := h.Rehearsals.Create(ctx, c.TenantID, models.Rehearsal{
		GroupID:      groupID,
		SchoolYearID: yearID,
		Date:         req.Date,
		Location:     req.Location,
		StartHour:    req.StartHour,
		EndHour:      req.EndHour,
	})
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusCreated, created)
}

type bulkCreateRequest struct {
	GroupID   string      `json:"group_id"`
	Dates     []time.Time `json:"dates"`
	Location  string      `json:"location,omitempty"`
	StartHour int         `json:"start_hour,omitempty"`
	EndHour   int         `json:"end_hour,omitempty"`
}

// HandleBulkCreate handles POST /rehearsals/bulk.
func (h *Handler) HandleBulkCreate(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	var req bulkCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		uierrors.Render(w, r, h.Log, apperr.Invalid("body", "malformed JSON"))
		return
	}
	groupID, err := primitive.ObjectIDFromHex(req.GroupID)
	if err != nil {
		uierrors.Render(w, r, h.Log, apperr.Invalid("group_id", "malformed id"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	created, err := h.Rehearsals.BulkCreate(ctx, c.TenantID, groupID, req.Dates, req.Location, req.StartHour, req.EndHour)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusCreated, created)
}

// HandleGet handles GET /rehearsals/{id}.
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

	out, err := h.Rehearsals.GetByID(ctx, c.TenantID, id)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, out)
}

// HandleList handles GET /rehearsals?group_id=…
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	groupID, err := primitive.ObjectIDFromHex(r.URL.Query().Get("group_id"))
	if err != nil {
		uierrors.Render(w, r, h.Log, apperr.Invalid("group_id", "malformed id"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	out, err := h.Rehearsals.ListByOrchestra(ctx, c.TenantID, groupID)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, out)
}

type attendanceRequest struct {
	Status string `json:"status"` // "present" | "absent"
}

// HandleMarkAttendance handles PUT /rehearsals/{id}/attendance/{studentID}.
func (h *Handler) HandleMarkAttendance(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	rehearsalID, err := urlID(r, "id")
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	studentID, err := urlID(r, "studentID")
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	var req attendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		uierrors.Render(w, r, h.Log, apperr.Invalid("body", "malformed JSON"))
		return
	}
	if req.Status != "present" && req.Status != "absent" {
		uierrors.Render(w, r, h.Log, apperr.Invalid("status", `must be "present" or "absent"`))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Rehearsals.MarkAttendance(ctx, c.TenantID, rehearsalID, studentID, req.Status == "present", c.ID); err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

// HandleDeleteByOrchestra handles DELETE /rehearsals?group_id=… (admin
// only): clears an orchestra's whole rehearsal schedule.
func (h *Handler) HandleDeleteByOrchestra(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	if !c.IsAdmin {
		uierrors.Render(w, r, h.Log, apperr.ErrNotAuthorized)
		return
	}
	groupID, err := primitive.ObjectIDFromHex(r.URL.Query().Get("group_id"))
	if err != nil {
		uierrors.Render(w, r, h.Log, apperr.Invalid("group_id", "malformed id"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	deleted, err := h.Rehearsals.DeleteByOrchestra(ctx, c.TenantID, groupID)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// HandleDelete handles DELETE /rehearsals/{id}. Hard delete; deleting an
// absent rehearsal succeeds with deleted=0.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
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

	deleted, err := h.Rehearsals.Delete(ctx, c.TenantID, id)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
