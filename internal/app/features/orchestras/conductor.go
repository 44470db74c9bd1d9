// internal/app/features/orchestras/conductor.go
package orchestras

import (
	"context"
	"encoding/json"
	"net/http"

	uierrors "github.com/maestranote/maestranote/internal/app/features/errors"
	"github.com/maestranote/maestranote/internal/app/system/apperr"
	"github.com/maestranote/maestranote/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type setConductorRequest struct {
	// TeacherID empty clears the podium.
	TeacherID string `json:"teacher_id"`
}

// HandleSetConductor handles PUT /orchestras/{id}/conductor.
func (h *Handler) HandleSetConductor(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	orchestraID, err := urlID(r, "id")
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	var req setConductorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		uierrors.Render(w, r, h.Log, apperr.Invalid("body", "malformed JSON"))
		return
	}

	teacherID := primitive.NilObjectID
	if req.TeacherID != "" {
		teacherID, err = primitive.ObjectIDFromHex(req.TeacherID)
		if err != nil {
			uierrors.Render(w, r, h.Log, apperr.Invalid("teacher_id", "malformed id"))
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Roster.SetConductor(ctx, c.TenantID, orchestraID, teacherID, c); err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, map[string]string{"status": "conductor updated"})
}
