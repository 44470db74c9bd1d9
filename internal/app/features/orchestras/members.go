// internal/app/features/orchestras/members.go
package orchestras

import (
	"context"
	"net/http"

	uierrors "github.com/maestranote/maestranote/internal/app/features/errors"
	"github.com/maestranote/maestranote/internal/app/system/timeouts"
)

// HandleAddMember handles POST /orchestras/{id}/members/{studentID}.
//
// The roster store performs the dual write; re-adding a present member is a
// no-op that still answers 200 with the (already correct) state.
func (h *Handler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
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
	studentID, err := urlID(r, "studentID")
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Roster.AddMember(ctx, c.TenantID, orchestraID, studentID, c); err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, map[string]string{"status": "member added"})
}

// HandleRemoveMember handles DELETE /orchestras/{id}/members/{studentID}.
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
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
	studentID, err := urlID(r, "studentID")
	if err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Roster.RemoveMember(ctx, c.TenantID, orchestraID, studentID, c); err != nil {
		uierrors.Render(w, r, h.Log, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, map[string]string{"status": "member removed"})
}
