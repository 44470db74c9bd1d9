// internal/app/features/orchestras/routes.go
package orchestras

import "github.com/go-chi/chi/v5"

// Routes returns the orchestras subrouter.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.HandleCreate)
	r.Get("/", h.HandleList)
	r.Post("/reconcile", h.HandleReconcile)

	r.Get("/{id}", h.HandleGet)
	r.Put("/{id}", h.HandleUpdate)
	r.Delete("/{id}", h.HandleDeactivate)

	r.Put("/{id}/conductor", h.HandleSetConductor)
	r.Post("/{id}/members/{studentID}", h.HandleAddMember)
	r.Delete("/{id}/members/{studentID}", h.HandleRemoveMember)

	return r
}
