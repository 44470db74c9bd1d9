// internal/app/features/teachers/routes.go
package teachers

import "github.com/go-chi/chi/v5"

// Routes returns the teachers subrouter.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.HandleCreate)
	r.Get("/", h.HandleList)
	r.Get("/{id}", h.HandleGet)
	r.Delete("/{id}", h.HandleDeactivate)

	return r
}
