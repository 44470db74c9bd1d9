// internal/app/features/students/routes.go
package students

import "github.com/go-chi/chi/v5"

// Routes returns the students subrouter.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.HandleCreate)
	r.Get("/", h.HandleList)
	r.Get("/{id}", h.HandleGet)
	r.Put("/{id}", h.HandleUpdate)
	r.Delete("/{id}", h.HandleDeactivate)

	return r
}
