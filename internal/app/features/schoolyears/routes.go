// internal/app/features/schoolyears/routes.go
package schoolyears

import "github.com/go-chi/chi/v5"

// Routes returns the school-years subrouter.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/current", h.HandleGetCurrent)
	r.Get("/", h.HandleList)
	r.Post("/", h.HandleCreate)

	r.Put("/{id}", h.HandleUpdate)
	r.Put("/{id}/current", h.HandleSetCurrent)
	r.Post("/{id}/rollover", h.HandleRollover)

	return r
}
