// internal/app/features/rehearsals/routes.go
package rehearsals

import "github.com/go-chi/chi/v5"

// Routes returns the rehearsals subrouter.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.HandleCreate)
	r.Post("/bulk", h.HandleBulkCreate)
	r.Get("/", h.HandleList)
	r.Delete("/", h.HandleDeleteByOrchestra)

	r.Get("/{id}", h.HandleGet)
	r.Delete("/{id}", h.HandleDelete)
	r.Put("/{id}/attendance/{studentID}", h.HandleMarkAttendance)

	return r
}
