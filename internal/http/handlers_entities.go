package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"contas/internal/core"
	"contas/internal/services"
)

// entityRoutes serves CRUD for one reference entity type.
func (s *Server) entityRoutes(typ core.EntityType) http.Handler {
	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		list, err := s.deps.Entities.List(r.Context(), ownerID(r), typ)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	})

	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		var in services.EntityInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, err)
			return
		}
		e, err := s.deps.Entities.Create(r.Context(), ownerID(r), typ, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	})

	r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
		e, err := s.deps.Entities.Get(r.Context(), ownerID(r), typ, pathID(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	})

	r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
		var in services.EntityInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, err)
			return
		}
		e, err := s.deps.Entities.Update(r.Context(), ownerID(r), typ, pathID(r), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	})

	r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := s.deps.Entities.Delete(r.Context(), ownerID(r), typ, pathID(r)); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}
