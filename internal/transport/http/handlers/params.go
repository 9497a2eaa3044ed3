package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vedran77/mentormatch/internal/apperr"
)

// pathID parses a uuid path parameter. A malformed id is a validation error.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid id", map[string]string{name: "Must be a valid id"})
	}
	return id, nil
}
