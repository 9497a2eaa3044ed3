package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vedran77/mentormatch/internal/apperr"
	"github.com/vedran77/mentormatch/internal/domain"
	"github.com/vedran77/mentormatch/internal/service"
	"github.com/vedran77/mentormatch/internal/transport/http/middleware"
)

type ProfileHandler struct {
	profileService *service.ProfileService
	logger         *slog.Logger
}

func NewProfileHandler(profileService *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profileService: profileService, logger: logger}
}

func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profileService.Me(r.Context(), middleware.GetPrincipal(r.Context()))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input service.UpdateProfileInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	profile, err := h.profileService.Update(r.Context(), middleware.GetPrincipal(r.Context()), input)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) Image(w http.ResponseWriter, r *http.Request) {
	role := domain.Role(chi.URLParam(r, "role"))
	if !role.Valid() {
		writeAppError(w, r, h.logger, apperr.Validation("invalid role", map[string]string{"role": "Role must be either mentor or mentee"}))
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	avatar, err := h.profileService.Avatar(r.Context(), role, id)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	if avatar.RedirectURL != "" {
		http.Redirect(w, r, avatar.RedirectURL, http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", avatar.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(avatar.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(avatar.Data)
}
