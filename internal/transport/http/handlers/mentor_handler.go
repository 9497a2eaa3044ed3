package handlers

import (
	"log/slog"
	"net/http"

	"github.com/vedran77/mentormatch/internal/service"
	"github.com/vedran77/mentormatch/internal/transport/http/middleware"
)

type MentorHandler struct {
	directory *service.DirectoryService
	logger    *slog.Logger
}

func NewMentorHandler(directory *service.DirectoryService, logger *slog.Logger) *MentorHandler {
	return &MentorHandler{directory: directory, logger: logger}
}

func (h *MentorHandler) List(w http.ResponseWriter, r *http.Request) {
	q := service.MentorQuery{
		Skill:   r.URL.Query().Get("skill"),
		OrderBy: r.URL.Query().Get("orderBy"),
	}

	mentors, err := h.directory.ListMentors(r.Context(), middleware.GetPrincipal(r.Context()), q)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, mentors)
}
