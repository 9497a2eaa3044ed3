package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/vedran77/mentormatch/internal/domain"
	"github.com/vedran77/mentormatch/internal/service"
	"github.com/vedran77/mentormatch/internal/transport/http/middleware"
)

type MatchHandler struct {
	matchService *service.MatchService
	logger       *slog.Logger
}

func NewMatchHandler(matchService *service.MatchService, logger *slog.Logger) *MatchHandler {
	return &MatchHandler{matchService: matchService, logger: logger}
}

func (h *MatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetPrincipal(r.Context())

	var input service.CreateRequestInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	req, err := h.matchService.Create(r.Context(), caller, input)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, req)
}

func (h *MatchHandler) ListIncoming(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.matchService.ListIncoming(r.Context(), middleware.GetPrincipal(r.Context()))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (h *MatchHandler) ListOutgoing(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.matchService.ListOutgoing(r.Context(), middleware.GetPrincipal(r.Context()))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (h *MatchHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.matchService.Accept)
}

func (h *MatchHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.matchService.Reject)
}

func (h *MatchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.matchService.Cancel)
}

type transitionFunc func(ctx context.Context, caller domain.Principal, id uuid.UUID) (*domain.MatchRequest, error)

func (h *MatchHandler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	id, err := pathID(r, "id")
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	req, err := fn(r.Context(), middleware.GetPrincipal(r.Context()), id)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, req)
}
