package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/croplabs/farmd/internal/farm"
	"github.com/croplabs/farmd/internal/logger"
)

// SettlementHandler handles settlement journal lookups
type SettlementHandler struct {
	farmSvc farm.Service
}

// NewSettlementHandler creates a new settlement handler
func NewSettlementHandler(farmSvc farm.Service) *SettlementHandler {
	return &SettlementHandler{
		farmSvc: farmSvc,
	}
}

// HandleGetSettlement handles the settlement lookup endpoint. Callers poll
// this after an unstake, harvest or close to learn the terminal outcome of
// the asynchronous legs.
// @Summary Get settlement
// @Description Retrieve a settlement journal row with its legs
// @Tags settlement
// @Produce json
// @Param id path string true "Settlement UUID"
// @Success 200 {object} domain.SettlementView
// @Failure 400 {object} ErrorResponse "Invalid settlement id"
// @Failure 404 {object} ErrorResponse "Settlement not found"
// @Router /settlements/{id} [get]
func (h *SettlementHandler) HandleGetSettlement(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		log.Warn("Invalid settlement id", "error", err)
		respondError(w, http.StatusBadRequest, ErrMsgInvalidSettlementID)
		return
	}

	view, err := h.farmSvc.Settlement(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, "GetSettlement", err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}
