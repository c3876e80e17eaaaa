package handler

import (
	"net/http"
	"time"

	"github.com/croplabs/farmd/internal/farm"
	"github.com/croplabs/farmd/internal/logger"
)

// FundRequest records a reward token deposit during setup
type FundRequest struct {
	Token  string `json:"token" validate:"required,max=100"`
	Amount string `json:"amount" validate:"required,decimal"`
}

// SetActiveRequest pauses or resumes staking. The pointer distinguishes a
// missing field from an explicit false.
type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// SetWindowRequest moves the farming window before setup is finalized
type SetWindowRequest struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required"`
}

// AdminHandler handles farm lifecycle administration
type AdminHandler struct {
	farmSvc farm.Service
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(farmSvc farm.Service) *AdminHandler {
	return &AdminHandler{
		farmSvc: farmSvc,
	}
}

// HandleFund handles the reward funding endpoint
// @Summary Fund a reward token
// @Description Record a reward token deposit toward the configured supply. Only valid before setup is finalized.
// @Tags admin
// @Accept json
// @Produce json
// @Param request body FundRequest true "Fund request"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse "Unknown token or invalid amount"
// @Failure 409 {object} ErrorResponse "Setup already finalized"
// @Router /admin/fund [post]
func (h *AdminHandler) HandleFund(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req FundRequest
	if err := DecodeAndValidateRequest(r, w, &req, "Fund"); err != nil {
		return
	}

	if err := h.farmSvc.Fund(r.Context(), req.Token, req.Amount); err != nil {
		respondServiceError(w, r, "Fund", err)
		return
	}

	log.Info("Reward deposit recorded", "token", req.Token, "amount", req.Amount)

	respondJSON(w, http.StatusOK, SuccessResponse{Message: MsgRewardFunded})
}

// HandleFinalizeSetup handles the setup finalization endpoint
// @Summary Finalize farm setup
// @Description Verify every reward token is funded to exactly the configured emission and open the farm
// @Tags admin
// @Produce json
// @Success 200 {object} SuccessResponse
// @Failure 409 {object} ErrorResponse "Deposit mismatch or already finalized"
// @Router /admin/finalize-setup [post]
func (h *AdminHandler) HandleFinalizeSetup(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	if err := h.farmSvc.FinalizeSetup(r.Context()); err != nil {
		respondServiceError(w, r, "FinalizeSetup", err)
		return
	}

	log.Info("Farm setup finalized")

	respondJSON(w, http.StatusOK, SuccessResponse{Message: MsgSetupFinalized})
}

// HandleSetActive handles the pause/resume endpoint
// @Summary Pause or resume staking
// @Description Pausing blocks new stake; unstake, harvest and close stay available
// @Tags admin
// @Accept json
// @Produce json
// @Param request body SetActiveRequest true "Set active request"
// @Success 200 {object} SuccessResponse
// @Router /admin/set-active [post]
func (h *AdminHandler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req SetActiveRequest
	if err := DecodeAndValidateRequest(r, w, &req, "SetActive"); err != nil {
		return
	}

	if err := h.farmSvc.SetActive(r.Context(), *req.Active); err != nil {
		respondServiceError(w, r, "SetActive", err)
		return
	}

	msg := MsgFarmPaused
	if *req.Active {
		msg = MsgFarmResumed
	}
	log.Info(msg)

	respondJSON(w, http.StatusOK, SuccessResponse{Message: msg})
}

// HandleSetWindow handles the farming window endpoint
// @Summary Move the farming window
// @Description Change the farming start and end timestamps. Immutable once setup is finalized.
// @Tags admin
// @Accept json
// @Produce json
// @Param request body SetWindowRequest true "Set window request"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse "End not after start"
// @Failure 409 {object} ErrorResponse "Setup already finalized"
// @Router /admin/set-window [post]
func (h *AdminHandler) HandleSetWindow(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req SetWindowRequest
	if err := DecodeAndValidateRequest(r, w, &req, "SetWindow"); err != nil {
		return
	}

	if err := h.farmSvc.SetWindow(r.Context(), req.Start, req.End); err != nil {
		respondServiceError(w, r, "SetWindow", err)
		return
	}

	log.Info("Farming window updated", "start", req.Start, "end", req.End)

	respondJSON(w, http.StatusOK, SuccessResponse{Message: MsgWindowUpdated})
}
