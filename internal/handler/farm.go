package handler

import (
	"errors"
	"net/http"

	"github.com/croplabs/farmd/internal/domain"
	"github.com/croplabs/farmd/internal/farm"
	"github.com/croplabs/farmd/internal/logger"
)

// StakeRequest represents the request to deposit stake into a vault.
// Fungible farms take amount; NFT farms take collection and item_id, with
// boost selecting the single boost slot.
type StakeRequest struct {
	Account    string `json:"account" validate:"required,max=100"`
	Amount     string `json:"amount,omitempty" validate:"omitempty,decimal"`
	Collection string `json:"collection,omitempty" validate:"omitempty,max=100"`
	ItemID     string `json:"item_id,omitempty" validate:"omitempty,max=100"`
	Boost      bool   `json:"boost,omitempty"`
}

// UnstakeRequest represents the request to withdraw stake. An NFT farm
// request with a collection but no item_id returns every staked item of
// that collection.
type UnstakeRequest struct {
	Account    string `json:"account" validate:"required,max=100"`
	Amount     string `json:"amount,omitempty" validate:"omitempty,decimal"`
	Collection string `json:"collection,omitempty" validate:"omitempty,max=100"`
	ItemID     string `json:"item_id,omitempty" validate:"omitempty,max=100"`
	Boost      bool   `json:"boost,omitempty"`
}

// AccountRequest carries only the calling account, for harvest and close
type AccountRequest struct {
	Account string `json:"account" validate:"required,max=100"`
}

// WithdrawRecoveredRequest retries the credit of a previously failed payout
type WithdrawRecoveredRequest struct {
	Account string `json:"account" validate:"required,max=100"`
	Token   string `json:"token" validate:"required,max=100"`
}

// FarmHandler handles farm-related HTTP requests
type FarmHandler struct {
	farmSvc farm.Service
}

// NewFarmHandler creates a new farm handler
func NewFarmHandler(farmSvc farm.Service) *FarmHandler {
	return &FarmHandler{
		farmSvc: farmSvc,
	}
}

// HandleStake handles the stake endpoint
// @Summary Stake into the farm
// @Description Deposit fungible tokens or an NFT item into the caller's vault, registering the vault on first use
// @Tags farm
// @Accept json
// @Produce json
// @Param request body StakeRequest true "Stake request"
// @Success 200 {object} domain.StakeResult "Stake recorded"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 409 {object} ErrorResponse "Farm not open for staking"
// @Router /farm/stake [post]
func (h *FarmHandler) HandleStake(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	if r.Method != http.MethodPost {
		log.Warn("Method not allowed", "method", r.Method)
		http.Error(w, ErrMsgMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	var req StakeRequest
	if err := DecodeAndValidateRequest(r, w, &req, "Stake"); err != nil {
		return
	}

	log.Info("Stake request received", "account", req.Account, "collection", req.Collection, "boost", req.Boost)

	result, err := h.farmSvc.Stake(r.Context(), farm.StakeRequest{
		Account:    req.Account,
		Amount:     req.Amount,
		Collection: req.Collection,
		ItemID:     req.ItemID,
		Boost:      req.Boost,
	})
	if err != nil {
		respondServiceError(w, r, "Stake", err)
		return
	}

	log.Info("Stake successful", "account", req.Account, "weight", result.Weight)

	respondJSON(w, http.StatusOK, result)
}

// HandleUnstake handles the unstake endpoint
// @Summary Unstake from the farm
// @Description Withdraw stake and dispatch its return transfer through the settlement engine
// @Tags farm
// @Accept json
// @Produce json
// @Param request body UnstakeRequest true "Unstake request"
// @Success 202 {object} domain.UnstakeResult "Unstake recorded, return transfer in flight"
// @Failure 400 {object} ErrorResponse "Invalid request or not enough stake"
// @Failure 404 {object} ErrorResponse "Account not registered"
// @Router /farm/unstake [post]
func (h *FarmHandler) HandleUnstake(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	if r.Method != http.MethodPost {
		log.Warn("Method not allowed", "method", r.Method)
		http.Error(w, ErrMsgMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	var req UnstakeRequest
	if err := DecodeAndValidateRequest(r, w, &req, "Unstake"); err != nil {
		return
	}

	log.Info("Unstake request received", "account", req.Account, "collection", req.Collection, "boost", req.Boost)

	result, err := h.farmSvc.Unstake(r.Context(), farm.UnstakeRequest{
		Account:    req.Account,
		Amount:     req.Amount,
		Collection: req.Collection,
		ItemID:     req.ItemID,
		Boost:      req.Boost,
	})
	if err != nil {
		respondServiceError(w, r, "Unstake", err)
		return
	}

	log.Info("Unstake successful",
		"account", req.Account,
		"settlement_id", result.Settlement.SettlementID,
		"legs", result.Settlement.Legs)

	respondJSON(w, http.StatusAccepted, result)
}

// HandleHarvest handles the harvest endpoint
// @Summary Harvest accrued reward
// @Description Reserve all accrued reward units and dispatch the per-token credit transfers
// @Tags farm
// @Accept json
// @Produce json
// @Param request body AccountRequest true "Harvest request"
// @Success 202 {object} domain.HarvestResult "Harvest reserved, credits in flight"
// @Failure 404 {object} ErrorResponse "Account not registered"
// @Router /farm/harvest [post]
func (h *FarmHandler) HandleHarvest(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	if r.Method != http.MethodPost {
		log.Warn("Method not allowed", "method", r.Method)
		http.Error(w, ErrMsgMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	var req AccountRequest
	if err := DecodeAndValidateRequest(r, w, &req, "Harvest"); err != nil {
		return
	}

	result, err := h.farmSvc.Harvest(r.Context(), req.Account)
	if err != nil {
		log.Error("Harvest failed", "error", err, "account", req.Account)

		if errors.Is(err, domain.ErrVaultNotFound) {
			respondError(w, http.StatusNotFound, domain.ErrMsgVaultNotFound)
			return
		}

		statusCode, userMsg := mapServiceErrorToUserMessage(err)
		respondError(w, statusCode, userMsg)
		return
	}

	// A harvest with nothing accrued mutates nothing and dispatches no legs
	if result.Settlement.SettlementID == "" {
		log.Info("Harvest skipped, nothing accrued", "account", req.Account)
		respondJSON(w, http.StatusOK, result)
		return
	}

	log.Info("Harvest successful",
		"account", req.Account,
		"units", result.Units,
		"settlement_id", result.Settlement.SettlementID)

	respondJSON(w, http.StatusAccepted, result)
}

// HandleClose handles the close endpoint
// @Summary Close a vault
// @Description Reserve everything the vault holds. The vault is deleted only after every settlement leg succeeds.
// @Tags farm
// @Accept json
// @Produce json
// @Param request body AccountRequest true "Close request"
// @Success 202 {object} domain.CloseResult "Close reserved, transfers in flight"
// @Failure 400 {object} ErrorResponse "Too many staked items for a single close"
// @Failure 404 {object} ErrorResponse "Account not registered"
// @Router /farm/close [post]
func (h *FarmHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	if r.Method != http.MethodPost {
		log.Warn("Method not allowed", "method", r.Method)
		http.Error(w, ErrMsgMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	var req AccountRequest
	if err := DecodeAndValidateRequest(r, w, &req, "Close"); err != nil {
		return
	}

	result, err := h.farmSvc.Close(r.Context(), req.Account)
	if err != nil {
		respondServiceError(w, r, "Close", err)
		return
	}

	log.Info("Close accepted",
		"account", req.Account,
		"settlement_id", result.Settlement.SettlementID,
		"legs", result.Settlement.Legs)

	respondJSON(w, http.StatusAccepted, result)
}

// HandleWithdrawRecovered handles the withdraw-recovered endpoint
// @Summary Withdraw recovered funds
// @Description Retry the credit of an amount recovered from a previously failed transfer
// @Tags farm
// @Accept json
// @Produce json
// @Param request body WithdrawRecoveredRequest true "Withdraw request"
// @Success 202 {object} domain.WithdrawRecoveredResult "Credit in flight"
// @Failure 400 {object} ErrorResponse "Nothing to withdraw"
// @Failure 404 {object} ErrorResponse "Account not registered"
// @Router /farm/withdraw-recovered [post]
func (h *FarmHandler) HandleWithdrawRecovered(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	if r.Method != http.MethodPost {
		log.Warn("Method not allowed", "method", r.Method)
		http.Error(w, ErrMsgMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	var req WithdrawRecoveredRequest
	if err := DecodeAndValidateRequest(r, w, &req, "WithdrawRecovered"); err != nil {
		return
	}

	result, err := h.farmSvc.WithdrawRecovered(r.Context(), req.Account, req.Token)
	if err != nil {
		respondServiceError(w, r, "WithdrawRecovered", err)
		return
	}

	log.Info("Recovered withdrawal accepted",
		"account", req.Account,
		"token", req.Token,
		"amount", result.Amount)

	respondJSON(w, http.StatusAccepted, result)
}

// HandleAccountStatus handles the account status endpoint
// @Summary Account status
// @Description Project a vault with a fresh accrual that is never written back
// @Tags farm
// @Produce json
// @Param account query string true "Account identifier"
// @Success 200 {object} domain.AccountStatus
// @Failure 404 {object} ErrorResponse "Account not registered"
// @Router /farm/status [get]
func (h *FarmHandler) HandleAccountStatus(w http.ResponseWriter, r *http.Request) {
	account, ok := GetQueryParam(r, w, "account")
	if !ok {
		return
	}

	status, err := h.farmSvc.Status(r.Context(), account)
	if err != nil {
		respondServiceError(w, r, "Status", err)
		return
	}

	respondJSON(w, http.StatusOK, status)
}

// HandleFarmStatus handles the farm status endpoint
// @Summary Farm status
// @Description Project the farm aggregate, including lifecycle flags and funding totals
// @Tags farm
// @Produce json
// @Success 200 {object} domain.FarmStatus
// @Router /farm [get]
func (h *FarmHandler) HandleFarmStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.farmSvc.FarmStatus(r.Context())
	if err != nil {
		respondServiceError(w, r, "FarmStatus", err)
		return
	}

	respondJSON(w, http.StatusOK, status)
}
