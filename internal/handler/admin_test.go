package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/croplabs/farmd/internal/domain"
)

func TestHandleFund(t *testing.T) {
	t.Run("deposit is recorded", func(t *testing.T) {
		mockSvc := &MockFarmService{}
		mockSvc.On("Fund", mock.Anything, "CHDR", "1000000").Return(nil)
		h := NewAdminHandler(mockSvc)

		req := postJSON(t, "/admin/fund", FundRequest{Token: "CHDR", Amount: "1000000"})
		w := httptest.NewRecorder()

		h.HandleFund(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), MsgRewardFunded)
		mockSvc.AssertExpectations(t)
	})

	t.Run("unknown token maps to bad request", func(t *testing.T) {
		mockSvc := &MockFarmService{}
		mockSvc.On("Fund", mock.Anything, "DOGE", "5").Return(domain.ErrUnknownToken)
		h := NewAdminHandler(mockSvc)

		req := postJSON(t, "/admin/fund", FundRequest{Token: "DOGE", Amount: "5"})
		w := httptest.NewRecorder()

		h.HandleFund(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), domain.ErrMsgUnknownToken)
	})

	t.Run("missing amount fails validation", func(t *testing.T) {
		mockSvc := &MockFarmService{}
		h := NewAdminHandler(mockSvc)

		req := postJSON(t, "/admin/fund", FundRequest{Token: "CHDR"})
		w := httptest.NewRecorder()

		h.HandleFund(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockSvc.AssertNotCalled(t, "Fund")
	})
}

func TestHandleFinalizeSetup(t *testing.T) {
	t.Run("finalize opens the farm", func(t *testing.T) {
		mockSvc := &MockFarmService{}
		mockSvc.On("FinalizeSetup", mock.Anything).Return(nil)
		h := NewAdminHandler(mockSvc)

		req := httptest.NewRequest(http.MethodPost, "/admin/finalize-setup", nil)
		w := httptest.NewRecorder()

		h.HandleFinalizeSetup(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), MsgSetupFinalized)
		mockSvc.AssertExpectations(t)
	})

	t.Run("deposit mismatch maps to conflict", func(t *testing.T) {
		mockSvc := &MockFarmService{}
		mockSvc.On("FinalizeSetup", mock.Anything).Return(domain.ErrDepositMismatch)
		h := NewAdminHandler(mockSvc)

		req := httptest.NewRequest(http.MethodPost, "/admin/finalize-setup", nil)
		w := httptest.NewRecorder()

		h.HandleFinalizeSetup(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), domain.ErrMsgDepositMismatch)
	})
}

func TestHandleSetActive(t *testing.T) {
	t.Run("pause", func(t *testing.T) {
		mockSvc := &MockFarmService{}
		mockSvc.On("SetActive", mock.Anything, false).Return(nil)
		h := NewAdminHandler(mockSvc)

		active := false
		req := postJSON(t, "/admin/set-active", SetActiveRequest{Active: &active})
		w := httptest.NewRecorder()

		h.HandleSetActive(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), MsgFarmPaused)
		mockSvc.AssertExpectations(t)
	})

	t.Run("resume", func(t *testing.T) {
		mockSvc := &MockFarmService{}
		mockSvc.On("SetActive", mock.Anything, true).Return(nil)
		h := NewAdminHandler(mockSvc)

		active := true
		req := postJSON(t, "/admin/set-active", SetActiveRequest{Active: &active})
		w := httptest.NewRecorder()

		h.HandleSetActive(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), MsgFarmResumed)
	})

	t.Run("missing active field fails validation", func(t *testing.T) {
		mockSvc := &MockFarmService{}
		h := NewAdminHandler(mockSvc)

		req := postJSON(t, "/admin/set-active", map[string]string{})
		w := httptest.NewRecorder()

		h.HandleSetActive(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockSvc.AssertNotCalled(t, "SetActive")
	})
}

func TestHandleSetWindow(t *testing.T) {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(30 * 24 * time.Hour)

	t.Run("window is moved", func(t *testing.T) {
		mockSvc := &MockFarmService{}
		mockSvc.On("SetWindow", mock.Anything, start, end).Return(nil)
		h := NewAdminHandler(mockSvc)

		req := postJSON(t, "/admin/set-window", SetWindowRequest{Start: start, End: end})
		w := httptest.NewRecorder()

		h.HandleSetWindow(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("finalized farm maps to conflict", func(t *testing.T) {
		mockSvc := &MockFarmService{}
		mockSvc.On("SetWindow", mock.Anything, start, end).Return(domain.ErrWindowImmutable)
		h := NewAdminHandler(mockSvc)

		req := postJSON(t, "/admin/set-window", SetWindowRequest{Start: start, End: end})
		w := httptest.NewRecorder()

		h.HandleSetWindow(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), domain.ErrMsgWindowImmutable)
	})
}
