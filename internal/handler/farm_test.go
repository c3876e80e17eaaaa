package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/croplabs/farmd/internal/domain"
	"github.com/croplabs/farmd/internal/farm"
)

// MockFarmService mocks the farm.Service interface
type MockFarmService struct {
	mock.Mock
}

func (m *MockFarmService) Stake(ctx context.Context, req farm.StakeRequest) (*domain.StakeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StakeResult), args.Error(1)
}

func (m *MockFarmService) Unstake(ctx context.Context, req farm.UnstakeRequest) (*domain.UnstakeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UnstakeResult), args.Error(1)
}

func (m *MockFarmService) Harvest(ctx context.Context, account string) (*domain.HarvestResult, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.HarvestResult), args.Error(1)
}

func (m *MockFarmService) Close(ctx context.Context, account string) (*domain.CloseResult, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CloseResult), args.Error(1)
}

func (m *MockFarmService) WithdrawRecovered(ctx context.Context, account, token string) (*domain.WithdrawRecoveredResult, error) {
	args := m.Called(ctx, account, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WithdrawRecoveredResult), args.Error(1)
}

func (m *MockFarmService) Status(ctx context.Context, account string) (*domain.AccountStatus, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AccountStatus), args.Error(1)
}

func (m *MockFarmService) FarmStatus(ctx context.Context) (*domain.FarmStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FarmStatus), args.Error(1)
}

func (m *MockFarmService) Settlement(ctx context.Context, id uuid.UUID) (*domain.SettlementView, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SettlementView), args.Error(1)
}

func (m *MockFarmService) Fund(ctx context.Context, token, amount string) error {
	args := m.Called(ctx, token, amount)
	return args.Error(0)
}

func (m *MockFarmService) FinalizeSetup(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockFarmService) SetActive(ctx context.Context, active bool) error {
	args := m.Called(ctx, active)
	return args.Error(0)
}

func (m *MockFarmService) SetWindow(ctx context.Context, start, end time.Time) error {
	args := m.Called(ctx, start, end)
	return args.Error(0)
}

func postJSON(t *testing.T, target string, body interface{}) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHandleStake(t *testing.T) {
	t.Run("fungible stake succeeds", func(t *testing.T) {
		// ARRANGE
		mockSvc := &MockFarmService{}
		mockSvc.On("Stake", mock.Anything, farm.StakeRequest{Account: "alice", Amount: "1000"}).
			Return(&domain.StakeResult{Account: "alice", Weight: "1000"}, nil)
		h := NewFarmHandler(mockSvc)

		req := postJSON(t, "/farm/stake", StakeRequest{Account: "alice", Amount: "1000"})
		w := httptest.NewRecorder()

		// ACT
		h.HandleStake(w, req)

		// ASSERT
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"weight":"1000"`)
		mockSvc.AssertExpectations(t)
	})

	t.Run("missing account fails validation", func(t *testing.T) {
		mockSvc := &MockFarmService{}
		h := NewFarmHandler(mockSvc)

		req := postJSON(t, "/farm/stake", StakeRequest{Amount: "1000"})
		w := httptest.NewRecorder()

		h.HandleStake(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "account")
		mockSvc.AssertNotCalled(t, "Stake")
	})

	t.Run("non-numeric amount fails validation", func(t *testing.T) {
		mockSvc := &MockFarmService{}
		h := NewFarmHandler(mockSvc)

		req := postJSON(t, "/farm/stake", StakeRequest{Account: "alice", Amount: "12x4"})
		w := httptest.NewRecorder()

		h.HandleStake(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockSvc.AssertNotCalled(t, "Stake")
	})

	t.Run("paused farm maps to conflict", func(t *testing.T) {
		mockSvc := &MockFarmService{}
		mockSvc.On("Stake", mock.Anything, mock.Anything).Return(nil, domain.ErrFarmPaused)
		h := NewFarmHandler(mockSvc)

		req := postJSON(t, "/farm/stake", StakeRequest{Account: "alice", Amount: "1000"})
		w := httptest.NewRecorder()

		h.HandleStake(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), domain.ErrMsgFarmPaused)
	})

	t.Run("GET is rejected", func(t *testing.T) {
		h := NewFarmHandler(&MockFarmService{})

		req := httptest.NewRequest(http.MethodGet, "/farm/stake", nil)
		w := httptest.NewRecorder()

		h.HandleStake(w, req)

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestHandleUnstake(t *testing.T) {
	t.Run("unstake dispatches settlement", func(t *testing.T) {
		mockSvc := &MockFarmService{}
		settlementID := uuid.New().String()
		mockSvc.On("Unstake", mock.Anything, farm.UnstakeRequest{Account: "alice", Amount: "400"}).
			Return(&domain.UnstakeResult{
				Account:         "alice",
				ReturnedAmount:  "400",
				RemainingWeight: "600",
				Settlement:      domain.SettlementRef{SettlementID: settlementID, Legs: 1},
			}, nil)
		h := NewFarmHandler(mockSvc)

		req := postJSON(t, "/farm/unstake", UnstakeRequest{Account: "alice", Amount: "400"})
		w := httptest.NewRecorder()

		h.HandleUnstake(w, req)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Contains(t, w.Body.String(), settlementID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("insufficient stake maps to bad request", func(t *testing.T) {
		mockSvc := &MockFarmService{}
		mockSvc.On("Unstake", mock.Anything, mock.Anything).Return(nil, domain.ErrInsufficientStake)
		h := NewFarmHandler(mockSvc)

		req := postJSON(t, "/farm/unstake", UnstakeRequest{Account: "alice", Amount: "99999"})
		w := httptest.NewRecorder()

		h.HandleUnstake(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), domain.ErrMsgInsufficientStake)
	})
}

func TestHandleHarvest(t *testing.T) {
	t.Run("harvest with accrual is accepted", func(t *testing.T) {
		mockSvc := &MockFarmService{}
		settlementID := uuid.New().String()
		mockSvc.On("Harvest", mock.Anything, "alice").Return(&domain.HarvestResult{
			Account:      "alice",
			Units:        "250000000000000000000000",
			FarmedTokens: map[string]string{"CHDR": "250"},
			Settlement:   domain.SettlementRef{SettlementID: settlementID, Legs: 1},
		}, nil)
		h := NewFarmHandler(mockSvc)

		req := postJSON(t, "/farm/harvest", AccountRequest{Account: "alice"})
		w := httptest.NewRecorder()

		h.HandleHarvest(w, req)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Contains(t, w.Body.String(), `"CHDR":"250"`)
		mockSvc.AssertExpectations(t)
	})

	t.Run("nothing accrued returns OK without settlement", func(t *testing.T) {
		mockSvc := &MockFarmService{}
		mockSvc.On("Harvest", mock.Anything, "bob").Return(&domain.HarvestResult{
			Account: "bob",
			Units:   "0",
			Message: "nothing accrued yet, keep farming",
		}, nil)
		h := NewFarmHandler(mockSvc)

		req := postJSON(t, "/farm/harvest", AccountRequest{Account: "bob"})
		w := httptest.NewRecorder()

		h.HandleHarvest(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), "settlement_id")
	})

	t.Run("unregistered account maps to not found", func(t *testing.T) {
		mockSvc := &MockFarmService{}
		mockSvc.On("Harvest", mock.Anything, "ghost").Return(nil, domain.ErrVaultNotFound)
		h := NewFarmHandler(mockSvc)

		req := postJSON(t, "/farm/harvest", AccountRequest{Account: "ghost"})
		w := httptest.NewRecorder()

		h.HandleHarvest(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), domain.ErrMsgVaultNotFound)
	})
}

func TestHandleClose(t *testing.T) {
	t.Run("close is accepted", func(t *testing.T) {
		mockSvc := &MockFarmService{}
		settlementID := uuid.New().String()
		mockSvc.On("Close", mock.Anything, "alice").Return(&domain.CloseResult{
			Account:        "alice",
			Units:          "0",
			ReturnedAmount: "1000",
			Settlement:     domain.SettlementRef{SettlementID: settlementID, Legs: 1},
		}, nil)
		h := NewFarmHandler(mockSvc)

		req := postJSON(t, "/farm/close", AccountRequest{Account: "alice"})
		w := httptest.NewRecorder()

		h.HandleClose(w, req)

		assert.Equal(t, http.StatusAccepted, w.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("too many staked items maps to bad request", func(t *testing.T) {
		mockSvc := &MockFarmService{}
		mockSvc.On("Close", mock.Anything, "whale").Return(nil, domain.ErrTooManyStakedItems)
		h := NewFarmHandler(mockSvc)

		req := postJSON(t, "/farm/close", AccountRequest{Account: "whale"})
		w := httptest.NewRecorder()

		h.HandleClose(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), domain.ErrMsgTooManyStakedItems)
	})
}

func TestHandleWithdrawRecovered(t *testing.T) {
	t.Run("withdrawal is accepted", func(t *testing.T) {
		mockSvc := &MockFarmService{}
		mockSvc.On("WithdrawRecovered", mock.Anything, "alice", "CHDR").
			Return(&domain.WithdrawRecoveredResult{
				Account:    "alice",
				Token:      "CHDR",
				Amount:     "42",
				Settlement: domain.SettlementRef{SettlementID: uuid.New().String(), Legs: 1},
			}, nil)
		h := NewFarmHandler(mockSvc)

		req := postJSON(t, "/farm/withdraw-recovered", WithdrawRecoveredRequest{Account: "alice", Token: "CHDR"})
		w := httptest.NewRecorder()

		h.HandleWithdrawRecovered(w, req)

		assert.Equal(t, http.StatusAccepted, w.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("nothing recovered maps to bad request", func(t *testing.T) {
		mockSvc := &MockFarmService{}
		mockSvc.On("WithdrawRecovered", mock.Anything, "alice", "CHDR").
			Return(nil, domain.ErrNothingToWithdraw)
		h := NewFarmHandler(mockSvc)

		req := postJSON(t, "/farm/withdraw-recovered", WithdrawRecoveredRequest{Account: "alice", Token: "CHDR"})
		w := httptest.NewRecorder()

		h.HandleWithdrawRecovered(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), domain.ErrMsgNothingToWithdraw)
	})
}

func TestHandleAccountStatus(t *testing.T) {
	t.Run("status is projected", func(t *testing.T) {
		mockSvc := &MockFarmService{}
		mockSvc.On("Status", mock.Anything, "alice").Return(&domain.AccountStatus{
			Account:      "alice",
			Weight:       "1000",
			AccruedUnits: "0",
			Round:        3,
		}, nil)
		h := NewFarmHandler(mockSvc)

		req := httptest.NewRequest(http.MethodGet, "/farm/status?account=alice", nil)
		w := httptest.NewRecorder()

		h.HandleAccountStatus(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"round":3`)
		mockSvc.AssertExpectations(t)
	})

	t.Run("missing account parameter", func(t *testing.T) {
		h := NewFarmHandler(&MockFarmService{})

		req := httptest.NewRequest(http.MethodGet, "/farm/status", nil)
		w := httptest.NewRecorder()

		h.HandleAccountStatus(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleFarmStatus(t *testing.T) {
	mockSvc := &MockFarmService{}
	mockSvc.On("FarmStatus", mock.Anything).Return(&domain.FarmStatus{
		Mode:              "fungible",
		TotalRewardSupply: "1000000",
		RewardPerRound:    "1000",
		RoundsTotal:       1000,
		SetupFinalized:    true,
	}, nil)
	h := NewFarmHandler(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/farm", nil)
	w := httptest.NewRecorder()

	h.HandleFarmStatus(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"mode":"fungible"`)
	mockSvc.AssertExpectations(t)
}
