package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/croplabs/farmd/internal/domain"
)

func settlementRouter(h *SettlementHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/settlements/{id}", h.HandleGetSettlement)
	return r
}

func TestHandleGetSettlement(t *testing.T) {
	t.Run("settlement is returned with legs", func(t *testing.T) {
		// ARRANGE
		mockSvc := &MockFarmService{}
		id := uuid.New()
		mockSvc.On("Settlement", mock.Anything, id).Return(&domain.SettlementView{
			ID:           id.String(),
			Account:      "alice",
			Kind:         "harvest",
			Status:       "succeeded",
			LegsTotal:    2,
			LegsResolved: 2,
			Legs: []domain.LegView{
				{Index: 0, Kind: "reward-credit", Token: "CHDR", Amount: "250", Status: "succeeded"},
				{Index: 1, Kind: "reward-credit", Token: "WHEY", Amount: "125", Status: "succeeded"},
			},
		}, nil)
		r := settlementRouter(NewSettlementHandler(mockSvc))

		req := httptest.NewRequest(http.MethodGet, "/settlements/"+id.String(), nil)
		w := httptest.NewRecorder()

		// ACT
		r.ServeHTTP(w, req)

		// ASSERT
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"succeeded"`)
		assert.Contains(t, w.Body.String(), `"legs_resolved":2`)
		mockSvc.AssertExpectations(t)
	})

	t.Run("malformed id", func(t *testing.T) {
		r := settlementRouter(NewSettlementHandler(&MockFarmService{}))

		req := httptest.NewRequest(http.MethodGet, "/settlements/not-a-uuid", nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), ErrMsgInvalidSettlementID)
	})

	t.Run("unknown settlement maps to not found", func(t *testing.T) {
		mockSvc := &MockFarmService{}
		id := uuid.New()
		mockSvc.On("Settlement", mock.Anything, id).Return(nil, domain.ErrSettlementNotFound)
		r := settlementRouter(NewSettlementHandler(mockSvc))

		req := httptest.NewRequest(http.MethodGet, "/settlements/"+id.String(), nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), domain.ErrMsgSettlementNotFound)
	})
}
