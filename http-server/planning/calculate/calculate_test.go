package calculate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"log/slog"

	"laser-planning/internal/service/calculation"
	"laser-planning/internal/storage"
)

type MockHoursCalculator struct {
	mock.Mock
}

func (m *MockHoursCalculator) CalculateForOrder(ctx context.Context, orderUUID string) (*calculation.Result, error) {
	args := m.Called(ctx, orderUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*calculation.Result), args.Error(1)
}

func TestCalculateHours_Success(t *testing.T) {
	calc := new(MockHoursCalculator)
	calc.On("CalculateForOrder", mock.Anything, "ord-1").Return(&calculation.Result{
		TotalSeconds:         250,
		UnexpectedSeconds:    12.5,
		TheoreticalTime:      262.5,
		ProductionTimeCFZ:    300,
		ProductionAverageCFZ: 12,
		ProductionAveragePZ:  120,
	}, nil)

	handler := CalculateHours(slog.Default(), calc)

	req := httptest.NewRequest(http.MethodPost, "/api/planning/calculate-hours", strings.NewReader(`{"order_uuid":"ord-1"}`))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp Response
	err := render.DecodeJSON(strings.NewReader(rr.Body.String()), &resp)
	assert.NoError(t, err)
	assert.Equal(t, 0, resp.ErrorCode)
	assert.Equal(t, 300.0, resp.ProductionTimeCFZ)
	assert.Equal(t, 120.0, resp.ProductionAveragePZ)

	calc.AssertExpectations(t)
}

func TestCalculateHours_MissingOrderUUID(t *testing.T) {
	calc := new(MockHoursCalculator)
	handler := CalculateHours(slog.Default(), calc)

	req := httptest.NewRequest(http.MethodPost, "/api/planning/calculate-hours", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	calc.AssertNotCalled(t, "CalculateForOrder")
}

func TestCalculateHours_OrderNotFound(t *testing.T) {
	calc := new(MockHoursCalculator)
	calc.On("CalculateForOrder", mock.Anything, "ord-missing").
		Return(nil, storage.ErrOrderNotFound)

	handler := CalculateHours(slog.Default(), calc)

	req := httptest.NewRequest(http.MethodPost, "/api/planning/calculate-hours", strings.NewReader(`{"order_uuid":"ord-missing"}`))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCalculateHours_NoOperationsIsNotAZeroResult(t *testing.T) {
	calc := new(MockHoursCalculator)
	calc.On("CalculateForOrder", mock.Anything, "ord-1").
		Return(nil, calculation.ErrNoOperations)

	handler := CalculateHours(slog.Default(), calc)

	req := httptest.NewRequest(http.MethodPost, "/api/planning/calculate-hours", strings.NewReader(`{"order_uuid":"ord-1"}`))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var resp Response
	err := render.DecodeJSON(strings.NewReader(rr.Body.String()), &resp)
	assert.NoError(t, err)
	assert.Equal(t, -1, resp.ErrorCode)
	assert.NotEmpty(t, resp.Message)
}

func TestCalculateHours_StorageFailure(t *testing.T) {
	calc := new(MockHoursCalculator)
	calc.On("CalculateForOrder", mock.Anything, "ord-1").
		Return(nil, errors.New("driver: bad connection"))

	handler := CalculateHours(slog.Default(), calc)

	req := httptest.NewRequest(http.MethodPost, "/api/planning/calculate-hours", strings.NewReader(`{"order_uuid":"ord-1"}`))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
