package calculate

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"laser-planning/internal/service/calculation"
	"laser-planning/internal/storage"
	"log/slog"
	"net/http"
	"time"
)

type Request struct {
	OrderUUID string `json:"order_uuid"`
}

type Response struct {
	ErrorCode int    `json:"error_code"`
	Message   string `json:"message,omitempty"`
	*calculation.Result
}

type HoursCalculator interface {
	CalculateForOrder(ctx context.Context, orderUUID string) (*calculation.Result, error)
}

// CalculateHours returns the full production time calculation for one
// order. An offer without timing data is a 422, never a zero-filled result.
func CalculateHours(log *slog.Logger, calc HoursCalculator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.planning.calculate.CalculateHours"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("Invalid JSON", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, Response{ErrorCode: -1, Message: "invalid JSON"})
			return
		}
		if req.OrderUUID == "" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, Response{ErrorCode: -1, Message: "order_uuid is required"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		result, err := calc.CalculateForOrder(ctx, req.OrderUUID)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrOrderNotFound):
				http.Error(w, "order not found", http.StatusNotFound)
			case errors.Is(err, calculation.ErrNoOperations):
				w.WriteHeader(http.StatusUnprocessableEntity)
				render.JSON(w, r, Response{ErrorCode: -1, Message: calculation.ErrNoOperations.Error()})
			default:
				log.Error("failed to calculate production time", slog.String("error", err.Error()))
				http.Error(w, "Internal error", http.StatusInternalServerError)
			}
			return
		}

		render.JSON(w, r, Response{ErrorCode: 0, Result: result})
	}
}
