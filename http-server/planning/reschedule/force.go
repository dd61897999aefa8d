package reschedule

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"laser-planning/internal/service/replan"
	"laser-planning/internal/storage"
	"log/slog"
	"net/http"
	"time"
)

type Request struct {
	OrderUUID string `json:"order_uuid"`
}

type Response struct {
	ErrorCode int                    `json:"error_code"`
	OrderUUID string                 `json:"order_uuid,omitempty"`
	Result    *replan.ScheduleResult `json:"result,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Errors    map[string]string      `json:"errors,omitempty"`
}

type Scheduler interface {
	AutoSchedule(ctx context.Context, orderUUID string, force bool) (*replan.ScheduleResult, error)
}

// ForceReschedule discards the order's existing future plan, manual cells
// included, and reallocates from scratch. A scheduling failure is a
// reported condition the operator can retry after freeing capacity, not a
// server error.
func ForceReschedule(log *slog.Logger, scheduler Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.planning.reschedule.ForceReschedule"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Error("Invalid JSON", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, Response{ErrorCode: -1, Errors: map[string]string{"body": "invalid JSON"}})
			return
		}

		if _, err := uuid.Parse(req.OrderUUID); err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, Response{ErrorCode: -1, Errors: map[string]string{"order_uuid": "must be a valid UUID"}})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		result, err := scheduler.AutoSchedule(ctx, req.OrderUUID, true)
		if err != nil {
			var schedErr *replan.SchedulingError
			switch {
			case errors.Is(err, storage.ErrOrderNotFound):
				http.Error(w, "order not found", http.StatusNotFound)
			case errors.As(err, &schedErr):
				w.WriteHeader(http.StatusUnprocessableEntity)
				render.JSON(w, r, Response{ErrorCode: -1, OrderUUID: req.OrderUUID, Message: schedErr.Message})
			default:
				log.Error("forced reschedule failed",
					slog.String("order_uuid", req.OrderUUID),
					slog.String("error", err.Error()),
				)
				http.Error(w, "Internal error", http.StatusInternalServerError)
			}
			return
		}

		render.JSON(w, r, Response{ErrorCode: 0, OrderUUID: req.OrderUUID, Result: result})
	}
}
