package checktoday

import (
	"context"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"laser-planning/internal/service/replan"
	"log/slog"
	"net/http"
	"time"
)

type Response struct {
	ErrorCode int `json:"error_code"`
	*replan.CheckTodayResult
}

type Sweeper interface {
	CheckToday(ctx context.Context) (*replan.CheckTodayResult, error)
}

// CheckToday is the daily consistency sweep, intended to be hit by an
// external cron. Idempotent: safe to invoke any number of times per day.
func CheckToday(log *slog.Logger, sweeper Sweeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.planning.checktoday.CheckToday"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		// The sweep walks every order planned today; give it more room
		// than a single-order request.
		ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
		defer cancel()

		result, err := sweeper.CheckToday(ctx)
		if err != nil {
			log.Error("daily sweep failed", slog.String("error", err.Error()))
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}

		log.Info("daily sweep finished",
			slog.Int("orders_checked", result.OrdersChecked),
			slog.Int("orders_modified", result.OrdersModified),
		)

		render.JSON(w, r, Response{ErrorCode: 0, CheckTodayResult: result})
	}
}
