package save

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"laser-planning/internal/service/planningwrite"
	"laser-planning/internal/service/replan"
	"laser-planning/internal/storage"
	"laser-planning/internal/timegrid"
	"log/slog"
	"net/http"
	"time"
)

type Request struct {
	OrderUUID    string `json:"order_uuid"`
	WorkLineUUID string `json:"lasworkline_uuid"`
	Date         string `json:"date"`
	Hour         int    `json:"hour"`
	Minute       int    `json:"minute"`
	Workers      int    `json:"workers"`
	ZoomLevel    string `json:"zoom_level"`
}

type Response struct {
	ErrorCode    int                  `json:"error_code"`
	PlanningID   int64                `json:"planning_id,omitempty"`
	ReplanResult *replan.ReplanResult `json:"replan_result,omitempty"`
	ReplanError  string               `json:"replan_error,omitempty"`
	Errors       map[string]string    `json:"errors,omitempty"`
}

type CellWriter interface {
	SavePlanningCell(ctx context.Context, in planningwrite.CellInput) (int64, error)
}

type Replanner interface {
	ReplanAfterManualEdit(ctx context.Context, orderUUID string, editDate time.Time) (*replan.ReplanResult, error)
}

// SavePlanningCell is the manual write primitive of the calendar. The cell
// is saved first, then the rebalance runs; a rebalance problem does not
// undo the save, it is reported alongside it.
func SavePlanningCell(log *slog.Logger, writer CellWriter, replanner Replanner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.planning.save.SavePlanningCell"

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

		in, fieldErrs := validate(req)
		if len(fieldErrs) > 0 {
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, Response{ErrorCode: -1, Errors: fieldErrs})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		planningID, err := writer.SavePlanningCell(ctx, in)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrOrderNotFound), errors.Is(err, storage.ErrWorkLineNotFound):
				http.Error(w, err.Error(), http.StatusNotFound)
			case errors.Is(err, planningwrite.ErrInvalidSlot), errors.Is(err, planningwrite.ErrNegativeWorkers):
				w.WriteHeader(http.StatusUnprocessableEntity)
				render.JSON(w, r, Response{ErrorCode: -1, Errors: map[string]string{"slot": err.Error()}})
			case errors.Is(err, storage.ErrLockTimeout):
				// Transient: another writer holds the order. Nothing was
				// written, the client can simply retry.
				http.Error(w, "order is being replanned, retry", http.StatusServiceUnavailable)
			default:
				log.Error("failed to save planning cell", slog.String("error", err.Error()))
				http.Error(w, "Internal error", http.StatusInternalServerError)
			}
			return
		}

		resp := Response{ErrorCode: 0, PlanningID: planningID}

		replanResult, err := replanner.ReplanAfterManualEdit(ctx, req.OrderUUID, in.Date)
		if err != nil {
			// The cell is committed, so the save itself succeeded, but the
			// plan is unreconciled: error_code -1 makes the condition
			// visible to the UI and cron tooling.
			log.Warn("replan after manual edit failed",
				slog.String("order_uuid", req.OrderUUID),
				slog.String("error", err.Error()),
			)
			resp.ErrorCode = -1
			resp.ReplanError = err.Error()
		} else {
			resp.ReplanResult = replanResult
		}

		render.JSON(w, r, resp)
	}
}

func validate(req Request) (planningwrite.CellInput, map[string]string) {
	errs := map[string]string{}

	if _, err := uuid.Parse(req.OrderUUID); err != nil {
		errs["order_uuid"] = "must be a valid UUID"
	}
	if _, err := uuid.Parse(req.WorkLineUUID); err != nil {
		errs["lasworkline_uuid"] = "must be a valid UUID"
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		errs["date"] = "must be a date in YYYY-MM-DD format"
	}

	if req.Hour < 0 || req.Hour > 23 {
		errs["hour"] = "must be between 0 and 23"
	}
	switch req.Minute {
	case 0, 15, 30, 45:
	default:
		errs["minute"] = "must be one of 0, 15, 30, 45"
	}
	if req.Workers < 0 {
		errs["workers"] = "must be a non-negative integer"
	}

	res, err := timegrid.ParseResolution(req.ZoomLevel)
	if err != nil {
		errs["zoom_level"] = "must be 'hour' or 'quarter'"
	}
	if res == timegrid.Hour && req.Minute != 0 {
		errs["minute"] = "must be 0 at hour zoom"
	}

	if len(errs) > 0 {
		return planningwrite.CellInput{}, errs
	}

	return planningwrite.CellInput{
		OrderUUID:    req.OrderUUID,
		WorkLineUUID: req.WorkLineUUID,
		Date:         timegrid.Day(date),
		Hour:         req.Hour,
		Minute:       req.Minute,
		Workers:      req.Workers,
		Res:          res,
	}, nil
}
