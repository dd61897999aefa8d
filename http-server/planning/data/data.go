package data

import (
	"context"
	"encoding/json"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"io"
	"laser-planning/internal/service/planningdata"
	"laser-planning/internal/timegrid"
	"log/slog"
	"net/http"
	"time"
)

type Request struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type Response struct {
	ErrorCode int               `json:"error_code"`
	Errors    map[string]string `json:"errors,omitempty"`
	*planningdata.Data
}

type PlanningData interface {
	GetData(ctx context.Context, start, end time.Time) (*planningdata.Data, error)
}

// GetPlanningData serves the calendar's read projection. An empty body
// defaults to the current week.
func GetPlanningData(log *slog.Logger, data PlanningData) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.planning.data.GetPlanningData"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			log.Error("Invalid JSON", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, Response{ErrorCode: -1, Errors: map[string]string{"body": "invalid JSON"}})
			return
		}

		start, end, fieldErrs := parseRange(req)
		if len(fieldErrs) > 0 {
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, Response{ErrorCode: -1, Errors: fieldErrs})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		result, err := data.GetData(ctx, start, end)
		if err != nil {
			log.Error("failed to load planning data", slog.String("error", err.Error()))
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, r, Response{ErrorCode: 0, Data: result})
	}
}

func parseRange(req Request) (time.Time, time.Time, map[string]string) {
	errs := map[string]string{}

	if req.StartDate == "" && req.EndDate == "" {
		// Monday through Sunday of the current week.
		now := timegrid.Day(time.Now())
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		start := now.AddDate(0, 0, 1-weekday)
		return start, start.AddDate(0, 0, 6), nil
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		errs["start_date"] = "must be a date in YYYY-MM-DD format"
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		errs["end_date"] = "must be a date in YYYY-MM-DD format"
	}
	if len(errs) == 0 && end.Before(start) {
		errs["end_date"] = "must not precede start_date"
	}
	if len(errs) > 0 {
		return time.Time{}, time.Time{}, errs
	}

	return timegrid.Day(start), timegrid.Day(end), nil
}
