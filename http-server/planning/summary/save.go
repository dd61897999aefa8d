package summary

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"laser-planning/internal/constants"
	"laser-planning/internal/service/planningwrite"
	"laser-planning/internal/timegrid"
	"log/slog"
	"net/http"
	"time"
)

type Request struct {
	SummaryType string `json:"summary_type"`
	Date        string `json:"date"`
	Hour        int    `json:"hour"`
	Minute      int    `json:"minute"`
	Value       int    `json:"value"`
	Reset       int    `json:"reset"`
	ZoomLevel   string `json:"zoom_level"`
}

type Response struct {
	ErrorCode int               `json:"error_code"`
	SummaryID int64             `json:"summary_id,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}

type SummaryWriter interface {
	SaveSummaryValue(ctx context.Context, in planningwrite.SummaryInput) (int64, error)
}

func SaveSummaryValue(log *slog.Logger, writer SummaryWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.planning.summary.SaveSummaryValue"

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

		summaryID, err := writer.SaveSummaryValue(ctx, in)
		if err != nil {
			if errors.Is(err, planningwrite.ErrInvalidSlot) ||
				errors.Is(err, planningwrite.ErrInvalidValue) ||
				errors.Is(err, planningwrite.ErrUnknownSummaryType) {
				w.WriteHeader(http.StatusUnprocessableEntity)
				render.JSON(w, r, Response{ErrorCode: -1, Errors: map[string]string{"summary": err.Error()}})
				return
			}
			log.Error("failed to save summary value", slog.String("error", err.Error()))
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, r, Response{ErrorCode: 0, SummaryID: summaryID})
	}
}

func validate(req Request) (planningwrite.SummaryInput, map[string]string) {
	errs := map[string]string{}

	if !constants.SummaryTypes[req.SummaryType] {
		errs["summary_type"] = "must be one of ABSENCES, SUPERVISORS, WAREHOUSE_STAFF"
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
	if req.Reset != 0 && req.Reset != 1 {
		errs["reset"] = "must be 0 or 1"
	}
	if req.Reset == 0 && req.Value < 0 {
		errs["value"] = "must be a non-negative integer"
	}

	res, err := timegrid.ParseResolution(req.ZoomLevel)
	if err != nil {
		errs["zoom_level"] = "must be 'hour' or 'quarter'"
	}
	if res == timegrid.Hour && req.Minute != 0 {
		errs["minute"] = "must be 0 at hour zoom"
	}

	if len(errs) > 0 {
		return planningwrite.SummaryInput{}, errs
	}

	return planningwrite.SummaryInput{
		SummaryType: req.SummaryType,
		Date:        timegrid.Day(date),
		Hour:        req.Hour,
		Minute:      req.Minute,
		Value:       req.Value,
		Reset:       req.Reset == 1,
		Res:         res,
	}, nil
}
