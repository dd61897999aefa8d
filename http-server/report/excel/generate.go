package excel

import (
	"context"
	"fmt"
	"github.com/go-chi/chi/v5/middleware"
	"laser-planning/internal/timegrid"
	"log/slog"
	"net/http"
	"time"
)

type PlanningReport interface {
	WeeklyPlanning(ctx context.Context, start, end time.Time) ([]byte, error)
}

// GenerateReportExcel streams the planning grid for a date range as an
// xlsx download. Defaults to the current week when no range is given.
func GenerateReportExcel(log *slog.Logger, report PlanningReport) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.report.excel.GenerateReportExcel"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		start, end, err := parseRange(r.URL.Query().Get("start_date"), r.URL.Query().Get("end_date"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		content, err := report.WeeklyPlanning(ctx, start, end)
		if err != nil {
			log.Error("failed to generate planning report", slog.String("error", err.Error()))
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}

		filename := fmt.Sprintf("planning_%s_%s.xlsx", start.Format("2006-01-02"), end.Format("2006-01-02"))
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
		w.WriteHeader(http.StatusOK)

		if _, err := w.Write(content); err != nil {
			log.Error("failed to write report body", slog.String("error", err.Error()))
		}
	}
}

func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	if startStr == "" && endStr == "" {
		now := timegrid.Day(time.Now())
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		start := now.AddDate(0, 0, 1-weekday)
		return start, start.AddDate(0, 0, 6), nil
	}

	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date")
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date precedes start_date")
	}

	return timegrid.Day(start), timegrid.Day(end), nil
}
