package main

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"laser-planning/http-server/planning/calculate"
	"laser-planning/http-server/planning/checktoday"
	"laser-planning/http-server/planning/data"
	"laser-planning/http-server/planning/reschedule"
	"laser-planning/http-server/planning/save"
	"laser-planning/http-server/planning/summary"
	reportexcel "laser-planning/http-server/report/excel"
	"laser-planning/internal/config"
	"laser-planning/internal/middleware/auth"
	"laser-planning/internal/service/calculation"
	"laser-planning/internal/service/planningdata"
	"laser-planning/internal/service/planningwrite"
	"laser-planning/internal/service/replan"
	"laser-planning/internal/service/report"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

func routes(
	cfg config.Config,
	log *slog.Logger,
	calcService *calculation.Service,
	dataService *planningdata.Service,
	writeService *planningwrite.Service,
	replanService *replan.Service,
	reportService *report.Service,
) *chi.Mux {
	router := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:8081", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	router.Use(corsHandler.Handler)

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Post("/api/planning/data", data.GetPlanningData(log, dataService))
	router.Post("/api/planning/save", save.SavePlanningCell(log, writeService, replanService))
	router.Post("/api/planning/summary/save", summary.SaveSummaryValue(log, writeService))
	router.Post("/api/planning/calculate-hours", calculate.CalculateHours(log, calcService))

	router.Get("/api/planning/report/excel", reportexcel.GenerateReportExcel(log, reportService))

	// The external scheduler authenticates with the cron credentials.
	cronAuth := auth.BasicAuth(cfg.CronLogin, cfg.CronPass)
	router.With(cronAuth).Post("/api/planning/check-today", checktoday.CheckToday(log, replanService))
	router.With(cronAuth).Post("/api/planning/force-reschedule", reschedule.ForceReschedule(log, replanService))

	// Static planning SPA. The server still runs without it so the API can
	// be deployed headless.
	frontendDir := "./frontend-dist"
	if _, err := os.Stat(frontendDir); os.IsNotExist(err) {
		log.Warn("frontend dir not found, serving API only", slog.String("path", frontendDir))
		return router
	}

	fileServer := http.StripPrefix("/", http.FileServer(http.Dir(frontendDir)))

	router.Handle("/assets/*", fileServer)
	router.Handle("/js/*", fileServer)
	router.Handle("/css/*", fileServer)
	router.Handle("/img/*", fileServer)

	// SPA fallback: /planning and any other path land on index.html.
	router.HandleFunc("/*", func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(frontendDir, r.URL.Path)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			http.ServeFile(w, r, path)
			return
		}
		http.ServeFile(w, r, filepath.Join(frontendDir, "index.html"))
	})

	return router
}
