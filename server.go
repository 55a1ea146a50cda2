package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ardoise-data/building.review/db"
	"github.com/ardoise-data/building.review/internal/building/optimize"
	storage "github.com/ardoise-data/building.review/internal/building/storage/sqlite"
	"github.com/ardoise-data/building.review/internal/config"
)

// Server exposes the runs database over HTTP: past optimization runs,
// their trial histories and Pareto fronts, threshold records, and
// evaluation reports.
type Server struct {
	db  *db.DB
	cfg *config.EngineConfig
}

func NewServer(database *db.DB, cfg *config.EngineConfig) *Server {
	return &Server{
		db:  database,
		cfg: cfg,
	}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/runs", s.listRuns)
	mux.HandleFunc("/run", s.showRun)
	mux.HandleFunc("/trials", s.listTrials)
	mux.HandleFunc("/front", s.showFront)
	mux.HandleFunc("/front.html", s.renderFront)
	mux.HandleFunc("/history.html", s.renderHistory)
	mux.HandleFunc("/thresholds", s.listThresholds)
	mux.HandleFunc("/thresholds/latest", s.latestThresholds)
	mux.HandleFunc("/reports", s.listReports)
	mux.HandleFunc("/config", s.showConfig)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// storeStatus maps a store error to an HTTP status.
func storeStatus(err error) int {
	if errors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := 0 // store default
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit, ok := s.limitParam(w, r)
	if !ok {
		return
	}
	runs, err := s.db.Runs.List(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve runs: %v", err))
		return
	}
	if err := json.NewEncoder(w).Encode(runs); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write runs")
		return
	}
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	runID := r.URL.Query().Get("id")
	if runID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'id' parameter")
		return
	}
	run, err := s.db.Runs.Get(runID)
	if err != nil {
		s.writeJSONError(w, storeStatus(err), fmt.Sprintf("Failed to retrieve run: %v", err))
		return
	}
	if err := json.NewEncoder(w).Encode(run); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write run")
		return
	}
}

func (s *Server) listTrials(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	runID := r.URL.Query().Get("run")
	if runID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'run' parameter")
		return
	}
	trials, err := s.db.Trials.ListByRun(runID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve trials: %v", err))
		return
	}
	if err := json.NewEncoder(w).Encode(trials); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write trials")
		return
	}
}

func (s *Server) showFront(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	runID := r.URL.Query().Get("run")
	if runID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'run' parameter")
		return
	}
	trials, err := s.db.Trials.FrontByRun(runID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve front: %v", err))
		return
	}
	if err := json.NewEncoder(w).Encode(trials); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write front")
		return
	}
}

// renderFront rebuilds the persisted Pareto front and renders it as an
// interactive scatter chart.
func (s *Server) renderFront(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID := r.URL.Query().Get("run")
	if runID == "" {
		http.Error(w, "Missing 'run' parameter", http.StatusBadRequest)
		return
	}
	rows, err := s.db.Trials.FrontByRun(runID)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to retrieve front: %v", err), http.StatusInternalServerError)
		return
	}

	// Stored front rows are already mutually non-dominated, so every
	// re-added trial is accepted.
	front := &optimize.Front{}
	for _, row := range rows {
		front.Add(optimize.Trial{
			Seq:        row.Seq,
			Thresholds: row.Thresholds,
			Objectives: optimize.Objectives{
				Automation: row.Automation,
				Precision:  row.Precision,
				Recall:     row.Recall,
			},
			Penalty: row.Penalty,
			Status:  optimize.TrialStatus(row.Status),
			Err:     row.Error,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := optimize.RenderFrontHTML(w, front, s.cfg.GetOptimizerConfig().Constraints); err != nil {
		log.Printf("failed to render front for run %s: %v", runID, err)
	}
}

// renderHistory charts the run's full trial history over sequence order.
func (s *Server) renderHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID := r.URL.Query().Get("run")
	if runID == "" {
		http.Error(w, "Missing 'run' parameter", http.StatusBadRequest)
		return
	}
	rows, err := s.db.Trials.ListByRun(runID)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to retrieve trials: %v", err), http.StatusInternalServerError)
		return
	}

	history := make([]optimize.Trial, len(rows))
	for i, row := range rows {
		history[i] = optimize.Trial{
			Seq:        row.Seq,
			Thresholds: row.Thresholds,
			Objectives: optimize.Objectives{
				Automation: row.Automation,
				Precision:  row.Precision,
				Recall:     row.Recall,
			},
			Penalty: row.Penalty,
			Status:  optimize.TrialStatus(row.Status),
			Err:     row.Error,
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := optimize.RenderHistoryHTML(w, history); err != nil {
		log.Printf("failed to render history for run %s: %v", runID, err)
	}
}

func (s *Server) listThresholds(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit, ok := s.limitParam(w, r)
	if !ok {
		return
	}
	records, err := s.db.Thresholds.List(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve threshold records: %v", err))
		return
	}
	if err := json.NewEncoder(w).Encode(records); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write threshold records")
		return
	}
}

func (s *Server) latestThresholds(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	record, err := s.db.Thresholds.Latest()
	if err != nil {
		s.writeJSONError(w, storeStatus(err), fmt.Sprintf("Failed to retrieve latest threshold record: %v", err))
		return
	}
	if err := json.NewEncoder(w).Encode(record); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write threshold record")
		return
	}
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit, ok := s.limitParam(w, r)
	if !ok {
		return
	}
	reports, err := s.db.Reports.List(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve reports: %v", err))
		return
	}
	if err := json.NewEncoder(w).Encode(reports); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write reports")
		return
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	resolved := map[string]interface{}{
		"options":   s.cfg.GetPipelineOptions(),
		"optimizer": s.cfg.GetOptimizerConfig(),
	}
	if err := json.NewEncoder(w).Encode(resolved); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write config")
		return
	}
}

func handleServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Engine configuration file (JSON)")
	listen := fs.String("listen", "", "Listen address (default: config listen address)")
	admin := fs.Bool("admin", false, "Mount the admin debugging routes")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	addr := *listen
	if addr == "" {
		addr = cfg.GetListenAddr()
	}

	database, err := openRunsDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()

	// mount the admin debugging routes (accessible only in dev mode or over Tailscale)
	if *admin || cfg.GetAdminRoutes() {
		database.AttachAdminRoutes(mux)
	}

	apiMux := NewServer(database, cfg).ServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", apiMux))

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("got request %q", r.URL.Path)
		mux.ServeHTTP(w, r)
	})

	server := &http.Server{
		Addr:    addr,
		Handler: h,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	log.Printf("graceful shutdown complete")
	return nil
}
