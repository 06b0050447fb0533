// Package server provides the HTTP operations surface: health and recovery
// state, plan catalog views, manual trigger/cancel and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/remedy/internal/core/domain"
)

// Core is the engine surface the server exposes over HTTP.
type Core interface {
	GetAllServiceHealth() map[string]domain.ServiceHealth
	GetActiveRecoveries() []domain.RecoveryExecution
	RecentRecoveries(ctx context.Context, limit int) ([]domain.RecoveryExecution, error)
	GetRecoveryPlans() []domain.RecoveryPlan
	GetStatistics() domain.Statistics
	TriggerRecovery(service, cause string, strategy domain.Strategy) (domain.RecoveryExecution, bool, error)
	CancelRecovery(id string) (domain.RecoveryExecution, bool)
}

// Server exposes the engine over HTTP.
type Server struct {
	core   Core
	server *http.Server
}

// New creates a server listening on the given port.
func New(core Core, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		core: core,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.HandleFunc("/recoveries", s.handleRecoveries)
	mux.HandleFunc("/recoveries/history", s.handleHistory)
	mux.HandleFunc("/recoveries/trigger", s.handleTrigger)
	mux.HandleFunc("/recoveries/cancel", s.handleCancel)
	mux.HandleFunc("/plans", s.handlePlans)
	mux.HandleFunc("/statistics", s.handleStatistics)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	services := s.core.GetAllServiceHealth()

	// Aggregate status (worst case wins).
	status := "healthy"
	critical := false
	for _, h := range services {
		switch h.Status {
		case domain.StatusFailed, domain.StatusUnhealthy:
			critical = true
		case domain.StatusDegraded, domain.StatusRecovering:
			status = "degraded"
		}
	}
	if critical {
		status = "critical"
	}

	w.Header().Set("Content-Type", "application/json")
	if critical {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.core.GetAllServiceHealth())
}

func (s *Server) handleRecoveries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.core.GetActiveRecoveries())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}

	execs, err := s.core.RecentRecoveries(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, execs)
}

type triggerRequest struct {
	Service  string `json:"service"`
	Cause    string `json:"cause"`
	Strategy string `json:"strategy,omitempty"`
}

type triggerResponse struct {
	Execution domain.RecoveryExecution `json:"execution"`
	Created   bool                     `json:"created"`
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Service == "" {
		http.Error(w, "service is required", http.StatusBadRequest)
		return
	}
	if req.Cause == "" {
		req.Cause = "manual trigger"
	}

	exec, created, err := s.core.TriggerRecovery(req.Service, req.Cause, domain.Strategy(req.Strategy))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if created {
		w.WriteHeader(http.StatusCreated)
	}
	writeJSON(w, triggerResponse{Execution: exec, Created: created})
}

type cancelRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	exec, ok := s.core.CancelRecovery(req.ID)
	if !ok {
		http.Error(w, "execution not found", http.StatusNotFound)
		return
	}
	writeJSON(w, exec)
}

// planView is the JSON shape of a plan; step functions are not serializable.
type planView struct {
	ID                string            `json:"id"`
	Service           string            `json:"service"`
	Strategy          domain.Strategy   `json:"strategy"`
	Priority          int               `json:"priority"`
	EstimatedDuration time.Duration     `json:"estimated_duration"`
	Impact            domain.UserImpact `json:"impact"`
	Steps             []stepView        `json:"steps"`
	Timeout           time.Duration     `json:"timeout"`
}

type stepView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	plans := s.core.GetRecoveryPlans()
	views := make([]planView, 0, len(plans))
	for _, p := range plans {
		v := planView{
			ID:                p.ID,
			Service:           p.Service,
			Strategy:          p.Strategy,
			Priority:          p.Priority,
			EstimatedDuration: p.EstimatedDuration,
			Impact:            p.Impact,
			Timeout:           p.Timeout,
		}
		for _, step := range p.Steps {
			v.Steps = append(v.Steps, stepView{Name: step.Name, Description: step.Description})
		}
		views = append(views, v)
	}
	writeJSON(w, views)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.core.GetStatistics())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
