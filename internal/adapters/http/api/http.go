// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/kickoff/internal/app"
	"github.com/okian/kickoff/internal/domain/errs"
	"github.com/okian/kickoff/internal/domain/lineup"
	"github.com/okian/kickoff/internal/domain/model"
	"github.com/okian/kickoff/internal/domain/scoring"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	FormationDependencies
	SessionDependencies
	ReportDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	formationHandler *FormationHandler
	sessionsHandler  *SessionsHandler
	reportsHandler   *ReportsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		formationHandler: NewFormationHandler(deps),
		sessionsHandler:  NewSessionsHandler(deps),
		reportsHandler:   NewReportsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /formation", MetricsMiddleware(s.formationHandler.HandleGetFormation, "formation"))

	mux.HandleFunc("POST /sessions", MetricsMiddleware(s.sessionsHandler.HandleCreate, "sessions"))
	mux.HandleFunc("GET /sessions/{id}", MetricsMiddleware(s.sessionsHandler.HandleGet, "session"))
	mux.HandleFunc("POST /sessions/{id}/moves", MetricsMiddleware(s.sessionsHandler.HandleMove, "moves"))
	mux.HandleFunc("POST /sessions/{id}/clear", MetricsMiddleware(s.sessionsHandler.HandleClear, "clear"))
	mux.HandleFunc("POST /sessions/{id}/rebalance", MetricsMiddleware(s.sessionsHandler.HandleRebalance, "rebalance"))
	mux.HandleFunc("GET /sessions/{id}/compare", MetricsMiddleware(s.sessionsHandler.HandleCompare, "compare"))

	mux.HandleFunc("POST /performance", MetricsMiddleware(s.reportsHandler.HandlePostReport, "performance"))
}

// FormationDependencies derives formations.
type FormationDependencies interface {
	DeriveFormation(ctx context.Context, teamSize int) (model.Formation, error)
}

// SessionDependencies balances and edits sessions.
type SessionDependencies interface {
	BalanceTeams(ctx context.Context, req service.BalanceRequest) (service.Balanced, error)
	Rebalance(ctx context.Context, sessionID string, req service.BalanceRequest) (service.Balanced, error)
	Session(ctx context.Context, sessionID string) (model.Assignment, error)
	MoveOrSwap(ctx context.Context, sessionID string, req lineup.MoveRequest) (model.Assignment, error)
	ClearAssignment(ctx context.Context, sessionID string) (model.Assignment, error)
	CompareTeams(ctx context.Context, sessionID string, weights scoring.GroupWeights) (service.Comparison, error)
}

// ReportDependencies queues performance reports.
type ReportDependencies interface {
	SubmitReport(ctx context.Context, r model.PerformanceReport) (bool, error)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure translates an engine error into its status code.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}

func statusFor(err error) (int, string) {
	if errors.Is(err, service.ErrNotStarted) {
		return http.StatusServiceUnavailable, "not_started"
	}
	switch errs.KindOf(err) {
	case errs.ErrValidation:
		return http.StatusBadRequest, "bad_request"
	case errs.ErrNotFound:
		return http.StatusNotFound, "not_found"
	case errs.ErrConflict:
		return http.StatusConflict, "conflict"
	case errs.ErrPersistence:
		return http.StatusServiceUnavailable, "persistence_unavailable"
	case errs.ErrIncompleteState:
		return http.StatusUnprocessableEntity, "incomplete"
	case errs.ErrOverloaded:
		return http.StatusTooManyRequests, "backpressure"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
