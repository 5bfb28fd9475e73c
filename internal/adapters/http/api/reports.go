package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/okian/kickoff/internal/domain/model"
)

// ReportsHandler accepts performance reports for asynchronous application.
type ReportsHandler struct {
	deps ReportDependencies
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(deps ReportDependencies) *ReportsHandler {
	return &ReportsHandler{deps: deps}
}

// reportRequest is the body of POST /performance.
type reportRequest struct {
	ReportID    string    `json:"report_id"`
	PlayerID    string    `json:"player_id"`
	PowerRating float64   `json:"power_rating"`
	GoalThreat  float64   `json:"goal_threat"`
	PlayedAt    time.Time `json:"played_at"`
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// HandlePostReport handles POST /performance requests. Accepted reports get
// 202; a report id seen before gets 200 and is not applied again.
func (h *ReportsHandler) HandlePostReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_report"
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	report := model.PerformanceReport(req)
	if err := report.Validate(); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	accepted, err := h.deps.SubmitReport(r.Context(), report)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if !accepted {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
