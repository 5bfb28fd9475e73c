package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	service "github.com/okian/kickoff/internal/app"
	"github.com/okian/kickoff/internal/domain/balance"
	"github.com/okian/kickoff/internal/domain/lineup"
	"github.com/okian/kickoff/internal/domain/model"
	"github.com/okian/kickoff/internal/domain/scoring"
)

// SessionsHandler handles balancing sessions and their manual edits.
type SessionsHandler struct {
	deps SessionDependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

// balanceRequest is the body of POST /sessions and POST /sessions/{id}/rebalance.
type balanceRequest struct {
	PlayerIDs   []string             `json:"player_ids"`
	SizeA       int                  `json:"size_a"`
	SizeB       int                  `json:"size_b"`
	Strategy    string               `json:"strategy"`
	PowerWeight float64              `json:"power_weight"`
	GoalWeight  float64              `json:"goal_weight"`
	Weights     scoring.GroupWeights `json:"weights"`
}

func (b balanceRequest) validate() error {
	switch {
	case len(b.PlayerIDs) == 0:
		return errors.New("missing player_ids")
	case b.SizeA <= 0 || b.SizeB <= 0:
		return errors.New("size_a and size_b must be positive")
	case strings.TrimSpace(b.Strategy) == "":
		return errors.New("missing strategy")
	}
	return nil
}

// toService resolves the strategy name. Performance weights left at zero
// fall back to the configured ones.
func (b balanceRequest) toService() (service.BalanceRequest, error) {
	strategy, err := balance.ParseStrategy(b.Strategy)
	if err != nil {
		return service.BalanceRequest{}, err
	}
	if _, ok := strategy.(balance.Performance); ok {
		strategy = balance.Performance{PowerWeight: b.PowerWeight, GoalWeight: b.GoalWeight}
	}
	return service.BalanceRequest{
		PlayerIDs: b.PlayerIDs,
		SizeA:     b.SizeA,
		SizeB:     b.SizeB,
		Strategy:  strategy,
		Weights:   b.Weights,
	}, nil
}

// moveRequest is the body of POST /sessions/{id}/moves.
type moveRequest struct {
	RequestID string     `json:"request_id"`
	PlayerID  string     `json:"player_id"`
	Team      model.Team `json:"team"`
	Slot      int        `json:"slot"`
	IfVersion uint64     `json:"if_version"`
}

func (m moveRequest) validate() error {
	switch {
	case strings.TrimSpace(m.PlayerID) == "":
		return errors.New("missing player_id")
	case m.Team != model.Unassigned && m.Slot <= 0:
		return errors.New("slot must be positive")
	}
	return nil
}

// HandleCreate handles POST /sessions requests.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_session"
	req, ok := decodeBalance(w, r, op)
	if !ok {
		return
	}
	res, err := h.deps.BalanceTeams(r.Context(), req)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// HandleRebalance handles POST /sessions/{id}/rebalance requests.
func (h *SessionsHandler) HandleRebalance(w http.ResponseWriter, r *http.Request) {
	const op = "api.rebalance_session"
	req, ok := decodeBalance(w, r, op)
	if !ok {
		return
	}
	res, err := h.deps.Rebalance(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleGet handles GET /sessions/{id} requests.
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	a, err := h.deps.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleMove handles POST /sessions/{id}/moves requests.
func (h *SessionsHandler) HandleMove(w http.ResponseWriter, r *http.Request) {
	const op = "api.move"
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	a, err := h.deps.MoveOrSwap(r.Context(), r.PathValue("id"), lineup.MoveRequest{
		RequestID: req.RequestID,
		PlayerID:  req.PlayerID,
		Team:      req.Team,
		Slot:      req.Slot,
		IfVersion: req.IfVersion,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleClear handles POST /sessions/{id}/clear requests.
func (h *SessionsHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	a, err := h.deps.ClearAssignment(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleCompare handles GET /sessions/{id}/compare requests. The optional
// defense, midfield and attack query parameters override the group weights.
func (h *SessionsHandler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	const op = "api.compare"
	weights, err := parseWeights(r)
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.CompareTeams(r.Context(), r.PathValue("id"), weights)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func decodeBalance(w http.ResponseWriter, r *http.Request, op string) (service.BalanceRequest, bool) {
	var body balanceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return service.BalanceRequest{}, false
	}
	if err := body.validate(); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return service.BalanceRequest{}, false
	}
	req, err := body.toService()
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return service.BalanceRequest{}, false
	}
	return req, true
}

func parseWeights(r *http.Request) (scoring.GroupWeights, error) {
	q := r.URL.Query()
	var w scoring.GroupWeights
	for _, p := range []struct {
		key string
		dst *float64
	}{
		{"defense", &w.Defense},
		{"midfield", &w.Midfield},
		{"attack", &w.Attack},
	} {
		raw := q.Get(p.key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return scoring.GroupWeights{}, errors.New("invalid " + p.key + " weight")
		}
		*p.dst = v
	}
	return w, nil
}
