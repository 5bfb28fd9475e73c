package api

import (
	"net/http"
	"strconv"

	"github.com/okian/kickoff/internal/domain/model"
)

// FormationHandler handles formation lookups.
type FormationHandler struct {
	deps FormationDependencies
}

// NewFormationHandler creates a new formation handler.
func NewFormationHandler(deps FormationDependencies) *FormationHandler {
	return &FormationHandler{deps: deps}
}

type formationResponse struct {
	Size      int             `json:"size"`
	Layout    string          `json:"layout"`
	Formation model.Formation `json:"formation"`
}

// HandleGetFormation handles GET /formation?size=N requests.
func (h *FormationHandler) HandleGetFormation(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_formation"
	size, err := strconv.Atoi(r.URL.Query().Get("size"))
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	f, err := h.deps.DeriveFormation(r.Context(), size)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, formationResponse{Size: size, Layout: f.String(), Formation: f})
}
