package orchestrator

import (
	"encoding/json"
	"net/http"

	"github.com/meditwin-platform/meditwin/internal/api"
)

// Handler exposes the pipeline over HTTP.
type Handler struct {
	orch *Orchestrator
}

func NewHandler(orch *Orchestrator) *Handler {
	return &Handler{orch: orch}
}

// Analyze runs the pipeline for one request. Degraded runs still answer
// 200; only malformed requests are rejected.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	resp, err := h.orch.Run(r.Context(), &req)
	if err != nil {
		if IsValidationError(err) {
			api.HandleError(w, api.NewValidationError(err.Error()))
			return
		}
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, resp)
}
