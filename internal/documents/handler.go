package documents

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meditwin-platform/meditwin/internal/api"
)

// Handler handles analysis-history HTTP endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Latest returns the newest analysis for a patient.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(chi.URLParam(r, "patientID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid patient ID"))
		return
	}

	res, err := h.svc.Latest(r.Context(), patientID)
	if err != nil {
		slog.Error("getting latest analysis", "error", err, "patient_id", patientID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if res == nil {
		api.HandleError(w, api.NewNotFoundError("no analyses found"))
		return
	}

	api.JSON(w, http.StatusOK, res)
}

// List returns the paginated analysis audit history, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(chi.URLParam(r, "patientID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid patient ID"))
		return
	}

	page := 1
	pageSize := 20
	if p := r.URL.Query().Get("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	results, totalCount, err := h.svc.List(r.Context(), patientID, page, pageSize)
	if err != nil {
		slog.Error("listing analyses", "error", err, "patient_id", patientID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, results, totalCount, page, pageSize)
}
