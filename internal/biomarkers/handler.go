package biomarkers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meditwin-platform/meditwin/internal/api"
)

// Handler handles biomarker HTTP endpoints.
type Handler struct {
	repo     Repository
	validate *validator.Validate
}

func NewHandler(repo Repository) *Handler {
	return &Handler{
		repo:     repo,
		validate: validator.New(),
	}
}

// Get returns the patient's current biomarker snapshot.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(chi.URLParam(r, "patientID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid patient ID"))
		return
	}

	snapshot, err := h.repo.Get(r.Context(), patientID)
	if err != nil {
		slog.Error("getting biomarker snapshot", "error", err, "patient_id", patientID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if snapshot == nil {
		api.HandleError(w, api.NewNotFoundError("biomarker snapshot not found"))
		return
	}

	api.JSON(w, http.StatusOK, snapshot)
}

// Replace overwrites the patient's snapshot with the submitted metrics.
func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(chi.URLParam(r, "patientID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid patient ID"))
		return
	}

	var req ReplaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	snapshot := &Snapshot{
		PatientID:  patientID,
		Metrics:    req.Metrics,
		CapturedAt: time.Now(),
	}
	if err := h.repo.Replace(r.Context(), snapshot); err != nil {
		slog.Error("replacing biomarker snapshot", "error", err, "patient_id", patientID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, snapshot)
}
