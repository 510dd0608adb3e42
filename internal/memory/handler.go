package memory

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meditwin-platform/meditwin/internal/api"
)

// Handler handles patient memory HTTP endpoints.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

func patientIDParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "patientID"))
	return id, err == nil
}

// GetProfile returns the patient's profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	patientID, ok := patientIDParam(r)
	if !ok {
		api.HandleError(w, api.NewBadRequestError("invalid patient ID"))
		return
	}

	profile, err := h.svc.GetProfile(r.Context(), patientID)
	if err != nil {
		slog.Error("getting profile", "error", err, "patient_id", patientID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if profile == nil {
		api.HandleError(w, api.NewNotFoundError("profile not found"))
		return
	}

	api.JSON(w, http.StatusOK, profile)
}

// UpdateProfile replaces the patient's profile.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	patientID, ok := patientIDParam(r)
	if !ok {
		api.HandleError(w, api.NewBadRequestError("invalid patient ID"))
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	profile, err := h.svc.UpsertProfile(r.Context(), patientID, &req)
	if err != nil {
		slog.Error("upserting profile", "error", err, "patient_id", patientID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, profile)
}

// History returns paginated conversation turns, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	patientID, ok := patientIDParam(r)
	if !ok {
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

	turns, totalCount, err := h.svc.History(r.Context(), patientID, page, pageSize)
	if err != nil {
		slog.Error("listing history", "error", err, "patient_id", patientID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, turns, totalCount, page, pageSize)
}

// GetSummary returns the compacted memory summary.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	patientID, ok := patientIDParam(r)
	if !ok {
		api.HandleError(w, api.NewBadRequestError("invalid patient ID"))
		return
	}

	summary, err := h.svc.Summary(r.Context(), patientID)
	if err != nil {
		slog.Error("getting summary", "error", err, "patient_id", patientID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if summary == nil {
		api.HandleError(w, api.NewNotFoundError("summary not found"))
		return
	}

	api.JSON(w, http.StatusOK, summary)
}
