package feedback

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meditwin-platform/meditwin/internal/api"
	inats "github.com/meditwin-platform/meditwin/internal/nats"
)

// FeedbackPublisher is the slice of the NATS publisher the handler needs.
type FeedbackPublisher interface {
	PublishFeedback(ctx context.Context, event inats.FeedbackSubmitted) error
}

// Handler handles feedback HTTP endpoints. When no publisher is wired
// (messaging disabled), events are applied synchronously instead.
type Handler struct {
	publisher FeedbackPublisher
	processor *Processor
	tracker   *Tracker
	validate  *validator.Validate
}

func NewHandler(publisher FeedbackPublisher, processor *Processor, tracker *Tracker) *Handler {
	return &Handler{
		publisher: publisher,
		processor: processor,
		tracker:   tracker,
		validate:  validator.New(),
	}
}

// Submit accepts an outcome report for a past analysis. The report is
// accepted (202) as soon as it is queued; persistence and bias update happen
// in the consumer.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid patient ID"))
		return
	}

	event := inats.FeedbackSubmitted{
		RequestID:   req.RequestID,
		PatientID:   patientID,
		Outcome:     req.Outcome,
		SubmittedAt: time.Now(),
	}

	if h.publisher != nil {
		if err := h.publisher.PublishFeedback(r.Context(), event); err != nil {
			slog.Error("publishing feedback", "error", err, "request_id", req.RequestID)
			api.HandleError(w, api.ErrInternalServer)
			return
		}
	} else {
		if err := h.processor.Process(r.Context(), event); err != nil {
			slog.Error("processing feedback", "error", err, "request_id", req.RequestID)
			api.HandleError(w, api.ErrInternalServer)
			return
		}
	}

	api.JSONMessage(w, http.StatusAccepted, "feedback accepted")
}

// Bias exposes the current reward bias for observability.
func (h *Handler) Bias(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, map[string]float64{"bias": h.tracker.Bias()})
}
