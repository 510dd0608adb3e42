package biomarkers

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot holds the latest-known value per metric for one patient.
// Snapshots are replaced wholesale on each update (last-write-wins).
type Snapshot struct {
	PatientID  uuid.UUID          `json:"patient_id"`
	Metrics    map[string]float64 `json:"metrics"`
	CapturedAt time.Time          `json:"captured_at"`
}

// ReplaceRequest is the API shape for wholesale snapshot replacement.
type ReplaceRequest struct {
	Metrics map[string]float64 `json:"metrics" validate:"required,min=1"`
}
