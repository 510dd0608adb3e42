package orchestrator

import (
	"github.com/meditwin-platform/meditwin/internal/inference"
)

// Stage names the pipeline checkpoints a request moves through. Every
// accepted request terminates at RESPONDED regardless of how degraded the
// run was.
type Stage string

const (
	StageReceived          Stage = "RECEIVED"
	StageContextLoaded     Stage = "CONTEXT_LOADED"
	StageEntitiesExtracted Stage = "ENTITIES_EXTRACTED"
	StageContextCompressed Stage = "CONTEXT_COMPRESSED"
	StageAnalyzed          Stage = "ANALYZED"
	StagePersisted         Stage = "PERSISTED"
	StageResponded         Stage = "RESPONDED"
)

// AnalyzeRequest is the pipeline entry payload.
type AnalyzeRequest struct {
	PatientID          string    `json:"patient_id" validate:"required,uuid"`
	QueryText          string    `json:"query_text" validate:"omitempty,max=8000"`
	AttachedDocument   string    `json:"attached_document" validate:"omitempty,max=65536"`
	Symptoms           []string  `json:"symptoms" validate:"omitempty,dive,min=1"`
	MedicalHistory     []string  `json:"medical_history" validate:"omitempty,dive,min=1"`
	CurrentMedications []string  `json:"current_medications" validate:"omitempty,dive,min=1"`
	QueryEmbedding     []float32 `json:"query_embedding" validate:"omitempty,max=4096"`
}

// AnalyzeResponse is what the caller gets back. It is always populated:
// degraded runs answer with fallback content, never with an error.
type AnalyzeResponse struct {
	RequestID          string             `json:"request_id"`
	ResponseText       string             `json:"response_text"`
	StructuredAnalysis inference.Analysis `json:"structured_analysis"`
	IsFallback         bool               `json:"is_fallback"`
}
