package documents

import (
	"time"

	"github.com/google/uuid"

	"github.com/meditwin-platform/meditwin/internal/extraction"
	"github.com/meditwin-platform/meditwin/internal/inference"
)

// Result is the durable record of one pipeline run: what was extracted, the
// context the model saw, and the structured analysis it produced. Rows are
// append-only; the audit history is never rewritten.
type Result struct {
	ID                uuid.UUID           `json:"id"`
	RequestID         string              `json:"request_id"`
	PatientID         uuid.UUID           `json:"patient_id"`
	QueryText         string              `json:"query_text,omitempty"`
	Entities          []extraction.Entity `json:"entities,omitempty"`
	CompressedContext string              `json:"compressed_context,omitempty"`
	Analysis          inference.Analysis  `json:"analysis"`
	IsFallback        bool                `json:"is_fallback"`
	Embedding         []float32           `json:"-"`
	CreatedAt         time.Time           `json:"created_at"`
}

// SimilarFinding is a prior analysis ranked by embedding similarity.
type SimilarFinding struct {
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}
