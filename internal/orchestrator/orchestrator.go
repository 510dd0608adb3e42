package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meditwin-platform/meditwin/internal/biomarkers"
	"github.com/meditwin-platform/meditwin/internal/compressor"
	"github.com/meditwin-platform/meditwin/internal/documents"
	"github.com/meditwin-platform/meditwin/internal/extraction"
	"github.com/meditwin-platform/meditwin/internal/inference"
	"github.com/meditwin-platform/meditwin/internal/memory"
	"github.com/meditwin-platform/meditwin/internal/metrics"
	"github.com/meditwin-platform/meditwin/internal/middleware"
	inats "github.com/meditwin-platform/meditwin/internal/nats"
)

// Collaborator slices. The orchestrator holds interfaces so tests can count
// and fail individual stages.
type (
	MemoryService interface {
		Load(ctx context.Context, patientID uuid.UUID) memory.Snapshot
		RecordExchange(ctx context.Context, patientID uuid.UUID, requestID, userText, agentText string) error
	}

	EntityExtractor interface {
		Extract(ctx context.Context, text string) ([]extraction.Entity, error)
	}

	BiomarkerReader interface {
		Get(ctx context.Context, patientID uuid.UUID) (*biomarkers.Snapshot, error)
	}

	Analyzer interface {
		Analyze(ctx context.Context, compressed compressor.Context, query string, policy inference.Policy) inference.Analysis
	}

	ResultStore interface {
		Persist(ctx context.Context, res *documents.Result) error
		SimilarFindings(ctx context.Context, patientID uuid.UUID, embedding []float32, limit int, threshold float64) []string
	}

	BiasSource interface {
		Bias() float64
	}

	AuditPublisher interface {
		PublishAuditEvent(ctx context.Context, event inats.AuditEvent) error
	}
)

// Options carries the tuning the pipeline needs per run.
type Options struct {
	BasePolicy          inference.Policy
	SimilarFindings     int
	SimilarityThreshold float64
}

// Orchestrator drives a request through the analysis pipeline. After
// validation it is fail-open end to end: collaborator failures degrade the
// result but the caller always receives a response.
type Orchestrator struct {
	validator  *Validator
	memory     MemoryService
	extractor  EntityExtractor
	biomarkers BiomarkerReader
	builder    *compressor.Builder
	analyzer   Analyzer
	results    ResultStore
	bias       BiasSource
	publisher  AuditPublisher // nil when messaging is disabled
	opts       Options
}

func New(
	mem MemoryService,
	extractor EntityExtractor,
	markers BiomarkerReader,
	builder *compressor.Builder,
	analyzer Analyzer,
	results ResultStore,
	bias BiasSource,
	publisher AuditPublisher,
	opts Options,
) *Orchestrator {
	return &Orchestrator{
		validator:  NewValidator(),
		memory:     mem,
		extractor:  extractor,
		biomarkers: markers,
		builder:    builder,
		analyzer:   analyzer,
		results:    results,
		bias:       bias,
		publisher:  publisher,
		opts:       opts,
	}
}

func stage(s Stage) {
	metrics.PipelineStageTotal.WithLabelValues(string(s)).Inc()
}

// Run executes the pipeline. The only error it ever returns is a
// ValidationError, raised before any outbound call is made.
func (o *Orchestrator) Run(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResponse, error) {
	stage(StageReceived)

	if err := o.validator.Validate(req); err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	patientID := uuid.MustParse(req.PatientID)

	requestID := middleware.GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	log := slog.With("request_id", requestID, "patient_id", patientID)

	snap := o.memory.Load(ctx, patientID)
	stage(StageContextLoaded)

	var entities []extraction.Entity
	if strings.TrimSpace(req.AttachedDocument) != "" {
		extracted, err := o.extractor.Extract(ctx, req.AttachedDocument)
		if err != nil {
			log.Warn("entity extraction unavailable, continuing without entities", "error", err)
			metrics.FallbacksTotal.WithLabelValues("extraction").Inc()
		} else {
			entities = extracted
		}
		stage(StageEntitiesExtracted)
	}

	markers, err := o.biomarkers.Get(ctx, patientID)
	if err != nil {
		log.Warn("loading biomarkers failed, continuing without them", "error", err)
		metrics.FallbacksTotal.WithLabelValues("biomarkers").Inc()
		markers = nil
	}

	var similar []string
	if len(req.QueryEmbedding) > 0 {
		similar = o.results.SimilarFindings(ctx, patientID, req.QueryEmbedding,
			o.opts.SimilarFindings, o.opts.SimilarityThreshold)
	}

	compressed := o.builder.Build(compressor.BuildInput{
		Profile:         o.effectiveProfile(snap.Profile, req),
		Summary:         snap.Summary,
		Biomarkers:      markers,
		Turns:           snap.RecentTurns,
		Entities:        entities,
		SimilarFindings: similar,
	})
	stage(StageContextCompressed)

	query := o.effectiveQuery(req)
	policy := o.opts.BasePolicy.WithBias(o.bias.Bias())
	analysis := o.analyzer.Analyze(ctx, compressed, query, policy)
	stage(StageAnalyzed)

	result := &documents.Result{
		RequestID:         requestID,
		PatientID:         patientID,
		QueryText:         query,
		Entities:          entities,
		CompressedContext: compressed.Render(),
		Analysis:          analysis,
		IsFallback:        analysis.IsFallback,
		Embedding:         req.QueryEmbedding,
		CreatedAt:         time.Now(),
	}
	o.persist(ctx, log, result)

	if err := o.memory.RecordExchange(ctx, patientID, requestID, query, analysis.PrimaryAnalysis); err != nil {
		log.Warn("recording conversation turns failed", "error", err)
		metrics.FallbacksTotal.WithLabelValues("memory").Inc()
	}

	o.audit(ctx, log, result, snap.Degraded)

	stage(StageResponded)
	if analysis.IsFallback {
		metrics.PipelineRunsTotal.WithLabelValues("fallback").Inc()
	} else {
		metrics.PipelineRunsTotal.WithLabelValues("ok").Inc()
	}

	return &AnalyzeResponse{
		RequestID:          requestID,
		ResponseText:       analysis.PrimaryAnalysis,
		StructuredAnalysis: analysis,
		IsFallback:         analysis.IsFallback,
	}, nil
}

// effectiveProfile overlays request-supplied history and medications onto
// the stored profile for this run only; the stored profile is not modified.
func (o *Orchestrator) effectiveProfile(profile memory.PatientProfile, req *AnalyzeRequest) memory.PatientProfile {
	if len(req.MedicalHistory) > 0 {
		profile.Conditions = appendMissing(profile.Conditions, req.MedicalHistory)
	}
	if len(req.CurrentMedications) > 0 {
		profile.Medications = appendMissing(profile.Medications, req.CurrentMedications)
	}
	return profile
}

func appendMissing(base, extra []string) []string {
	out := append([]string(nil), base...)
	for _, item := range extra {
		found := false
		for _, existing := range base {
			if strings.EqualFold(existing, item) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, item)
		}
	}
	return out
}

func (o *Orchestrator) effectiveQuery(req *AnalyzeRequest) string {
	query := strings.TrimSpace(req.QueryText)
	if len(req.Symptoms) > 0 {
		symptoms := "Reported symptoms: " + strings.Join(req.Symptoms, ", ")
		if query == "" {
			return symptoms
		}
		return query + "\n" + symptoms
	}
	if query == "" {
		return "Analyze the attached document."
	}
	return query
}

// persist writes the run record, retrying once. A run that cannot be
// persisted is logged and still responded to.
func (o *Orchestrator) persist(ctx context.Context, log *slog.Logger, result *documents.Result) {
	err := o.results.Persist(ctx, result)
	if err != nil {
		log.Warn("persisting analysis result failed, retrying once", "error", err)
		err = o.results.Persist(ctx, result)
	}
	if err != nil {
		log.Error("persisting analysis result failed after retry", "error", err)
		metrics.FallbacksTotal.WithLabelValues("persistence").Inc()
		return
	}
	stage(StagePersisted)
}

func (o *Orchestrator) audit(ctx context.Context, log *slog.Logger, result *documents.Result, degraded bool) {
	if o.publisher == nil {
		return
	}
	severity := "info"
	if result.IsFallback || degraded {
		severity = "warn"
	}
	event := inats.AuditEvent{
		PatientID:  result.PatientID,
		RequestID:  result.RequestID,
		EventType:  "analysis_completed",
		Severity:   severity,
		IsFallback: result.IsFallback,
		Details:    string(result.Analysis.Severity) + "/" + string(result.Analysis.Priority),
		Timestamp:  time.Now(),
	}
	if err := o.publisher.PublishAuditEvent(ctx, event); err != nil {
		log.Warn("publishing audit event failed", "error", err)
	}
}
