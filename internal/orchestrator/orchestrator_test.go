package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meditwin-platform/meditwin/internal/biomarkers"
	"github.com/meditwin-platform/meditwin/internal/compressor"
	"github.com/meditwin-platform/meditwin/internal/documents"
	"github.com/meditwin-platform/meditwin/internal/extraction"
	"github.com/meditwin-platform/meditwin/internal/inference"
	"github.com/meditwin-platform/meditwin/internal/memory"
	inats "github.com/meditwin-platform/meditwin/internal/nats"
)

// Counting stubs. Every collaborator counts its calls so the
// zero-outbound-calls property of rejected requests can be asserted.

type stubMemory struct {
	loadCalls   int
	recordCalls int
	recordErr   error
	snapshot    memory.Snapshot
	lastUser    string
	lastAgent   string
}

func (m *stubMemory) Load(_ context.Context, patientID uuid.UUID) memory.Snapshot {
	m.loadCalls++
	snap := m.snapshot
	snap.Profile.PatientID = patientID
	return snap
}

func (m *stubMemory) RecordExchange(_ context.Context, _ uuid.UUID, _, userText, agentText string) error {
	m.recordCalls++
	m.lastUser = userText
	m.lastAgent = agentText
	return m.recordErr
}

type stubExtractor struct {
	calls    int
	entities []extraction.Entity
	err      error
	lastText string
}

func (e *stubExtractor) Extract(_ context.Context, text string) ([]extraction.Entity, error) {
	e.calls++
	e.lastText = text
	return e.entities, e.err
}

type stubBiomarkers struct {
	calls    int
	snapshot *biomarkers.Snapshot
	err      error
}

func (b *stubBiomarkers) Get(_ context.Context, _ uuid.UUID) (*biomarkers.Snapshot, error) {
	b.calls++
	return b.snapshot, b.err
}

type stubAnalyzer struct {
	calls      int
	analysis   inference.Analysis
	lastCtx    compressor.Context
	lastQuery  string
	lastPolicy inference.Policy
}

func (a *stubAnalyzer) Analyze(_ context.Context, compressed compressor.Context, query string, policy inference.Policy) inference.Analysis {
	a.calls++
	a.lastCtx = compressed
	a.lastQuery = query
	a.lastPolicy = policy
	return a.analysis
}

type stubResults struct {
	persistCalls int
	persistErrs  []error
	searchCalls  int
	findings     []string
	persisted    []*documents.Result
}

func (r *stubResults) Persist(_ context.Context, res *documents.Result) error {
	r.persistCalls++
	if len(r.persistErrs) > 0 {
		err := r.persistErrs[0]
		r.persistErrs = r.persistErrs[1:]
		if err != nil {
			return err
		}
	}
	copied := *res
	r.persisted = append(r.persisted, &copied)
	return nil
}

func (r *stubResults) SimilarFindings(_ context.Context, _ uuid.UUID, _ []float32, _ int, _ float64) []string {
	r.searchCalls++
	return r.findings
}

type stubBias struct{ bias float64 }

func (b *stubBias) Bias() float64 { return b.bias }

type stubPublisher struct {
	calls  int
	events []inats.AuditEvent
}

func (p *stubPublisher) PublishAuditEvent(_ context.Context, event inats.AuditEvent) error {
	p.calls++
	p.events = append(p.events, event)
	return nil
}

type fixture struct {
	orch       *Orchestrator
	memory     *stubMemory
	extractor  *stubExtractor
	biomarkers *stubBiomarkers
	analyzer   *stubAnalyzer
	results    *stubResults
	publisher  *stubPublisher
}

func newFixture() *fixture {
	f := &fixture{
		memory:     &stubMemory{},
		extractor:  &stubExtractor{},
		biomarkers: &stubBiomarkers{},
		analyzer: &stubAnalyzer{analysis: inference.Analysis{
			PrimaryAnalysis: "All values within expected ranges.",
			Confidence:      88,
			Severity:        inference.SeverityGood,
			Priority:        inference.PriorityLow,
		}},
		results:   &stubResults{},
		publisher: &stubPublisher{},
	}
	policy := inference.Policy{
		Version:           1,
		DefaultConfidence: 75,
		DefaultSeverity:   inference.SeverityModerate,
		ElevatedSeverity:  inference.SeverityConcerning,
		DefaultPriority:   inference.PriorityMedium,
		BiasCutoff:        -0.3,
	}
	f.orch = New(f.memory, f.extractor, f.biomarkers, compressor.NewBuilder(300, 6),
		f.analyzer, f.results, &stubBias{}, f.publisher,
		Options{BasePolicy: policy, SimilarFindings: 3, SimilarityThreshold: 0.7})
	return f
}

func TestRun_RejectedRequestMakesNoOutboundCalls(t *testing.T) {
	f := newFixture()

	resp, err := f.orch.Run(context.Background(), &AnalyzeRequest{QueryText: "hi"})

	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Nil(t, resp)
	assert.Zero(t, f.memory.loadCalls)
	assert.Zero(t, f.extractor.calls)
	assert.Zero(t, f.biomarkers.calls)
	assert.Zero(t, f.analyzer.calls)
	assert.Zero(t, f.results.persistCalls)
	assert.Zero(t, f.publisher.calls)
}

func TestRun_HappyPath(t *testing.T) {
	f := newFixture()
	patientID := uuid.New()

	resp, err := f.orch.Run(context.Background(), &AnalyzeRequest{
		PatientID: patientID.String(),
		QueryText: "how am I doing?",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, "All values within expected ranges.", resp.ResponseText)
	assert.False(t, resp.IsFallback)
	assert.Equal(t, inference.SeverityGood, resp.StructuredAnalysis.Severity)

	assert.Equal(t, 1, f.memory.loadCalls)
	assert.Equal(t, 1, f.analyzer.calls)
	assert.Equal(t, 1, f.results.persistCalls)
	assert.Equal(t, 1, f.memory.recordCalls)
	assert.Equal(t, 1, f.publisher.calls)

	// No document attached, so extraction never ran.
	assert.Zero(t, f.extractor.calls)

	require.Len(t, f.results.persisted, 1)
	assert.Equal(t, resp.RequestID, f.results.persisted[0].RequestID)
	assert.Equal(t, patientID, f.results.persisted[0].PatientID)
}

func TestRun_DocumentEntitiesReachTheModel(t *testing.T) {
	f := newFixture()
	f.extractor.entities = []extraction.Entity{
		{Text: "BRCA1", Category: extraction.CategoryGene, Score: 0.99},
		{Text: "TP53", Category: extraction.CategoryGene, Score: 0.97},
	}

	resp, err := f.orch.Run(context.Background(), &AnalyzeRequest{
		PatientID:        uuid.New().String(),
		QueryText:        "what do my genetics mean?",
		AttachedDocument: "Panel shows pathogenic variants in BRCA1 and TP53.",
	})

	require.NoError(t, err)
	assert.NotNil(t, resp)
	assert.Equal(t, 1, f.extractor.calls)
	assert.Contains(t, f.extractor.lastText, "BRCA1")

	rendered := f.analyzer.lastCtx.Render()
	assert.Contains(t, rendered, "entity.gene: BRCA1")
	assert.Contains(t, rendered, "entity.gene: TP53")

	require.Len(t, f.results.persisted, 1)
	assert.Len(t, f.results.persisted[0].Entities, 2)
}

func TestRun_ExtractionFailureDegradesQuietly(t *testing.T) {
	f := newFixture()
	f.extractor.err = extraction.ErrUnavailable

	resp, err := f.orch.Run(context.Background(), &AnalyzeRequest{
		PatientID:        uuid.New().String(),
		AttachedDocument: "some report",
	})

	require.NoError(t, err)
	assert.NotNil(t, resp)
	assert.Equal(t, 1, f.analyzer.calls)
	assert.NotContains(t, f.analyzer.lastCtx.Render(), "entity.")
}

func TestRun_BiomarkersFlowIntoContext(t *testing.T) {
	f := newFixture()
	f.biomarkers.snapshot = &biomarkers.Snapshot{
		Metrics: map[string]float64{"hba1c": 6.8},
	}

	_, err := f.orch.Run(context.Background(), &AnalyzeRequest{
		PatientID: uuid.New().String(),
		QueryText: "how is my sugar control?",
	})

	require.NoError(t, err)
	assert.Contains(t, f.analyzer.lastCtx.Render(), "biomarker.hba1c: 6.8")
}

func TestRun_SummaryFlowsIntoContext(t *testing.T) {
	f := newFixture()
	f.memory.snapshot.Summary = memory.MemorySummary{
		Topics:      []string{"sleep", "glucose"},
		Preferences: map[string]string{"exercise": "evening walks"},
		HealthGoals: []string{"lower hba1c below 6.5"},
	}

	_, err := f.orch.Run(context.Background(), &AnalyzeRequest{
		PatientID: uuid.New().String(),
		QueryText: "am I on track?",
	})

	require.NoError(t, err)
	rendered := f.analyzer.lastCtx.Render()
	assert.Contains(t, rendered, "health_goals: lower hba1c below 6.5")
	assert.Contains(t, rendered, "preference.exercise: evening walks")
	assert.Contains(t, rendered, "recent_topics: sleep, glucose")
}

func TestRun_BiomarkerFailureDegradesQuietly(t *testing.T) {
	f := newFixture()
	f.biomarkers.err = errors.New("db down")

	resp, err := f.orch.Run(context.Background(), &AnalyzeRequest{
		PatientID: uuid.New().String(),
		QueryText: "anything to flag?",
	})

	require.NoError(t, err)
	assert.NotNil(t, resp)
	assert.NotContains(t, f.analyzer.lastCtx.Render(), "biomarker.")
}

func TestRun_PersistRetriedOnceThenGivenUp(t *testing.T) {
	f := newFixture()
	f.results.persistErrs = []error{errors.New("deadlock"), errors.New("deadlock")}

	resp, err := f.orch.Run(context.Background(), &AnalyzeRequest{
		PatientID: uuid.New().String(),
		QueryText: "hello",
	})

	require.NoError(t, err)
	assert.NotNil(t, resp)
	assert.Equal(t, 2, f.results.persistCalls)
	assert.Empty(t, f.results.persisted)
}

func TestRun_PersistRetrySucceeds(t *testing.T) {
	f := newFixture()
	f.results.persistErrs = []error{errors.New("transient")}

	_, err := f.orch.Run(context.Background(), &AnalyzeRequest{
		PatientID: uuid.New().String(),
		QueryText: "hello",
	})

	require.NoError(t, err)
	assert.Equal(t, 2, f.results.persistCalls)
	assert.Len(t, f.results.persisted, 1)
}

func TestRun_RecordExchangeFailureStillResponds(t *testing.T) {
	f := newFixture()
	f.memory.recordErr = errors.New("db down")

	resp, err := f.orch.Run(context.Background(), &AnalyzeRequest{
		PatientID: uuid.New().String(),
		QueryText: "hello",
	})

	require.NoError(t, err)
	assert.NotNil(t, resp)
}

func TestRun_SimilarFindingsOnlyWithEmbedding(t *testing.T) {
	f := newFixture()
	f.results.findings = []string{"prior: cholesterol trending down"}

	_, err := f.orch.Run(context.Background(), &AnalyzeRequest{
		PatientID: uuid.New().String(),
		QueryText: "cholesterol?",
	})
	require.NoError(t, err)
	assert.Zero(t, f.results.searchCalls)

	_, err = f.orch.Run(context.Background(), &AnalyzeRequest{
		PatientID:      uuid.New().String(),
		QueryText:      "cholesterol?",
		QueryEmbedding: []float32{0.1, 0.2, 0.3},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.results.searchCalls)
	assert.Contains(t, f.analyzer.lastCtx.Render(), "prior_finding_1")
}

func TestRun_SymptomsAndHistoryAugmentTheRun(t *testing.T) {
	f := newFixture()
	f.memory.snapshot.Profile.Conditions = []string{"asthma"}

	_, err := f.orch.Run(context.Background(), &AnalyzeRequest{
		PatientID:          uuid.New().String(),
		QueryText:          "should I worry?",
		Symptoms:           []string{"wheezing", "night cough"},
		MedicalHistory:     []string{"eczema", "asthma"},
		CurrentMedications: []string{"albuterol"},
	})

	require.NoError(t, err)
	assert.Contains(t, f.analyzer.lastQuery, "Reported symptoms: wheezing, night cough")

	rendered := f.analyzer.lastCtx.Render()
	assert.Contains(t, rendered, "conditions: asthma, eczema")
	assert.Equal(t, 1, strings.Count(rendered, "asthma"))
	assert.Contains(t, rendered, "medications: albuterol")
}

func TestRun_FallbackAnalysisMarksResponse(t *testing.T) {
	f := newFixture()
	f.analyzer.analysis = inference.Analysis{
		PrimaryAnalysis: inference.FallbackAdvisory,
		Confidence:      75,
		Severity:        inference.SeverityModerate,
		Priority:        inference.PriorityMedium,
		IsFallback:      true,
		FallbackReason:  "service unavailable",
	}

	resp, err := f.orch.Run(context.Background(), &AnalyzeRequest{
		PatientID: uuid.New().String(),
		QueryText: "hello",
	})

	require.NoError(t, err)
	assert.True(t, resp.IsFallback)
	require.Len(t, f.publisher.events, 1)
	assert.True(t, f.publisher.events[0].IsFallback)
	assert.Equal(t, "warn", f.publisher.events[0].Severity)
}

func TestRun_BiasReachesThePolicy(t *testing.T) {
	f := newFixture()
	policy := inference.Policy{
		Version:           1,
		DefaultConfidence: 75,
		DefaultSeverity:   inference.SeverityModerate,
		ElevatedSeverity:  inference.SeverityConcerning,
		DefaultPriority:   inference.PriorityMedium,
		BiasCutoff:        -0.3,
	}
	f.orch = New(f.memory, f.extractor, f.biomarkers, compressor.NewBuilder(300, 6),
		f.analyzer, f.results, &stubBias{bias: -0.42}, f.publisher,
		Options{BasePolicy: policy, SimilarFindings: 3, SimilarityThreshold: 0.7})

	_, err := f.orch.Run(context.Background(), &AnalyzeRequest{
		PatientID: uuid.New().String(),
		QueryText: "hello",
	})

	require.NoError(t, err)
	assert.InDelta(t, -0.42, f.analyzer.lastPolicy.Bias, 1e-9)
}
