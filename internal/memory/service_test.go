package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meditwin-platform/meditwin/internal/config"
)

// stubRepo is an in-memory Repository. Setting fail makes every call error,
// which is how the degraded-load paths get exercised.
type stubRepo struct {
	fail      bool
	profiles  map[uuid.UUID]*PatientProfile
	summaries map[uuid.UUID]*MemorySummary
	turns     []ConversationTurn
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		profiles:  map[uuid.UUID]*PatientProfile{},
		summaries: map[uuid.UUID]*MemorySummary{},
	}
}

var errStubDown = errors.New("store down")

func (r *stubRepo) UpsertProfile(_ context.Context, profile *PatientProfile) error {
	if r.fail {
		return errStubDown
	}
	copied := *profile
	r.profiles[profile.PatientID] = &copied
	return nil
}

func (r *stubRepo) GetProfile(_ context.Context, patientID uuid.UUID) (*PatientProfile, error) {
	if r.fail {
		return nil, errStubDown
	}
	return r.profiles[patientID], nil
}

func (r *stubRepo) AppendTurn(_ context.Context, turn *ConversationTurn) error {
	if r.fail {
		return errStubDown
	}
	r.turns = append(r.turns, *turn)
	return nil
}

func (r *stubRepo) ListTurns(_ context.Context, patientID uuid.UUID, page, pageSize int) ([]ConversationTurn, error) {
	if r.fail {
		return nil, errStubDown
	}
	var out []ConversationTurn
	for i := len(r.turns) - 1; i >= 0; i-- {
		if r.turns[i].PatientID == patientID {
			out = append(out, r.turns[i])
		}
	}
	start := (page - 1) * pageSize
	if start >= len(out) {
		return nil, nil
	}
	end := start + pageSize
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], nil
}

func (r *stubRepo) CountTurns(_ context.Context, patientID uuid.UUID) (int64, error) {
	if r.fail {
		return 0, errStubDown
	}
	var n int64
	for _, t := range r.turns {
		if t.PatientID == patientID {
			n++
		}
	}
	return n, nil
}

func (r *stubRepo) CountTurnsSince(_ context.Context, patientID uuid.UUID, since time.Time) (int64, error) {
	if r.fail {
		return 0, errStubDown
	}
	var n int64
	for _, t := range r.turns {
		if t.PatientID == patientID && t.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (r *stubRepo) ListRecentTurns(_ context.Context, patientID uuid.UUID, limit int) ([]ConversationTurn, error) {
	if r.fail {
		return nil, errStubDown
	}
	var out []ConversationTurn
	for _, t := range r.turns {
		if t.PatientID == patientID {
			out = append(out, t)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *stubRepo) UpsertSummary(_ context.Context, summary *MemorySummary) error {
	if r.fail {
		return errStubDown
	}
	copied := *summary
	r.summaries[summary.PatientID] = &copied
	return nil
}

func (r *stubRepo) GetSummary(_ context.Context, patientID uuid.UUID) (*MemorySummary, error) {
	if r.fail {
		return nil, errStubDown
	}
	return r.summaries[patientID], nil
}

func pipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		TokenBudget:         300,
		RecentTurns:         6,
		CompactionThreshold: 4,
		ShortTermTTLSec:     3600,
	}
}

func TestService_Load_HappyPath(t *testing.T) {
	store, _ := setupMiniredis(t)
	repo := newStubRepo()
	svc := NewService(repo, store, pipelineConfig())
	ctx := context.Background()
	patientID := uuid.New()

	require.NoError(t, repo.UpsertProfile(ctx, &PatientProfile{
		PatientID:  patientID,
		Age:        54,
		Conditions: []string{"type 2 diabetes"},
	}))
	require.NoError(t, store.AppendTurn(ctx, patientID, ConversationTurn{
		PatientID: patientID, Role: "user", Text: "hello",
	}, 6, 3600))

	snap := svc.Load(ctx, patientID)

	assert.False(t, snap.Degraded)
	assert.Equal(t, 54, snap.Profile.Age)
	assert.Equal(t, []string{"type 2 diabetes"}, snap.Profile.Conditions)
	require.Len(t, snap.RecentTurns, 1)
	assert.Equal(t, "hello", snap.RecentTurns[0].Text)
}

func TestService_Load_UnknownPatientIsNotDegraded(t *testing.T) {
	store, _ := setupMiniredis(t)
	svc := NewService(newStubRepo(), store, pipelineConfig())
	patientID := uuid.New()

	snap := svc.Load(context.Background(), patientID)

	assert.False(t, snap.Degraded)
	assert.Equal(t, patientID, snap.Profile.PatientID)
	assert.Empty(t, snap.Profile.Conditions)
	assert.Empty(t, snap.RecentTurns)
}

func TestService_Load_StoreDownIsDegradedNotError(t *testing.T) {
	store, mr := setupMiniredis(t)
	repo := newStubRepo()
	repo.fail = true
	svc := NewService(repo, store, pipelineConfig())
	mr.Close()

	patientID := uuid.New()
	snap := svc.Load(context.Background(), patientID)

	assert.True(t, snap.Degraded)
	assert.Equal(t, patientID, snap.Profile.PatientID)
	assert.Empty(t, snap.RecentTurns)
	assert.NotNil(t, snap.Summary.Preferences)
}

func TestService_Load_CacheMissFallsBackToStore(t *testing.T) {
	store, _ := setupMiniredis(t)
	repo := newStubRepo()
	svc := NewService(repo, store, pipelineConfig())
	ctx := context.Background()
	patientID := uuid.New()

	require.NoError(t, repo.AppendTurn(ctx, &ConversationTurn{
		TurnID: uuid.New(), PatientID: patientID, Role: "user", Text: "from store",
		CreatedAt: time.Now(),
	}))

	snap := svc.Load(ctx, patientID)

	assert.False(t, snap.Degraded)
	require.Len(t, snap.RecentTurns, 1)
	assert.Equal(t, "from store", snap.RecentTurns[0].Text)
}

func TestService_RecordExchange(t *testing.T) {
	store, _ := setupMiniredis(t)
	repo := newStubRepo()
	svc := NewService(repo, store, pipelineConfig())
	ctx := context.Background()
	patientID := uuid.New()

	err := svc.RecordExchange(ctx, patientID, "req-1", "how am I doing?", "you are doing fine")
	require.NoError(t, err)

	require.Len(t, repo.turns, 2)
	assert.Equal(t, "user", repo.turns[0].Role)
	assert.Equal(t, "req-1", repo.turns[0].RequestID)
	assert.Equal(t, "agent", repo.turns[1].Role)
	assert.True(t, repo.turns[0].CreatedAt.Before(repo.turns[1].CreatedAt))

	cached, err := store.GetRecentTurns(ctx, patientID, 10)
	require.NoError(t, err)
	assert.Len(t, cached, 2)
}

func TestService_RecordExchange_CompactsPastThreshold(t *testing.T) {
	store, _ := setupMiniredis(t)
	repo := newStubRepo()
	svc := NewService(repo, store, pipelineConfig()) // threshold 4
	ctx := context.Background()
	patientID := uuid.New()

	require.NoError(t, svc.RecordExchange(ctx, patientID, "req-1", "my sleep is poor", "noted"))
	summary, err := repo.GetSummary(ctx, patientID)
	require.NoError(t, err)
	assert.Nil(t, summary) // only 2 turns, below threshold

	require.NoError(t, svc.RecordExchange(ctx, patientID, "req-2", "stress is high too", "understood"))
	summary, err = repo.GetSummary(ctx, patientID)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Contains(t, summary.Topics, "sleep")
	assert.Contains(t, summary.Topics, "stress")
}

func TestService_UpsertProfileRoundTrip(t *testing.T) {
	store, _ := setupMiniredis(t)
	repo := newStubRepo()
	svc := NewService(repo, store, pipelineConfig())
	ctx := context.Background()
	patientID := uuid.New()

	_, err := svc.UpsertProfile(ctx, patientID, &UpdateProfileRequest{
		Age:         61,
		Gender:      "female",
		Conditions:  []string{"hypertension"},
		Medications: []string{"lisinopril"},
	})
	require.NoError(t, err)

	got, err := svc.GetProfile(ctx, patientID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 61, got.Age)
	assert.Equal(t, []string{"hypertension"}, got.Conditions)
	assert.Equal(t, []string{"lisinopril"}, got.Medications)
}
