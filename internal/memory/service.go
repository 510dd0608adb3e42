package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meditwin-platform/meditwin/internal/config"
	"github.com/meditwin-platform/meditwin/internal/metrics"
)

// compactionWindow caps how much history a single summarization pass reads.
const compactionWindow = 200

// Service coordinates the long-term store (Postgres) and the short-term
// window cache (Redis) for patient memory.
type Service struct {
	repo      Repository
	shortTerm *ShortTermStore
	cfg       config.PipelineConfig
}

func NewService(repo Repository, shortTerm *ShortTermStore, cfg config.PipelineConfig) *Service {
	return &Service{repo: repo, shortTerm: shortTerm, cfg: cfg}
}

// Load assembles the context snapshot for one patient. It never returns an
// error: a store that cannot be reached yields empty defaults with Degraded
// set, so the pipeline keeps going on whatever is available.
func (s *Service) Load(ctx context.Context, patientID uuid.UUID) Snapshot {
	snap := Snapshot{
		Profile:     PatientProfile{PatientID: patientID},
		Summary:     MemorySummary{PatientID: patientID, Preferences: map[string]string{}},
		RecentTurns: []ConversationTurn{},
	}

	profile, err := s.repo.GetProfile(ctx, patientID)
	if err != nil {
		slog.Warn("memory: loading profile failed, using empty profile", "error", err, "patient_id", patientID)
		metrics.FallbacksTotal.WithLabelValues("memory").Inc()
		snap.Degraded = true
	} else if profile != nil {
		snap.Profile = *profile
	}

	summary, err := s.repo.GetSummary(ctx, patientID)
	if err != nil {
		slog.Warn("memory: loading summary failed, using empty summary", "error", err, "patient_id", patientID)
		metrics.FallbacksTotal.WithLabelValues("memory").Inc()
		snap.Degraded = true
	} else if summary != nil {
		snap.Summary = *summary
	}

	turns, err := s.shortTerm.GetRecentTurns(ctx, patientID, s.cfg.RecentTurns)
	if err != nil || len(turns) == 0 {
		if err != nil {
			slog.Warn("memory: short-term cache unavailable, reading turns from store", "error", err, "patient_id", patientID)
		}
		turns, err = s.repo.ListRecentTurns(ctx, patientID, s.cfg.RecentTurns)
		if err != nil {
			slog.Warn("memory: loading recent turns failed, using empty window", "error", err, "patient_id", patientID)
			metrics.FallbacksTotal.WithLabelValues("memory").Inc()
			snap.Degraded = true
			turns = nil
		}
	}
	if turns != nil {
		snap.RecentTurns = turns
	}

	return snap
}

// GetProfile returns nil without error when the patient has no profile yet.
func (s *Service) GetProfile(ctx context.Context, patientID uuid.UUID) (*PatientProfile, error) {
	return s.repo.GetProfile(ctx, patientID)
}

// UpsertProfile replaces the whole profile, last write wins.
func (s *Service) UpsertProfile(ctx context.Context, patientID uuid.UUID, req *UpdateProfileRequest) (*PatientProfile, error) {
	profile := &PatientProfile{
		PatientID:      patientID,
		Age:            req.Age,
		Gender:         req.Gender,
		Conditions:     req.Conditions,
		Medications:    req.Medications,
		Allergies:      req.Allergies,
		Goals:          req.Goals,
		Habits:         req.Habits,
		TreatmentPlans: req.TreatmentPlans,
	}
	if err := s.repo.UpsertProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// RecordExchange persists the user query and agent reply as two turns, then
// mirrors them into the short-term cache and triggers compaction when the
// uncompacted history has grown past the threshold. Cache and compaction
// failures are logged, not returned: the durable write is what matters.
func (s *Service) RecordExchange(ctx context.Context, patientID uuid.UUID, requestID, userText, agentText string) error {
	now := time.Now()
	userTurn := ConversationTurn{
		TurnID:    uuid.New(),
		PatientID: patientID,
		Role:      "user",
		Text:      userText,
		RequestID: requestID,
		CreatedAt: now,
	}
	agentTurn := ConversationTurn{
		TurnID:    uuid.New(),
		PatientID: patientID,
		Role:      "agent",
		Text:      agentText,
		RequestID: requestID,
		CreatedAt: now.Add(time.Millisecond),
	}

	if err := s.repo.AppendTurn(ctx, &userTurn); err != nil {
		return fmt.Errorf("appending user turn: %w", err)
	}
	if err := s.repo.AppendTurn(ctx, &agentTurn); err != nil {
		return fmt.Errorf("appending agent turn: %w", err)
	}

	for _, turn := range []ConversationTurn{userTurn, agentTurn} {
		if err := s.shortTerm.AppendTurn(ctx, patientID, turn, s.cfg.RecentTurns, s.cfg.ShortTermTTLSec); err != nil {
			slog.Warn("memory: caching turn failed", "error", err, "patient_id", patientID)
			break
		}
	}

	if err := s.maybeCompact(ctx, patientID); err != nil {
		slog.Warn("memory: compaction failed", "error", err, "patient_id", patientID)
	}
	return nil
}

// History returns a page of turns, newest first, with the total count.
func (s *Service) History(ctx context.Context, patientID uuid.UUID, page, pageSize int) ([]ConversationTurn, int64, error) {
	turns, err := s.repo.ListTurns(ctx, patientID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.repo.CountTurns(ctx, patientID)
	if err != nil {
		return nil, 0, err
	}
	return turns, count, nil
}

// Summary returns nil without error when no summary has been compacted yet.
func (s *Service) Summary(ctx context.Context, patientID uuid.UUID) (*MemorySummary, error) {
	return s.repo.GetSummary(ctx, patientID)
}

// maybeCompact recomputes the summary once enough turns have accumulated
// since the last compaction. Summarize is deterministic over its input
// window, so rerunning after a partial failure is safe.
func (s *Service) maybeCompact(ctx context.Context, patientID uuid.UUID) error {
	var since time.Time
	existing, err := s.repo.GetSummary(ctx, patientID)
	if err != nil {
		return err
	}
	if existing != nil {
		since = existing.LastCompactedAt
	}

	count, err := s.repo.CountTurnsSince(ctx, patientID, since)
	if err != nil {
		return err
	}
	if count < int64(s.cfg.CompactionThreshold) {
		return nil
	}

	turns, err := s.repo.ListRecentTurns(ctx, patientID, compactionWindow)
	if err != nil {
		return err
	}

	summary := Summarize(patientID, turns, time.Now())
	return s.repo.UpsertSummary(ctx, &summary)
}
