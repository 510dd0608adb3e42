package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines long-term memory persistence operations.
type Repository interface {
	UpsertProfile(ctx context.Context, profile *PatientProfile) error
	GetProfile(ctx context.Context, patientID uuid.UUID) (*PatientProfile, error)
	AppendTurn(ctx context.Context, turn *ConversationTurn) error
	ListTurns(ctx context.Context, patientID uuid.UUID, page, pageSize int) ([]ConversationTurn, error)
	CountTurns(ctx context.Context, patientID uuid.UUID) (int64, error)
	CountTurnsSince(ctx context.Context, patientID uuid.UUID, since time.Time) (int64, error)
	ListRecentTurns(ctx context.Context, patientID uuid.UUID, limit int) ([]ConversationTurn, error)
	UpsertSummary(ctx context.Context, summary *MemorySummary) error
	GetSummary(ctx context.Context, patientID uuid.UUID) (*MemorySummary, error)
}

// PostgresRepository implements Repository using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// UpsertProfile writes the whole profile row. Concurrent writers follow
// last-write-wins: the later statement overwrites all mutable columns.
func (r *PostgresRepository) UpsertProfile(ctx context.Context, profile *PatientProfile) error {
	now := time.Now()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO patient_profiles
		   (patient_id, age, gender, conditions, medications, allergies, goals, habits, treatment_plans, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		 ON CONFLICT (patient_id) DO UPDATE SET
		   age = EXCLUDED.age,
		   gender = EXCLUDED.gender,
		   conditions = EXCLUDED.conditions,
		   medications = EXCLUDED.medications,
		   allergies = EXCLUDED.allergies,
		   goals = EXCLUDED.goals,
		   habits = EXCLUDED.habits,
		   treatment_plans = EXCLUDED.treatment_plans,
		   updated_at = EXCLUDED.updated_at`,
		profile.PatientID, profile.Age, profile.Gender,
		profile.Conditions, profile.Medications, profile.Allergies,
		profile.Goals, profile.Habits, profile.TreatmentPlans, now,
	)
	if err != nil {
		return fmt.Errorf("upserting profile: %w", err)
	}
	profile.UpdatedAt = now
	return nil
}

// GetProfile returns nil without error when no profile exists yet.
func (r *PostgresRepository) GetProfile(ctx context.Context, patientID uuid.UUID) (*PatientProfile, error) {
	var p PatientProfile
	err := r.pool.QueryRow(ctx,
		`SELECT patient_id, age, gender, conditions, medications, allergies, goals, habits, treatment_plans, created_at, updated_at
		 FROM patient_profiles
		 WHERE patient_id = $1`,
		patientID,
	).Scan(&p.PatientID, &p.Age, &p.Gender, &p.Conditions, &p.Medications, &p.Allergies,
		&p.Goals, &p.Habits, &p.TreatmentPlans, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return &p, nil
}

func (r *PostgresRepository) AppendTurn(ctx context.Context, turn *ConversationTurn) error {
	if turn.TurnID == uuid.Nil {
		turn.TurnID = uuid.New()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO conversation_turns (turn_id, patient_id, role, text, request_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		turn.TurnID, turn.PatientID, turn.Role, turn.Text, turn.RequestID, turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("appending turn: %w", err)
	}
	return nil
}

// ListTurns returns a page of turns, newest first.
func (r *PostgresRepository) ListTurns(ctx context.Context, patientID uuid.UUID, page, pageSize int) ([]ConversationTurn, error) {
	offset := (page - 1) * pageSize
	rows, err := r.pool.Query(ctx,
		`SELECT turn_id, patient_id, role, text, request_id, created_at
		 FROM conversation_turns
		 WHERE patient_id = $1
		 ORDER BY created_at DESC, turn_id DESC
		 LIMIT $2 OFFSET $3`,
		patientID, pageSize, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

func (r *PostgresRepository) CountTurns(ctx context.Context, patientID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM conversation_turns WHERE patient_id = $1`,
		patientID,
	).Scan(&count)
	return count, err
}

func (r *PostgresRepository) CountTurnsSince(ctx context.Context, patientID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM conversation_turns WHERE patient_id = $1 AND created_at > $2`,
		patientID, since,
	).Scan(&count)
	return count, err
}

// ListRecentTurns returns the last `limit` turns in chronological order.
func (r *PostgresRepository) ListRecentTurns(ctx context.Context, patientID uuid.UUID, limit int) ([]ConversationTurn, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT turn_id, patient_id, role, text, request_id, created_at
		 FROM (SELECT turn_id, patient_id, role, text, request_id, created_at
		       FROM conversation_turns
		       WHERE patient_id = $1
		       ORDER BY created_at DESC, turn_id DESC
		       LIMIT $2) recent
		 ORDER BY created_at ASC, turn_id ASC`,
		patientID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing recent turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

func scanTurns(rows pgx.Rows) ([]ConversationTurn, error) {
	var turns []ConversationTurn
	for rows.Next() {
		var t ConversationTurn
		if err := rows.Scan(&t.TurnID, &t.PatientID, &t.Role, &t.Text, &t.RequestID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (r *PostgresRepository) UpsertSummary(ctx context.Context, summary *MemorySummary) error {
	prefs, err := json.Marshal(summary.Preferences)
	if err != nil {
		return fmt.Errorf("marshaling preferences: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO memory_summaries (patient_id, topics, preferences, health_goals, last_compacted_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (patient_id) DO UPDATE SET
		   topics = EXCLUDED.topics,
		   preferences = EXCLUDED.preferences,
		   health_goals = EXCLUDED.health_goals,
		   last_compacted_at = EXCLUDED.last_compacted_at`,
		summary.PatientID, summary.Topics, prefs, summary.HealthGoals, summary.LastCompactedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting summary: %w", err)
	}
	return nil
}

// GetSummary returns nil without error when no summary exists yet.
func (r *PostgresRepository) GetSummary(ctx context.Context, patientID uuid.UUID) (*MemorySummary, error) {
	var s MemorySummary
	var prefs []byte
	err := r.pool.QueryRow(ctx,
		`SELECT patient_id, topics, preferences, health_goals, last_compacted_at
		 FROM memory_summaries
		 WHERE patient_id = $1`,
		patientID,
	).Scan(&s.PatientID, &s.Topics, &prefs, &s.HealthGoals, &s.LastCompactedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting summary: %w", err)
	}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &s.Preferences); err != nil {
			return nil, fmt.Errorf("unmarshaling preferences: %w", err)
		}
	}
	return &s, nil
}
