package biomarkers

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

// Repository persists the current biomarker snapshot, one row per patient.
type Repository interface {
	Replace(ctx context.Context, snapshot *Snapshot) error
	Get(ctx context.Context, patientID uuid.UUID) (*Snapshot, error)
}

// PostgresRepository implements Repository using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Replace overwrites the patient's snapshot wholesale. Metrics from a prior
// snapshot never survive into the new one.
func (r *PostgresRepository) Replace(ctx context.Context, snapshot *Snapshot) error {
	metrics, err := json.Marshal(snapshot.Metrics)
	if err != nil {
		return fmt.Errorf("marshaling metrics: %w", err)
	}
	if snapshot.CapturedAt.IsZero() {
		snapshot.CapturedAt = time.Now()
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO biomarker_snapshots (patient_id, metrics, captured_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (patient_id) DO UPDATE SET
		   metrics = EXCLUDED.metrics,
		   captured_at = EXCLUDED.captured_at`,
		snapshot.PatientID, metrics, snapshot.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("replacing biomarker snapshot: %w", err)
	}
	return nil
}

// Get returns nil without error when the patient has no snapshot yet.
func (r *PostgresRepository) Get(ctx context.Context, patientID uuid.UUID) (*Snapshot, error) {
	var s Snapshot
	var metrics []byte
	err := r.pool.QueryRow(ctx,
		`SELECT patient_id, metrics, captured_at
		 FROM biomarker_snapshots
		 WHERE patient_id = $1`,
		patientID,
	).Scan(&s.PatientID, &metrics, &s.CapturedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting biomarker snapshot: %w", err)
	}
	if err := json.Unmarshal(metrics, &s.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshaling metrics: %w", err)
	}
	return &s, nil
}
