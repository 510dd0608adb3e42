package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists feedback records.
type Repository interface {
	Insert(ctx context.Context, rec *FeedbackRecord) error
	ListRecentOutcomes(ctx context.Context, limit int) ([]string, error)
}

// PostgresRepository implements Repository using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Insert(ctx context.Context, rec *FeedbackRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO feedback_records (id, request_id, patient_id, outcome, reward, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.RequestID, rec.PatientID, rec.Outcome, rec.Reward, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting feedback record: %w", err)
	}
	return nil
}

// ListRecentOutcomes returns the last `limit` outcomes in chronological
// order, for warming the tracker after a restart.
func (r *PostgresRepository) ListRecentOutcomes(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT outcome
		 FROM (SELECT outcome, created_at FROM feedback_records ORDER BY created_at DESC LIMIT $1) recent
		 ORDER BY created_at ASC`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing recent outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []string
	for rows.Next() {
		var outcome string
		if err := rows.Scan(&outcome); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, rows.Err()
}
