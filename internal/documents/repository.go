package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// Repository persists pipeline analysis results.
type Repository interface {
	Create(ctx context.Context, res *Result) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, page, pageSize int) ([]Result, error)
	CountByPatient(ctx context.Context, patientID uuid.UUID) (int64, error)
	GetLatest(ctx context.Context, patientID uuid.UUID) (*Result, error)
	GetByRequestID(ctx context.Context, requestID string) (*Result, error)
	SearchSimilar(ctx context.Context, patientID uuid.UUID, embedding []float32, limit int, threshold float64) ([]SimilarFinding, error)
}

// PostgresRepository implements Repository using pgx + pgvector.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, res *Result) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now()
	}

	entities, err := json.Marshal(res.Entities)
	if err != nil {
		return fmt.Errorf("marshaling entities: %w", err)
	}
	analysis, err := json.Marshal(res.Analysis)
	if err != nil {
		return fmt.Errorf("marshaling analysis: %w", err)
	}

	if len(res.Embedding) > 0 {
		vec := pgvector.NewVector(res.Embedding)
		_, err = r.pool.Exec(ctx,
			`INSERT INTO analysis_results
			   (id, request_id, patient_id, query_text, entities, compressed_context, analysis, is_fallback, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			res.ID, res.RequestID, res.PatientID, res.QueryText, entities,
			res.CompressedContext, analysis, res.IsFallback, vec, res.CreatedAt,
		)
	} else {
		_, err = r.pool.Exec(ctx,
			`INSERT INTO analysis_results
			   (id, request_id, patient_id, query_text, entities, compressed_context, analysis, is_fallback, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			res.ID, res.RequestID, res.PatientID, res.QueryText, entities,
			res.CompressedContext, analysis, res.IsFallback, res.CreatedAt,
		)
	}
	if err != nil {
		return fmt.Errorf("inserting analysis result: %w", err)
	}
	return nil
}

const resultColumns = `id, request_id, patient_id, query_text, entities, compressed_context, analysis, is_fallback, created_at`

func (r *PostgresRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, page, pageSize int) ([]Result, error) {
	offset := (page - 1) * pageSize
	rows, err := r.pool.Query(ctx,
		`SELECT `+resultColumns+`
		 FROM analysis_results
		 WHERE patient_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		patientID, pageSize, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing analysis results: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}
	return results, rows.Err()
}

func (r *PostgresRepository) CountByPatient(ctx context.Context, patientID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM analysis_results WHERE patient_id = $1`,
		patientID,
	).Scan(&count)
	return count, err
}

// GetLatest returns nil without error when the patient has no analyses.
func (r *PostgresRepository) GetLatest(ctx context.Context, patientID uuid.UUID) (*Result, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+resultColumns+`
		 FROM analysis_results
		 WHERE patient_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		patientID,
	)
	res, err := scanResult(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return res, nil
}

// GetByRequestID returns nil without error when no run matches.
func (r *PostgresRepository) GetByRequestID(ctx context.Context, requestID string) (*Result, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+resultColumns+`
		 FROM analysis_results
		 WHERE request_id = $1`,
		requestID,
	)
	res, err := scanResult(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return res, nil
}

func (r *PostgresRepository) SearchSimilar(ctx context.Context, patientID uuid.UUID, embedding []float32, limit int, threshold float64) ([]SimilarFinding, error) {
	vec := pgvector.NewVector(embedding)
	rows, err := r.pool.Query(ctx,
		`SELECT analysis->>'primary_analysis', 1 - (embedding <=> $1) AS similarity
		 FROM analysis_results
		 WHERE patient_id = $2
		   AND embedding IS NOT NULL
		   AND 1 - (embedding <=> $1) >= $3
		 ORDER BY embedding <=> $1
		 LIMIT $4`,
		vec, patientID, threshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching similar findings: %w", err)
	}
	defer rows.Close()

	var findings []SimilarFinding
	for rows.Next() {
		var f SimilarFinding
		if err := rows.Scan(&f.Content, &f.Similarity); err != nil {
			return nil, fmt.Errorf("scanning similar finding: %w", err)
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

func scanResult(row pgx.Row) (*Result, error) {
	var res Result
	var entities, analysis []byte
	err := row.Scan(&res.ID, &res.RequestID, &res.PatientID, &res.QueryText,
		&entities, &res.CompressedContext, &analysis, &res.IsFallback, &res.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning analysis result: %w", err)
	}
	if len(entities) > 0 {
		if err := json.Unmarshal(entities, &res.Entities); err != nil {
			return nil, fmt.Errorf("unmarshaling entities: %w", err)
		}
	}
	if err := json.Unmarshal(analysis, &res.Analysis); err != nil {
		return nil, fmt.Errorf("unmarshaling analysis: %w", err)
	}
	return &res, nil
}
