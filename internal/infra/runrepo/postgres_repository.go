package runrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/evaluator-ai/internal/domain/evalconfig"
	"github.com/yanqian/evaluator-ai/internal/domain/evaluator"
	"github.com/yanqian/evaluator-ai/internal/domain/playground"
)

// RunSchema creates the table backing PostgresRepository.
const RunSchema = `
CREATE TABLE IF NOT EXISTS evaluator_runs (
	id          UUID PRIMARY KEY,
	session_id  UUID        NOT NULL,
	config      JSONB       NOT NULL,
	dataset     JSONB       NOT NULL DEFAULT '[]'::jsonb,
	status      TEXT        NOT NULL,
	results     JSONB       NOT NULL DEFAULT '[]'::jsonb,
	summary     JSONB,
	error       TEXT        NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	started_at  TIMESTAMPTZ,
	finished_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS evaluator_runs_session ON evaluator_runs (session_id, created_at DESC);
`

const runColumns = `id, session_id, config, dataset, status, results, summary, error, created_at, updated_at, started_at, finished_at`

// PostgresRepository persists runs in Postgres using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the runs table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, RunSchema)
	return err
}

func (r *PostgresRepository) Create(ctx context.Context, run playground.Run) error {
	config, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	dataset, err := json.Marshal(nonNilDataset(run.TestDataset))
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO evaluator_runs (id, session_id, config, dataset, status, results, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, '[]'::jsonb, $6, $7, $8)
	`, run.ID, run.SessionID, config, dataset, string(run.Status), run.Error, run.CreatedAt, run.UpdatedAt)
	return err
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (playground.Run, bool, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM evaluator_runs WHERE id = $1 LIMIT 1`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return playground.Run{}, false, nil
		}
		return playground.Run{}, false, err
	}
	return run, true, nil
}

func (r *PostgresRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]playground.Run, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+runColumns+`
		FROM evaluator_runs
		WHERE session_id = $1
		ORDER BY created_at DESC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]playground.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *PostgresRepository) MarkRunning(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE evaluator_runs
		SET status = $2, started_at = $3, updated_at = $3
		WHERE id = $1 AND status = $4
	`, id, string(playground.RunRunning), at, string(playground.RunPending))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return playground.ErrRunTransition
	}
	return nil
}

func (r *PostgresRepository) AppendResult(ctx context.Context, id uuid.UUID, result evaluator.QuestionResult) error {
	payload, err := json.Marshal([]evaluator.QuestionResult{result})
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE evaluator_runs
		SET results = results || $2::jsonb, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
	`, id, payload, activeStatuses())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return playground.ErrRunTransition
	}
	return nil
}

func (r *PostgresRepository) Finish(ctx context.Context, id uuid.UUID, outcome playground.RunOutcome) error {
	var summary []byte
	if outcome.Summary != nil {
		encoded, err := json.Marshal(outcome.Summary)
		if err != nil {
			return fmt.Errorf("encode summary: %w", err)
		}
		summary = encoded
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE evaluator_runs
		SET status = $2, summary = $3, error = $4, finished_at = $5, updated_at = $5
		WHERE id = $1 AND status = ANY($6)
	`, id, string(outcome.Status), summary, outcome.Error, outcome.FinishedAt, activeStatuses())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return playground.ErrRunTransition
	}
	return nil
}

func (r *PostgresRepository) DeleteBySession(ctx context.Context, sessionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM evaluator_runs WHERE session_id = $1`, sessionID)
	return err
}

func activeStatuses() []string {
	return []string{string(playground.RunPending), string(playground.RunRunning)}
}

func nonNilDataset(in []evaluator.QAPair) []evaluator.QAPair {
	if in == nil {
		return []evaluator.QAPair{}
	}
	return in
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (playground.Run, error) {
	var (
		run                      playground.Run
		status                   string
		config, dataset, results []byte
		summary                  []byte
		startedAt, finishedAt    *time.Time
	)
	if err := row.Scan(&run.ID, &run.SessionID, &config, &dataset, &status, &results, &summary, &run.Error, &run.CreatedAt, &run.UpdatedAt, &startedAt, &finishedAt); err != nil {
		return playground.Run{}, err
	}
	run.Status = playground.RunStatus(status)
	run.StartedAt = startedAt
	run.FinishedAt = finishedAt
	if err := decodeRunColumns(&run, config, dataset, results, summary); err != nil {
		return playground.Run{}, err
	}
	return run, nil
}

func decodeRunColumns(run *playground.Run, config, dataset, results, summary []byte) error {
	var cfg evalconfig.EvaluationConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	run.Config = cfg
	if len(dataset) > 0 {
		if err := json.Unmarshal(dataset, &run.TestDataset); err != nil {
			return fmt.Errorf("decode dataset: %w", err)
		}
	}
	run.Results = []evaluator.QuestionResult{}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &run.Results); err != nil {
			return fmt.Errorf("decode results: %w", err)
		}
	}
	if len(summary) > 0 {
		var s evaluator.Summary
		if err := json.Unmarshal(summary, &s); err != nil {
			return fmt.Errorf("decode summary: %w", err)
		}
		run.Summary = &s
	}
	return nil
}

var _ playground.RunRepository = (*PostgresRepository)(nil)
