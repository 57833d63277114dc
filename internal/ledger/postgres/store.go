// Package postgres persists the tracker ledger in Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/model-health/modelhealth-go/internal/ledger"
)

const uniqueViolation = "23505"

const jobColumns = `job_id, tenant_id, kind, target_id, state, terminal, attempts, last_error, created_at, updated_at, next_poll_at`

// Store is a ledger.Store backed by a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ ledger.Store = (*Store)(nil)

// Create inserts a job. A second job for the same tenant, kind and target fails with ledger.ErrDuplicateJob.
func (s *Store) Create(ctx context.Context, job ledger.Job) error {
	const stmt = `INSERT INTO tracked_jobs (` + jobColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

	_, err := s.pool.Exec(ctx, stmt,
		job.ID,
		job.TenantID,
		string(job.Kind),
		job.TargetID,
		job.State,
		job.Terminal,
		job.Attempts,
		job.LastError,
		job.CreatedAt,
		job.UpdatedAt,
		job.NextPollAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ledger.ErrDuplicateJob
	}
	return err
}

// Get returns a tenant's job, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, tenantID, jobID string) (*ledger.Job, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, nil
	}
	const query = `SELECT ` + jobColumns + ` FROM tracked_jobs WHERE tenant_id=$1 AND job_id=$2`

	job, err := scanJob(s.pool.QueryRow(ctx, query, tenantID, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

// List returns a tenant's jobs ordered newest first.
func (s *Store) List(ctx context.Context, tenantID string, cursor *ledger.Cursor, limit int) ([]ledger.Job, *ledger.Cursor, error) {
	if limit <= 0 {
		return nil, nil, nil
	}
	args := []interface{}{tenantID, limit}
	query := `SELECT ` + jobColumns + ` FROM tracked_jobs WHERE tenant_id=$1`

	if cursor != nil {
		if _, err := uuid.Parse(cursor.ID); err != nil {
			return nil, nil, fmt.Errorf("%w: job id %q", ledger.ErrInvalidCursor, cursor.ID)
		}
		query += ` AND (created_at, job_id) < ($3, $4)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += ` ORDER BY created_at DESC, job_id DESC LIMIT $2`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]ledger.Job, 0, limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, job)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *ledger.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &ledger.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return results, next, nil
}

// Claim locks due jobs with SKIP LOCKED and pushes their next poll out by lease in the same transaction.
func (s *Store) Claim(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]ledger.Job, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const query = `SELECT ` + jobColumns + `
        FROM tracked_jobs
        WHERE NOT terminal AND next_poll_at <= $1
        ORDER BY next_poll_at, job_id
        LIMIT $2
        FOR UPDATE SKIP LOCKED`

	rows, err := tx.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	claimed := make([]ledger.Job, 0, limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		claimed = append(claimed, job)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(claimed) == 0 {
		return claimed, tx.Commit(ctx)
	}

	leaseUntil := now.Add(lease)
	ids := make([]string, 0, len(claimed))
	for i := range claimed {
		claimed[i].NextPollAt = leaseUntil
		ids = append(ids, claimed[i].ID)
	}
	if _, err := tx.Exec(ctx, `UPDATE tracked_jobs SET next_poll_at=$1 WHERE job_id = ANY($2::uuid[])`, leaseUntil, ids); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return claimed, nil
}

// Update writes the mutable fields of a job.
func (s *Store) Update(ctx context.Context, job ledger.Job) error {
	const stmt = `UPDATE tracked_jobs
        SET state=$2, terminal=$3, attempts=$4, last_error=$5, updated_at=$6, next_poll_at=$7
        WHERE job_id=$1`

	tag, err := s.pool.Exec(ctx, stmt,
		job.ID,
		job.State,
		job.Terminal,
		job.Attempts,
		job.LastError,
		job.UpdatedAt,
		job.NextPollAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrJobNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (ledger.Job, error) {
	var job ledger.Job
	var kind string
	err := row.Scan(
		&job.ID,
		&job.TenantID,
		&kind,
		&job.TargetID,
		&job.State,
		&job.Terminal,
		&job.Attempts,
		&job.LastError,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.NextPollAt,
	)
	job.Kind = ledger.Kind(kind)
	return job, err
}
