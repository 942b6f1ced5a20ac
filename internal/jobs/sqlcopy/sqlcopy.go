// Package sqlcopy provides a chunk job that copies rows between PostgreSQL queries.
//
// Each chunk runs in its own transaction: ids come from IDsQuery, rows for a chunk of ids come
// from SelectQuery ($1 is the id array) and every row is passed to ApplyStatement. A row that
// violates an integrity constraint is rolled back to a savepoint and recorded in the run's
// error report; any other database error ends the run.
package sqlcopy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/jollyblade/jollykit/pkg/chunk"
)

// Name is the processor name used in logs and reports.
const Name = "sqlcopy"

const (
	savepoint = "jollykit_record"

	// integrityViolationClass is the SQLSTATE class of integrity constraint violations.
	integrityViolationClass = "23"

	// MsgNoRows is recorded when ApplyStatement affects no rows.
	MsgNoRows = "statement affected no rows"
)

// Errors returned by the job.
var (
	ErrNoTransaction = errors.New("no chunk transaction open")
	ErrMissingQuery  = errors.New("query not configured")
	ErrBadID         = errors.New("first column is not an integer id")
)

// DB is the subset of *pgxpool.Pool the job uses.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Record is one row returned by SelectQuery.
type Record struct {
	ID     int64
	Values []any
}

// Queries holds the statements the job runs.
type Queries struct {
	// IDs returns one integer id per row, in processing order.
	IDs string

	// Select returns the rows for the ids in $1. The first column is the id.
	Select string

	// Apply is executed once per row with the row's columns as arguments.
	Apply string
}

// Job copies rows chunk by chunk. A Job drives one run at a time.
type Job struct {
	db      DB
	queries Queries
	tx      pgx.Tx
}

var (
	_ chunk.Job[int64, Record, pgconn.CommandTag] = (*Job)(nil)
	_ chunk.Preprocessor                          = (*Job)(nil)
	_ chunk.Namer                                 = (*Job)(nil)
)

// New returns a Job running queries against db.
func New(db DB, queries Queries) *Job {
	return &Job{db: db, queries: queries}
}

// Name implements chunk.Namer.
func (j *Job) Name() string {
	return Name
}

// Preprocess implements chunk.Preprocessor.
func (j *Job) Preprocess(_ context.Context) error {
	var errs []error
	if strings.TrimSpace(j.queries.IDs) == "" {
		errs = append(errs, fmt.Errorf("%w: ids", ErrMissingQuery))
	}
	if strings.TrimSpace(j.queries.Select) == "" {
		errs = append(errs, fmt.Errorf("%w: select", ErrMissingQuery))
	}
	if strings.TrimSpace(j.queries.Apply) == "" {
		errs = append(errs, fmt.Errorf("%w: apply", ErrMissingQuery))
	}
	return errors.Join(errs...)
}

// IDs implements chunk.Job.
func (j *Job) IDs(ctx context.Context) ([]int64, error) {
	rows, err := j.db.Query(ctx, j.queries.IDs)
	if err != nil {
		return nil, fmt.Errorf("querying ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collecting ids: %w", err)
	}
	return ids, nil
}

// BeforeChunk implements chunk.Job.
func (j *Job) BeforeChunk(ctx context.Context) error {
	if j.tx != nil {
		return errors.New("chunk transaction already open")
	}
	tx, err := j.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning chunk transaction: %w", err)
	}
	j.tx = tx
	return nil
}

// ResolveChunk implements chunk.Job.
func (j *Job) ResolveChunk(ctx context.Context, ids []int64) ([]Record, error) {
	if j.tx == nil {
		return nil, ErrNoTransaction
	}
	rows, err := j.tx.Query(ctx, j.queries.Select, ids)
	if err != nil {
		return nil, fmt.Errorf("selecting chunk: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, len(ids))
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: row has no columns", ErrBadID)
		}
		id, ok := asInt64(values[0])
		if !ok {
			return nil, fmt.Errorf("%w: got %T", ErrBadID, values[0])
		}
		records = append(records, Record{ID: id, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("selecting chunk: %w", err)
	}
	return records, nil
}

// MapRecord implements chunk.Job.
func (j *Job) MapRecord(ctx context.Context, record Record, report *chunk.ErrorReport) (pgconn.CommandTag, error) {
	if j.tx == nil {
		return pgconn.CommandTag{}, ErrNoTransaction
	}

	if _, err := j.tx.Exec(ctx, "SAVEPOINT "+savepoint); err != nil {
		return pgconn.CommandTag{}, fmt.Errorf("creating savepoint for id %d: %w", record.ID, err)
	}

	tag, err := j.tx.Exec(ctx, j.queries.Apply, record.Values...)
	if err != nil {
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || !strings.HasPrefix(pgErr.Code, integrityViolationClass) {
			return pgconn.CommandTag{}, fmt.Errorf("applying id %d: %w", record.ID, err)
		}
		if _, rbErr := j.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
			return pgconn.CommandTag{}, fmt.Errorf("rolling back savepoint for id %d: %w", record.ID, rbErr)
		}
		zerolog.Ctx(ctx).Debug().Int64("id", record.ID).Str("sqlstate", pgErr.Code).Msg("constraint violation")
		report.AppendError(constraintMessage(pgErr), pgErr)
		return pgconn.CommandTag{}, nil
	}

	if _, err := j.tx.Exec(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
		return pgconn.CommandTag{}, fmt.Errorf("releasing savepoint for id %d: %w", record.ID, err)
	}

	if tag.RowsAffected() == 0 {
		report.Append(MsgNoRows)
	}
	return tag, nil
}

// AfterChunk implements chunk.Job.
func (j *Job) AfterChunk(ctx context.Context) error {
	if j.tx == nil {
		return ErrNoTransaction
	}
	tx := j.tx
	j.tx = nil
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing chunk: %w", err)
	}
	return nil
}

// Close rolls back a chunk transaction left open by a failed run.
func (j *Job) Close(ctx context.Context) error {
	if j.tx == nil {
		return nil
	}
	tx := j.tx
	j.tx = nil
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rolling back chunk: %w", err)
	}
	return nil
}

func constraintMessage(pgErr *pgconn.PgError) string {
	name := pgErr.ConstraintName
	if name == "" {
		name = pgErr.Code
	}
	return fmt.Sprintf("constraint %s violated", name)
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
