package sqlcopy_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jollyblade/jollykit/internal/jobs/sqlcopy"
	"github.com/jollyblade/jollykit/pkg/chunk"
)

// fakeRows serves fixed rows. Methods the job does not use panic through the nil embedded interface.
type fakeRows struct {
	pgx.Rows
	rows   [][]any
	pos    int
	closed bool
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) { return r.rows[r.pos-1], nil }

func (r *fakeRows) Scan(dest ...any) error {
	id, ok := r.rows[r.pos-1][0].(int64)
	if !ok {
		return errors.New("not an int64")
	}
	*dest[0].(*int64) = id
	return nil
}

func (r *fakeRows) Err() error { return nil }
func (r *fakeRows) Close()     { r.closed = true }

// fakeDB is a table of int64 ids with a value column, plus scripted apply failures.
type fakeDB struct {
	ids      []int64
	applyErr map[int64]error
	noRows   map[int64]bool

	begins    int
	commits   int
	rollbacks int
	applied   []int64
	execs     []string
	open      *fakeTx
}

func (db *fakeDB) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	rows := make([][]any, len(db.ids))
	for i, id := range db.ids {
		rows[i] = []any{id}
	}
	return &fakeRows{rows: rows}, nil
}

func (db *fakeDB) Begin(_ context.Context) (pgx.Tx, error) {
	db.begins++
	db.open = &fakeTx{db: db}
	return db.open, nil
}

type fakeTx struct {
	pgx.Tx
	db   *fakeDB
	done bool
}

func (tx *fakeTx) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	ids := args[0].([]int64)
	rows := make([][]any, len(ids))
	for i, id := range ids {
		rows[i] = []any{id, "value"}
	}
	return &fakeRows{rows: rows}, nil
}

func (tx *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if strings.Contains(sql, "SAVEPOINT") {
		tx.db.execs = append(tx.db.execs, strings.Fields(sql)[0])
		return pgconn.NewCommandTag("SAVEPOINT"), nil
	}
	id := args[0].(int64)
	if err := tx.db.applyErr[id]; err != nil {
		return pgconn.CommandTag{}, err
	}
	if tx.db.noRows[id] {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}
	tx.db.applied = append(tx.db.applied, id)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (tx *fakeTx) Commit(_ context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.db.commits++
	return nil
}

func (tx *fakeTx) Rollback(_ context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.db.rollbacks++
	return nil
}

func idRange(n int) []int64 {
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	return ids
}

var testQueries = sqlcopy.Queries{
	IDs:    "SELECT id FROM src ORDER BY id",
	Select: "SELECT id, v FROM src WHERE id = ANY($1) ORDER BY id",
	Apply:  "INSERT INTO dst (id, v) VALUES ($1, $2)",
}

func run(t *testing.T, db *fakeDB, size int) (*sqlcopy.Job, chunk.Result) {
	t.Helper()
	job := sqlcopy.New(db, testQueries)
	runner, err := chunk.New(job, chunk.WithChunkSize(size), chunk.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	assert.Equal(t, "sqlcopy", runner.Name())
	return job, runner.Execute(context.Background())
}

func TestJob_TransactionPerChunk(t *testing.T) {
	db := &fakeDB{ids: idRange(25)}
	_, res := run(t, db, 10)

	require.NoError(t, res.Err)
	assert.Equal(t, 25, res.Processed)
	assert.Equal(t, 3, db.begins)
	assert.Equal(t, 3, db.commits)
	assert.Zero(t, db.rollbacks)
	assert.Equal(t, idRange(25), db.applied)
	assert.False(t, res.Report.HasErrors())
}

func TestJob_ConstraintViolationIsRecorded(t *testing.T) {
	violation := &pgconn.PgError{Code: "23505", ConstraintName: "dst_pkey", Message: "duplicate key"}
	db := &fakeDB{
		ids:      idRange(6),
		applyErr: map[int64]error{2: violation, 5: violation},
		noRows:   map[int64]bool{6: true},
	}
	_, res := run(t, db, 3)

	require.NoError(t, res.Err)
	assert.Equal(t, 6, res.Processed)
	assert.Equal(t, 2, db.commits)
	assert.Equal(t, []int64{1, 3, 4}, db.applied)

	assert.Equal(t, []string{"constraint dst_pkey violated", sqlcopy.MsgNoRows}, res.Report.Messages())
	assert.Equal(t, 2, res.Report.Count("constraint dst_pkey violated"))
	assert.ErrorIs(t, res.Report.Detail("constraint dst_pkey violated"), violation)
	assert.Contains(t, db.execs, "ROLLBACK")
}

func TestJob_OtherErrorsAreFatal(t *testing.T) {
	db := &fakeDB{
		ids:      idRange(6),
		applyErr: map[int64]error{5: &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}},
	}
	job, res := run(t, db, 3)

	var stageErr *chunk.StageError
	require.ErrorAs(t, res.Err, &stageErr)
	assert.Equal(t, chunk.StageMap, stageErr.Stage)
	assert.Equal(t, 2, stageErr.Chunk)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 1, db.commits)

	require.NoError(t, job.Close(context.Background()))
	assert.Equal(t, 1, db.rollbacks)
	require.NoError(t, job.Close(context.Background()))
	assert.Equal(t, 1, db.rollbacks)
}

func TestJob_PreprocessRequiresQueries(t *testing.T) {
	job := sqlcopy.New(&fakeDB{}, sqlcopy.Queries{IDs: "SELECT 1"})
	err := job.Preprocess(context.Background())
	require.ErrorIs(t, err, sqlcopy.ErrMissingQuery)
	assert.Contains(t, err.Error(), "select")
	assert.Contains(t, err.Error(), "apply")

	runner, err := chunk.New(job, chunk.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	res := runner.Execute(context.Background())
	var stageErr *chunk.StageError
	require.ErrorAs(t, res.Err, &stageErr)
	assert.Equal(t, chunk.StagePreprocess, stageErr.Stage)
}

func TestJob_StepsWithoutTransaction(t *testing.T) {
	job := sqlcopy.New(&fakeDB{}, testQueries)
	ctx := context.Background()

	_, err := job.ResolveChunk(ctx, []int64{1})
	require.ErrorIs(t, err, sqlcopy.ErrNoTransaction)
	_, err = job.MapRecord(ctx, sqlcopy.Record{ID: 1}, chunk.NewErrorReport("x"))
	require.ErrorIs(t, err, sqlcopy.ErrNoTransaction)
	require.ErrorIs(t, job.AfterChunk(ctx), sqlcopy.ErrNoTransaction)
	require.NoError(t, job.Close(ctx))
}
