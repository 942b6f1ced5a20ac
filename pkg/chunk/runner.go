package chunk

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Default chunk configuration.
const (
	// DefaultChunkSize is the default number of ids per chunk.
	DefaultChunkSize = 500

	// MinChunkSize is the minimum allowed chunk size.
	MinChunkSize = 1
)

// Option configures a Runner.
type Option func(*options)

type options struct {
	chunkSize int
	name      string
	logger    *zerolog.Logger
	hooks     Hooks
}

// WithChunkSize sets the number of ids per chunk.
func WithChunkSize(n int) Option {
	return func(o *options) { o.chunkSize = n }
}

// WithName overrides the run name used in logs and the error report.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger. Defaults to the zerolog global logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = &logger }
}

// WithHooks sets the logging hooks. Nil fields keep their debug-level defaults.
func WithHooks(hooks Hooks) Option {
	return func(o *options) { o.hooks = hooks }
}

// Result describes a finished run.
type Result struct {
	// RunID identifies the run in logs.
	RunID string

	// Processed is the number of records mapped in completed chunks.
	Processed int

	// IDs is the number of ids the job returned.
	IDs int

	// Chunks is the number of chunks completed.
	Chunks int

	// TotalChunks is the number of chunks the ids were split into.
	TotalChunks int

	// Err is the run-fatal failure, always a *StageError, or nil.
	Err error

	// Report holds the non-fatal failures recorded during the run.
	Report *ErrorReport

	// Duration is the wall time of the run.
	Duration time.Duration
}

// Runner drives a Job through fixed-size chunks, one chunk at a time.
type Runner[K, T, R any] struct {
	job       Job[K, T, R]
	pre       Preprocessor
	post      Postprocessor
	name      string
	chunkSize int
	startedAt time.Time
	logger    zerolog.Logger
	hooks     Hooks

	progress atomic.Pointer[Progress]
}

// New creates a runner for job.
func New[K, T, R any](job Job[K, T, R], opts ...Option) (*Runner[K, T, R], error) {
	if any(job) == nil {
		return nil, ErrNilJob
	}
	if v, ok := any(job).(interface{ validate() error }); ok {
		if err := v.validate(); err != nil {
			return nil, err
		}
	}

	o := options{chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(&o)
	}

	if o.chunkSize < MinChunkSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, o.chunkSize)
	}

	r := &Runner[K, T, R]{
		job:       job,
		name:      o.name,
		chunkSize: o.chunkSize,
		startedAt: time.Now(),
		logger:    log.Logger,
		hooks:     o.hooks,
	}
	if o.logger != nil {
		r.logger = *o.logger
	}
	if p, ok := any(job).(Preprocessor); ok {
		r.pre = p
	}
	if p, ok := any(job).(Postprocessor); ok {
		r.post = p
	}
	if r.name == "" {
		if n, ok := any(job).(Namer); ok {
			r.name = n.Name()
		}
	}
	if r.name == "" {
		r.name = typeName(job)
	}

	return r, nil
}

// Name returns the run name.
func (r *Runner[K, T, R]) Name() string {
	return r.name
}

// ChunkSize returns the configured chunk size.
func (r *Runner[K, T, R]) ChunkSize() int {
	return r.chunkSize
}

// StartedAt returns when the runner was constructed.
func (r *Runner[K, T, R]) StartedAt() time.Time {
	return r.startedAt
}

// Progress returns the progress of the current or most recent run, or nil before the
// first run has fetched its ids.
func (r *Runner[K, T, R]) Progress() *Progress {
	return r.progress.Load()
}

// Run processes every chunk and returns the number of records mapped. It never fails:
// a run-fatal failure is logged and the count accumulated before it is returned.
func (r *Runner[K, T, R]) Run(ctx context.Context) int {
	return r.Execute(ctx).Processed
}

// Execute performs a run like Run and returns its full result.
func (r *Runner[K, T, R]) Execute(ctx context.Context) Result {
	start := time.Now()
	report := NewErrorReport(r.name)
	info := RunInfo{
		Name:      r.name,
		RunID:     ulid.Make().String(),
		ChunkSize: r.chunkSize,
		StartedAt: r.startedAt,
	}

	logger := r.logger.With().Str("processor", r.name).Str("run_id", info.RunID).Logger()
	ctx = ContextWithReport(logger.WithContext(ctx), report)

	res := Result{RunID: info.RunID, Report: report}
	res.Err = r.execute(ctx, info, report, &res)

	if res.Err != nil {
		logger.Error().Err(res.Err).Int("processed", res.Processed).Msgf("could not chunk-process %s", r.name)
		r.safeRunFailed(ctx, logger, info, res.Err)
	}

	if report.HasErrors() {
		logger.Error().Object("report", report).Msgf("errors in %s, %s", r.name, report.Render())
	}

	res.Duration = time.Since(start)
	return res
}

// execute runs steps from preprocess through the run-end hook. Panics are recovered
// and reported against the stage that raised them.
func (r *Runner[K, T, R]) execute(ctx context.Context, info RunInfo, report *ErrorReport, res *Result) (err error) {
	stage := StageHook
	chunkNo := 0

	defer func() {
		if rec := recover(); rec != nil {
			err = &StageError{Stage: stage, Chunk: chunkNo, Err: panicError(rec)}
		}
	}()

	r.hooks.runStart(ctx, info)

	stage = StagePreprocess
	if r.pre != nil {
		if err := r.pre.Preprocess(ctx); err != nil {
			return &StageError{Stage: stage, Err: err}
		}
	}

	stage = StageIDs
	ids, err := r.job.IDs(ctx)
	if err != nil {
		return &StageError{Stage: stage, Err: err}
	}

	chunks := Partition(ids, r.chunkSize)
	progress := NewProgress(len(ids), len(chunks), r.chunkSize)
	r.progress.Store(progress)
	res.IDs = len(ids)
	res.TotalChunks = len(chunks)

	for i, chunkIDs := range chunks {
		chunkNo = i + 1

		stage = StageContext
		if err := ctx.Err(); err != nil {
			return &StageError{Stage: stage, Chunk: chunkNo, Err: err}
		}

		stage = StageBeforeChunk
		if err := r.job.BeforeChunk(ctx); err != nil {
			return &StageError{Stage: stage, Chunk: chunkNo, Err: err}
		}

		stage = StageResolve
		records, err := r.job.ResolveChunk(ctx, chunkIDs)
		if err != nil {
			return &StageError{Stage: stage, Chunk: chunkNo, Err: err}
		}

		stage = StageMap
		count := 0
		for _, record := range records {
			if _, err := r.job.MapRecord(ctx, record, report); err != nil {
				return &StageError{Stage: stage, Chunk: chunkNo, Err: err}
			}
			count++
		}

		stage = StageAfterChunk
		if err := r.job.AfterChunk(ctx); err != nil {
			return &StageError{Stage: stage, Chunk: chunkNo, Err: err}
		}

		res.Processed += count
		res.Chunks++
		progress.AddChunk(len(chunkIDs), count)

		stage = StageHook
		r.hooks.chunkFinished(ctx, ChunkInfo{
			Run:      info,
			Index:    chunkNo,
			IDs:      len(chunkIDs),
			Records:  count,
			Total:    res.Processed,
			Progress: progress.Snapshot(),
		})
	}
	chunkNo = 0

	stage = StagePostprocess
	if r.post != nil {
		if err := r.post.Postprocess(ctx); err != nil {
			return &StageError{Stage: stage, Err: err}
		}
	}

	stage = StageHook
	r.hooks.runEnd(ctx, info, res.Processed)

	return nil
}

// safeRunFailed calls the run-failed hook, which sits outside execute's recovery.
func (r *Runner[K, T, R]) safeRunFailed(ctx context.Context, logger zerolog.Logger, info RunInfo, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Err(panicError(rec)).Msg("run failed hook panicked")
		}
	}()
	r.hooks.runFailed(ctx, info, err)
}
