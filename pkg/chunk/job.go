package chunk

import (
	"context"
	"fmt"
	"strings"
)

// Job supplies the steps of a chunked run.
//
// The type parameters are:
//   - K: id type
//   - T: record type resolved from a chunk of ids
//   - R: result type produced from one record (counted, never retained)
type Job[K, T, R any] interface {
	// IDs returns the complete, ordered list of ids to process.
	IDs(ctx context.Context) ([]K, error)

	// ResolveChunk returns the records for one chunk of ids. The record count need not
	// match the id count; records are what the run counts.
	ResolveChunk(ctx context.Context, ids []K) ([]T, error)

	// MapRecord transforms one record. Failures that should not stop the run are recorded
	// in report and MapRecord returns normally; a returned error aborts the run.
	MapRecord(ctx context.Context, record T, report *ErrorReport) (R, error)

	// BeforeChunk runs once per chunk, before the chunk is resolved.
	BeforeChunk(ctx context.Context) error

	// AfterChunk runs once per chunk, after every record of the chunk is mapped.
	AfterChunk(ctx context.Context) error
}

// Preprocessor is implemented by jobs that need setup once per run, before ids are fetched.
type Preprocessor interface {
	Preprocess(ctx context.Context) error
}

// Postprocessor is implemented by jobs that need teardown once per run, after the last chunk.
type Postprocessor interface {
	Postprocess(ctx context.Context) error
}

// Namer is implemented by jobs that name themselves for logs and reports.
// An empty name falls back to the job's type name.
type Namer interface {
	Name() string
}

// Funcs adapts plain functions to Job. Fetch, Resolve and Map are required;
// nil hooks do nothing.
type Funcs[K, T, R any] struct {
	Label   string
	Fetch   func(ctx context.Context) ([]K, error)
	Resolve func(ctx context.Context, ids []K) ([]T, error)
	Map     func(ctx context.Context, record T, report *ErrorReport) (R, error)
	Before  func(ctx context.Context) error
	After   func(ctx context.Context) error
	Pre     func(ctx context.Context) error
	Post    func(ctx context.Context) error
}

// IDs implements Job.
func (f Funcs[K, T, R]) IDs(ctx context.Context) ([]K, error) {
	return f.Fetch(ctx)
}

// ResolveChunk implements Job.
func (f Funcs[K, T, R]) ResolveChunk(ctx context.Context, ids []K) ([]T, error) {
	return f.Resolve(ctx, ids)
}

// MapRecord implements Job.
func (f Funcs[K, T, R]) MapRecord(ctx context.Context, record T, report *ErrorReport) (R, error) {
	return f.Map(ctx, record, report)
}

// BeforeChunk implements Job.
func (f Funcs[K, T, R]) BeforeChunk(ctx context.Context) error {
	return callHook(ctx, f.Before)
}

// AfterChunk implements Job.
func (f Funcs[K, T, R]) AfterChunk(ctx context.Context) error {
	return callHook(ctx, f.After)
}

// Preprocess implements Preprocessor.
func (f Funcs[K, T, R]) Preprocess(ctx context.Context) error {
	return callHook(ctx, f.Pre)
}

// Postprocess implements Postprocessor.
func (f Funcs[K, T, R]) Postprocess(ctx context.Context) error {
	return callHook(ctx, f.Post)
}

// Name implements Namer.
func (f Funcs[K, T, R]) Name() string {
	return f.Label
}

func (f Funcs[K, T, R]) validate() error {
	switch {
	case f.Fetch == nil:
		return fmt.Errorf("%w: Fetch", ErrMissingFunc)
	case f.Resolve == nil:
		return fmt.Errorf("%w: Resolve", ErrMissingFunc)
	case f.Map == nil:
		return fmt.Errorf("%w: Map", ErrMissingFunc)
	}
	return nil
}

func callHook(ctx context.Context, hook func(context.Context) error) error {
	if hook == nil {
		return nil
	}
	return hook(ctx)
}

// typeName returns the bare type name of v, without pointer, package path or type arguments.
func typeName(v any) string {
	name := strings.TrimLeft(fmt.Sprintf("%T", v), "*")
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
