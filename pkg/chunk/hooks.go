package chunk

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RunInfo identifies a run for hooks.
type RunInfo struct {
	Name      string
	RunID     string
	ChunkSize int
	StartedAt time.Time
}

// ChunkInfo describes a chunk that has just finished.
type ChunkInfo struct {
	Run RunInfo

	// Index is the 1-based chunk number.
	Index int

	// IDs is the number of ids in the chunk.
	IDs int

	// Records is the number of records mapped in the chunk.
	Records int

	// Total is the number of records mapped in the run so far.
	Total int

	Progress ProgressSnapshot
}

// Hooks lets callers redirect or enrich run logging without touching the chunk loop.
// Any nil field falls back to a debug-level message on the run's logger, which is also
// available to custom hooks through zerolog.Ctx(ctx).
type Hooks struct {
	OnRunStart      func(ctx context.Context, run RunInfo)
	OnRunEnd        func(ctx context.Context, run RunInfo, processed int)
	OnChunkFinished func(ctx context.Context, chunk ChunkInfo)
	OnRunFailed     func(ctx context.Context, run RunInfo, err error)
}

func (h Hooks) runStart(ctx context.Context, run RunInfo) {
	if h.OnRunStart != nil {
		h.OnRunStart(ctx, run)
		return
	}
	zerolog.Ctx(ctx).Debug().Msgf("Started %s", run.Name)
}

func (h Hooks) runEnd(ctx context.Context, run RunInfo, processed int) {
	if h.OnRunEnd != nil {
		h.OnRunEnd(ctx, run, processed)
		return
	}
	zerolog.Ctx(ctx).Debug().Int("processed", processed).Msgf("Process ended %s", run.Name)
}

func (h Hooks) chunkFinished(ctx context.Context, chunk ChunkInfo) {
	if h.OnChunkFinished != nil {
		h.OnChunkFinished(ctx, chunk)
		return
	}
	zerolog.Ctx(ctx).Debug().
		Int("chunk", chunk.Index).
		Int("total_chunks", chunk.Progress.TotalChunks).
		Msgf("%s processed %d records", chunk.Run.Name, chunk.Records)
}

func (h Hooks) runFailed(ctx context.Context, run RunInfo, err error) {
	if h.OnRunFailed != nil {
		h.OnRunFailed(ctx, run, err)
		return
	}
	zerolog.Ctx(ctx).Debug().Err(err).Msgf("%s process failed", run.Name)
}
