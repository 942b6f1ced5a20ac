package chunk

import (
	"sync"
	"time"
)

// percentMultiplier is used to convert a ratio to percentage (0-100).
const percentMultiplier = 100

// Progress tracks how far a run has advanced through its chunks.
// Reads are safe from other goroutines while the run updates it.
type Progress struct {
	// TotalIDs is the number of ids returned by the job.
	TotalIDs int

	// ProcessedIDs is the number of ids in completed chunks.
	ProcessedIDs int

	// TotalChunks is the number of chunks the ids were split into.
	TotalChunks int

	// ProcessedChunks is the number of chunks whose AfterChunk hook returned.
	ProcessedChunks int

	// Records is the number of records mapped so far.
	Records int

	// ChunkSize is the configured chunk size.
	ChunkSize int

	// StartTime is when the chunk loop started.
	StartTime time.Time

	// LastUpdateTime is when progress was last updated.
	LastUpdateTime time.Time

	mu sync.RWMutex
}

// NewProgress creates a new progress tracker.
func NewProgress(totalIDs, totalChunks, chunkSize int) *Progress {
	now := time.Now()
	return &Progress{
		TotalIDs:       totalIDs,
		TotalChunks:    totalChunks,
		ChunkSize:      chunkSize,
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// AddChunk records a completed chunk of ids that produced records mapped records.
func (p *Progress) AddChunk(ids, records int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ProcessedIDs += ids
	p.ProcessedChunks++
	p.Records += records
	p.LastUpdateTime = time.Now()
}

// PercentComplete returns the completion percentage (0-100) by ids.
func (p *Progress) PercentComplete() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.percentCompleteUnsafe()
}

// IsComplete returns true if every chunk has been processed.
func (p *Progress) IsComplete() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.ProcessedChunks >= p.TotalChunks
}

// ElapsedTime returns the time elapsed since the chunk loop started.
func (p *Progress) ElapsedTime() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return time.Since(p.StartTime)
}

// EstimatedTimeRemaining estimates the remaining time based on ids processed so far.
// Returns 0 if no ids have been processed yet.
func (p *Progress) EstimatedTimeRemaining() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.ProcessedIDs == 0 {
		return 0
	}

	elapsed := time.Since(p.StartTime)
	avgPerID := elapsed / time.Duration(p.ProcessedIDs)
	remaining := p.TotalIDs - p.ProcessedIDs

	return avgPerID * time.Duration(remaining)
}

// RecordsPerSecond returns the mapping rate in records per second.
func (p *Progress) RecordsPerSecond() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.recordsPerSecondUnsafe()
}

// Snapshot returns a copy of the current progress state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return ProgressSnapshot{
		TotalIDs:         p.TotalIDs,
		ProcessedIDs:     p.ProcessedIDs,
		TotalChunks:      p.TotalChunks,
		ProcessedChunks:  p.ProcessedChunks,
		Records:          p.Records,
		ChunkSize:        p.ChunkSize,
		StartTime:        p.StartTime,
		LastUpdateTime:   p.LastUpdateTime,
		PercentComplete:  p.percentCompleteUnsafe(),
		ElapsedTime:      time.Since(p.StartTime),
		RecordsPerSecond: p.recordsPerSecondUnsafe(),
	}
}

// ProgressSnapshot is an immutable snapshot of progress state.
type ProgressSnapshot struct {
	TotalIDs         int
	ProcessedIDs     int
	TotalChunks      int
	ProcessedChunks  int
	Records          int
	ChunkSize        int
	StartTime        time.Time
	LastUpdateTime   time.Time
	PercentComplete  float64
	ElapsedTime      time.Duration
	RecordsPerSecond float64
}

// percentCompleteUnsafe must be called with the lock held.
// An empty run counts as complete.
func (p *Progress) percentCompleteUnsafe() float64 {
	if p.TotalIDs == 0 {
		return percentMultiplier
	}
	return (float64(p.ProcessedIDs) / float64(p.TotalIDs)) * percentMultiplier
}

// recordsPerSecondUnsafe must be called with the lock held.
func (p *Progress) recordsPerSecondUnsafe() float64 {
	elapsed := time.Since(p.StartTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(p.Records) / elapsed
}
