// Package numbers provides a synthetic chunk job over consecutive integers.
//
// The job turns each id into its decimal string, parses it back and returns the number. Ids listed
// in Warnings are recorded in the run's error report without stopping the run, which makes the job
// a convenient way to see chunking, counting and report rendering end to end.
package numbers

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/jollyblade/jollykit/pkg/chunk"
)

// Name is the processor name used in logs and reports.
const Name = "numbers"

// Warning messages used by DefaultWarnings.
const (
	WarnCouldNotProcess = "Could not process number!!!"
	WarnTooBig          = "This is too big already!!!"
)

// DefaultWarnings returns the sample warning table.
func DefaultWarnings() map[int64]string {
	return map[int64]string{
		100:  WarnCouldNotProcess,
		200:  WarnCouldNotProcess,
		1000: WarnTooBig,
		2000: WarnTooBig,
	}
}

// Job processes the ids 0..Count-1.
type Job struct {
	Count    int
	Warnings map[int64]string

	before atomic.Int64
	after  atomic.Int64
}

var (
	_ chunk.Job[int64, string, int64] = (*Job)(nil)
	_ chunk.Namer                     = (*Job)(nil)
)

// New returns a Job over count ids using warnings. A nil warnings map records nothing.
func New(count int, warnings map[int64]string) *Job {
	return &Job{Count: count, Warnings: warnings}
}

// Name implements chunk.Namer.
func (j *Job) Name() string {
	return Name
}

// IDs implements chunk.Job.
func (j *Job) IDs(_ context.Context) ([]int64, error) {
	if j.Count < 0 {
		return nil, fmt.Errorf("negative count %d", j.Count)
	}
	ids := make([]int64, j.Count)
	for i := range ids {
		ids[i] = int64(i)
	}
	return ids, nil
}

// ResolveChunk implements chunk.Job.
func (j *Job) ResolveChunk(_ context.Context, ids []int64) ([]string, error) {
	records := make([]string, len(ids))
	for i, id := range ids {
		records[i] = strconv.FormatInt(id, 10)
	}
	return records, nil
}

// MapRecord implements chunk.Job.
func (j *Job) MapRecord(ctx context.Context, record string, report *chunk.ErrorReport) (int64, error) {
	n, err := strconv.ParseInt(record, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing record %q: %w", record, err)
	}
	if msg, ok := j.Warnings[n]; ok {
		zerolog.Ctx(ctx).Trace().Int64("number", n).Msg(msg)
		report.Append(msg)
	}
	return n, nil
}

// BeforeChunk implements chunk.Job.
func (j *Job) BeforeChunk(_ context.Context) error {
	j.before.Add(1)
	return nil
}

// AfterChunk implements chunk.Job.
func (j *Job) AfterChunk(_ context.Context) error {
	j.after.Add(1)
	return nil
}

// Chunks returns how many chunks were started and finished.
func (j *Job) Chunks() (started, finished int) {
	return int(j.before.Load()), int(j.after.Load())
}
