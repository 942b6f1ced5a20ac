package chunk

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// ErrorReport collects non-fatal failures during a run. Failures are keyed by their exact
// message text: repeats only increase the count, and the first error recorded for a message is
// the one kept as its detail.
//
// ErrorReport is safe for concurrent use. Under concurrent first arrival the detail recorded
// first under the report's lock wins.
type ErrorReport struct {
	name string

	mu      sync.Mutex
	total   int
	order   []string
	counts  map[string]int
	details map[string]error
}

// NewErrorReport creates an empty report titled name.
func NewErrorReport(name string) *ErrorReport {
	return &ErrorReport{
		name:    name,
		counts:  make(map[string]int),
		details: make(map[string]error),
	}
}

// Name returns the report title.
func (r *ErrorReport) Name() string {
	return r.name
}

// Append records one occurrence of message without a detail.
func (r *ErrorReport) Append(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.countLocked(message)
}

// AppendError records one occurrence of message. err becomes the message's detail only if
// no detail has been stored for it yet; a nil err behaves like Append.
func (r *ErrorReport) AppendError(message string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.countLocked(message)
	if err == nil {
		return
	}
	if _, ok := r.details[message]; !ok {
		r.details[message] = withStack(err)
	}
}

func (r *ErrorReport) countLocked(message string) {
	if _, seen := r.counts[message]; !seen {
		r.order = append(r.order, message)
	}
	r.counts[message]++
	r.total++
}

// HasErrors reports whether anything was appended.
func (r *ErrorReport) HasErrors() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.total > 0
}

// Total returns the number of Append and AppendError calls.
func (r *ErrorReport) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.total
}

// Count returns how often message was recorded.
func (r *ErrorReport) Count(message string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.counts[message]
}

// Detail returns the first error recorded for message, or nil.
func (r *ErrorReport) Detail(message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.details[message]
}

// Messages returns the distinct messages in the order they were first recorded.
func (r *ErrorReport) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Render returns the human-readable summary: a header with the report name and total,
// then one block per distinct message.
func (r *ErrorReport) Render() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	b.WriteString(r.name)
	b.WriteString(" error report, there were ")
	b.WriteString(strconv.Itoa(r.total))
	b.WriteString(" errors in the process with the following messages:\n")

	for _, msg := range r.order {
		b.WriteString("Error occurred ")
		b.WriteString(strconv.Itoa(r.counts[msg]))
		b.WriteString(" times: ")
		b.WriteString(msg)

		detail, ok := r.details[msg]
		if !ok {
			b.WriteString("\n")
			continue
		}
		b.WriteString(", original error: ")
		b.WriteString(detail.Error())
		b.WriteString("\n")
		b.WriteString(StackTrace(detail))
		b.WriteString("\n")
	}

	return b.String()
}

// String implements fmt.Stringer.
func (r *ErrorReport) String() string {
	return r.Render()
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (r *ErrorReport) MarshalZerologObject(e *zerolog.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := zerolog.Dict()
	for _, msg := range r.order {
		counts.Int(msg, r.counts[msg])
	}
	e.Str("name", r.name).Int("total", r.total).Dict("messages", counts)
}

type reportKey struct{}

// ContextWithReport returns a copy of ctx carrying report.
func ContextWithReport(ctx context.Context, report *ErrorReport) context.Context {
	return context.WithValue(ctx, reportKey{}, report)
}

// ReportFromContext returns the run's error report, or nil outside a run.
func ReportFromContext(ctx context.Context) *ErrorReport {
	report, _ := ctx.Value(reportKey{}).(*ErrorReport)
	return report
}
