package chunk

import (
	"errors"
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// stackTracer is implemented by errors created or wrapped by github.com/pkg/errors.
type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// StackTrace renders err with its wrapped causes and, when one is attached anywhere in the
// chain, the innermost-captured stack trace. Returns "<nil>" for a nil error.
func StackTrace(err error) string {
	if err == nil {
		return "<nil>"
	}

	var b strings.Builder
	b.WriteString(err.Error())

	prev := err.Error()
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		msg := cause.Error()
		if msg == prev {
			continue
		}
		b.WriteString("\ncaused by: ")
		b.WriteString(msg)
		prev = msg
	}

	if st := innermostStack(err); st != nil {
		fmt.Fprintf(&b, "%+v", st.StackTrace())
	}

	return b.String()
}

// innermostStack returns the deepest stackTracer on the Unwrap chain, which is the one
// captured closest to the failure. Chains that fan out (errors.Join) fall back to errors.As.
func innermostStack(err error) stackTracer {
	var found stackTracer
	for e := err; e != nil; e = errors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			found = st
		}
	}
	if found != nil {
		return found
	}
	var st stackTracer
	if errors.As(err, &st) {
		return st
	}
	return nil
}

// withStack attaches the caller's stack to err unless the chain already carries one.
func withStack(err error) error {
	if err == nil {
		return nil
	}
	var st stackTracer
	if errors.As(err, &st) {
		return err
	}
	return pkgerrors.WithStack(err)
}
