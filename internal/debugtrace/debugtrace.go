// Package debugtrace wires golang.org/x/net/trace event logs for an engine
// run (cmd/reframer records process errors and reschedule requests), viewed
// live at /debug/requests and /debug/events on the same mux metrics serves.
package debugtrace

import (
	"golang.org/x/net/trace"
)

// Tracer groups one x/net/trace family for a single engine run.
type Tracer struct {
	tr trace.Trace
}

// New starts a trace.Trace under the given family and title (cmd/reframer
// uses the manifest run ID as the title), visible at /debug/events once the
// mux is serving.
func New(family, title string) *Tracer {
	return &Tracer{tr: trace.New(family, title)}
}

// Eventf records one formatted event on the trace.
func (t *Tracer) Eventf(format string, args ...any) {
	if t == nil || t.tr == nil {
		return
	}
	t.tr.LazyPrintf(format, args...)
}

// Errorf records an event and marks the trace as errored.
func (t *Tracer) Errorf(format string, args ...any) {
	if t == nil || t.tr == nil {
		return
	}
	t.tr.LazyPrintf(format, args...)
	t.tr.SetError()
}

// Finish closes the trace, matching fmt.Stringer-style finalizers elsewhere
// in the teacher's code.
func (t *Tracer) Finish() {
	if t == nil || t.tr == nil {
		return
	}
	t.tr.Finish()
}
