// Package metrics defines a small recorder interface decoupling the core
// pipeline from any specific metrics backend. cmd/pdfstreamd is free to
// wire a Prometheus-backed implementation; the core only depends on this
// interface, never on a concrete metrics client library.
package metrics

import (
	"time"

	"github.com/iiifstream/pdfstream/internal/platform/logger"
)

// Recorder records counters and durations, tagged with free-form label
// strings (e.g. a host name, a canvas format).
type Recorder interface {
	IncCounter(name string, tags ...string)
	ObserveDuration(name string, d time.Duration, tags ...string)
}

// Nop discards every observation; the default for callers that don't need
// metrics at all.
type Nop struct{}

func (Nop) IncCounter(name string, tags ...string)                   {}
func (Nop) ObserveDuration(name string, d time.Duration, tags ...string) {}

// LoggingRecorder logs every observation at debug level. It is useful for
// local development and for the HTTP server before a real metrics backend
// is wired in.
type LoggingRecorder struct {
	Log *logger.Logger
}

func (r LoggingRecorder) IncCounter(name string, tags ...string) {
	r.Log.Debug("metric counter", "name", name, "tags", tags)
}

func (r LoggingRecorder) ObserveDuration(name string, d time.Duration, tags ...string) {
	r.Log.Debug("metric duration", "name", name, "duration", d, "tags", tags)
}
