// Package observability delivers structured failure reports for cache-layer
// connectivity and serialization problems. Delivery is best-effort: the cache
// never depends on a report being accepted.
package observability

import (
	"time"

	"github.com/google/uuid"

	"hvac-cache/internal/common/logging"
)

// FailureReport describes a single recovered cache-layer failure.
type FailureReport struct {
	ID         string    `json:"id"`
	Operation  string    `json:"operation"`
	Key        string    `json:"key,omitempty"`
	ContextTag string    `json:"context_tag"`
	Error      string    `json:"error"`
	Time       time.Time `json:"time"`
}

// Sink receives failure reports. Implementations must never block the caller
// for long and must never panic.
type Sink interface {
	Report(report FailureReport)
}

// NewReport builds a FailureReport with a fresh ID and timestamp.
func NewReport(operation, key, contextTag string, err error) FailureReport {
	report := FailureReport{
		ID:         uuid.NewString(),
		Operation:  operation,
		Key:        key,
		ContextTag: contextTag,
		Time:       time.Now(),
	}
	if err != nil {
		report.Error = err.Error()
	}
	return report
}

// LogSink writes failure reports to the structured log.
type LogSink struct {
	logger logging.Logger
}

// NewLogSink creates a sink backed by the given logger.
func NewLogSink(logger logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &LogSink{
		logger: logger.WithFields(logging.Field{Key: "component", Value: "cache-observability"}),
	}
}

func (s *LogSink) Report(report FailureReport) {
	s.logger.Warn("Cache failure reported",
		logging.Field{Key: "report_id", Value: report.ID},
		logging.Field{Key: "operation", Value: report.Operation},
		logging.Field{Key: "key", Value: report.Key},
		logging.Field{Key: "context", Value: report.ContextTag},
		logging.Field{Key: "error", Value: report.Error},
	)
}

// NopSink discards every report. Useful in tests and as a safe default.
type NopSink struct{}

func (NopSink) Report(FailureReport) {}
