package observability

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hvac-cache/internal/common/logging"
)

func TestNewReport(t *testing.T) {
	report := NewReport("l2_get", "customer:123", "cache-l2", errors.New("connection refused"))

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, "l2_get", report.Operation)
	assert.Equal(t, "customer:123", report.Key)
	assert.Equal(t, "cache-l2", report.ContextTag)
	assert.Equal(t, "connection refused", report.Error)
	assert.False(t, report.Time.IsZero())

	other := NewReport("l2_get", "customer:123", "cache-l2", nil)
	assert.NotEqual(t, report.ID, other.ID)
	assert.Empty(t, other.Error)
}

func TestLogSink_Report(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewZapLogger(logging.LogConfig{
		Level:  logging.DebugLevel,
		Output: &buf,
	})
	require.NoError(t, err)

	sink := NewLogSink(logger)
	sink.Report(NewReport("l2_set", "equipment:eq1", "cache-l2", errors.New("broken pipe")))

	output := buf.String()
	assert.Contains(t, output, "l2_set")
	assert.Contains(t, output, "equipment:eq1")
	assert.Contains(t, output, "broken pipe")
}

func TestNopSink_Report(t *testing.T) {
	// Must not panic
	NopSink{}.Report(NewReport("op", "", "tag", nil))
}
