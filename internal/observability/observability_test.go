package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, slog.LevelInfo, "json")

	logger.Debug("hidden")
	logger.Info("run complete", "claims", 42)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run complete", entry["msg"])
	assert.Equal(t, "storm-claims-risk", entry["service"])
	assert.InDelta(t, 42, entry["claims"], 0)
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, slog.LevelDebug, "text")

	logger.Debug("branch fitted", "branch", "all")
	assert.Contains(t, buf.String(), "branch=all")
	assert.Contains(t, buf.String(), "level=DEBUG")
}

func TestMetricsForTesting_Register(t *testing.T) {
	m := NewMetricsForTesting()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(m.ClaimsRead))
	require.NoError(t, reg.Register(m.BranchFailures))

	m.ClaimsRead.Add(3)
	m.BranchFailures.WithLabelValues("before_1991", "insufficient_data").Inc()

	assert.InDelta(t, 3, testutil.ToFloat64(m.ClaimsRead), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.BranchFailures))
}
