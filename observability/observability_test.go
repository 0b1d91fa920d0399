package observability

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LdDl/mot-pose/mot"
)

func TestMetricsObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.FrameProcessed(0, true, 2)
	m.FrameProcessed(1, false, 2)
	m.FrameProcessed(2, false, 1)
	m.TrackCreated(0, mot.NewRect(0, 0, 10, 10))
	m.TrackCreated(1, mot.NewRect(50, 0, 10, 10))
	m.TrackEvicted(1, mot.EvictedLowQuality, 3.5)
	m.CandidatesSkipped(4)
	m.DetectorLatency(20 * time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesProcessed.WithLabelValues("detection")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesProcessed.WithLabelValues("tracking")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TracksCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TracksEvicted.WithLabelValues("low_quality")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.TracksEvicted.WithLabelValues("unclaimed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveTracks))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.SkippedCandidates))
	assert.Equal(t, 1, testutil.CollectAndCount(m.DetectorDuration))
}

func TestNewMetricsRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("visible", "track_id", 7)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "visible", record["msg"])
	assert.Equal(t, 7.0, record["track_id"])

	buf.Reset()
	NewLogger(&buf, "bogus", "text").Debug("dropped")
	assert.Zero(t, buf.Len())
}
