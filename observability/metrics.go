package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/LdDl/mot-pose/mot"
)

const namespace = "posetrack"

var _ mot.Observer = (*Metrics)(nil)

// Metrics exports tracker lifecycle as Prometheus metrics. It implements mot.Observer.
type Metrics struct {
	FramesProcessed   *prometheus.CounterVec
	TracksCreated     prometheus.Counter
	TracksEvicted     *prometheus.CounterVec
	ActiveTracks      prometheus.Gauge
	DetectorDuration  prometheus.Histogram
	SkippedCandidates prometheus.Counter
}

// NewMetrics registers tracker metrics on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FramesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Total number of frames processed",
		}, []string{"kind"}),

		TracksCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracks_created_total",
			Help:      "Total number of tracks started",
		}),

		TracksEvicted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracks_evicted_total",
			Help:      "Total number of tracks removed",
		}, []string{"reason"}),

		ActiveTracks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_tracks",
			Help:      "Number of live tracks after the latest frame",
		}),

		DetectorDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detector_duration_seconds",
			Help:      "Duration of pose detector calls",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}),

		SkippedCandidates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_skipped_total",
			Help:      "Detector candidates without any usable keypoint",
		}),
	}
}

func (m *Metrics) FrameProcessed(frameIndex int, detectionFrame bool, activeTracks int) {
	kind := "tracking"
	if detectionFrame {
		kind = "detection"
	}
	m.FramesProcessed.WithLabelValues(kind).Inc()
	m.ActiveTracks.Set(float64(activeTracks))
}

func (m *Metrics) TrackCreated(id int, box mot.Rectangle) {
	m.TracksCreated.Inc()
}

func (m *Metrics) TrackEvicted(id int, reason mot.EvictionReason, quality float64) {
	m.TracksEvicted.WithLabelValues(string(reason)).Inc()
}

func (m *Metrics) CandidatesSkipped(n int) {
	m.SkippedCandidates.Add(float64(n))
}

func (m *Metrics) DetectorLatency(d time.Duration) {
	m.DetectorDuration.Observe(d.Seconds())
}
