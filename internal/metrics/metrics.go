// Package metrics exports decoder counters and the latest sensor state as
// Prometheus collectors.
package metrics

import (
	"net/http"
	"sync"

	"github.com/banshee-data/chirp/internal/chirp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chirp"

// Metrics contains all Prometheus metrics for the decoder. It implements
// serialmux.Observer.
type Metrics struct {
	// Parser counters, advanced by the delta between successive Stats
	BytesFed        prometheus.Counter
	BytesDiscarded  prometheus.Counter
	FramesDecoded   prometheus.Counter
	Resyncs         prometheus.Counter
	Compactions     prometheus.Counter
	TruncatedFrames prometheus.Counter
	PayloadErrors   prometheus.Counter
	BufferedBytes   prometheus.Gauge

	// Frame metrics
	TLVs      *prometheus.CounterVec
	FrameSize prometheus.Histogram

	// Latest sensor state
	PresenceState      prometheus.Gauge
	PresenceConfidence prometheus.Gauge
	TargetRange        prometheus.Gauge
	MotionDetected     prometheus.Gauge

	mu   sync.Mutex
	last chirp.Stats
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		BytesFed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_fed_total",
			Help:      "Total bytes read from the data port",
		}),
		BytesDiscarded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_discarded_total",
			Help:      "Total bytes dropped as noise, rejected markers or compaction",
		}),
		FramesDecoded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_decoded_total",
			Help:      "Total frames decoded",
		}),
		Resyncs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resyncs_total",
			Help:      "Total magic words rejected by header validation",
		}),
		Compactions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffer_compactions_total",
			Help:      "Total buffer compactions triggered by the size ceiling",
		}),
		TruncatedFrames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "truncated_frames_total",
			Help:      "Total frames carrying fewer TLVs than their header declared",
		}),
		PayloadErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payload_errors_total",
			Help:      "Total custom TLV payloads that failed to decode",
		}),
		BufferedBytes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffered_bytes",
			Help:      "Bytes awaiting decode in the parser buffer",
		}),

		TLVs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tlvs_total",
			Help:      "Total TLV records seen, by type name",
		}, []string{"type"}),
		FrameSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_size_bytes",
			Help:      "Total packet length of decoded frames",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 12), // 64B to 128KB
		}),

		PresenceState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "presence_state",
			Help:      "Latest presence state (0 absent, 1 present, 2 motion)",
		}),
		PresenceConfidence: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "presence_confidence_percent",
			Help:      "Latest presence confidence",
		}),
		TargetRange: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_range_meters",
			Help:      "Latest primary target range",
		}),
		MotionDetected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "motion_detected",
			Help:      "Latest motion flag (1 detected, 0 still)",
		}),
	}
}

// ObserveFrame records one decoded frame.
func (m *Metrics) ObserveFrame(f chirp.ParsedFrame) {
	m.FrameSize.Observe(float64(f.Header.TotalPacketLen))
	for _, t := range f.TLVs {
		m.TLVs.WithLabelValues(t.Name).Inc()
	}

	if p, ok := f.Presence(); ok {
		m.PresenceState.Set(float64(p.State))
		m.PresenceConfidence.Set(float64(p.Confidence))
		m.TargetRange.Set(p.RangeMeters())
	}
	if ti, ok := f.TargetInfo(); ok {
		m.TargetRange.Set(ti.RangeMeters())
	}
	if ms, ok := f.MotionStatus(); ok {
		if ms.Detected {
			m.MotionDetected.Set(1)
		} else {
			m.MotionDetected.Set(0)
		}
	}
}

// ObserveStats advances the counters to match st. Counters only move
// forward; a Stats value older than the last one observed is ignored field
// by field.
func (m *Metrics) ObserveStats(st chirp.Stats, buffered int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	add(m.BytesFed, m.last.BytesFed, st.BytesFed)
	add(m.BytesDiscarded, m.last.BytesDiscarded, st.BytesDiscarded)
	add(m.FramesDecoded, m.last.FramesEmitted, st.FramesEmitted)
	add(m.Resyncs, m.last.Resyncs, st.Resyncs)
	add(m.Compactions, m.last.Compactions, st.Compactions)
	add(m.TruncatedFrames, m.last.TruncatedFrames, st.TruncatedFrames)
	add(m.PayloadErrors, m.last.PayloadErrors, st.PayloadErrors)
	m.last = st

	m.BufferedBytes.Set(float64(buffered))
}

func add(c prometheus.Counter, prev, cur uint64) {
	if cur > prev {
		c.Add(float64(cur - prev))
	}
}

// Handler serves the collectors registered with g in the Prometheus text
// format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
