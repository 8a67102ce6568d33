// Package metrics exposes prometheus collectors for chat turns and indexing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors. A nil *Metrics records nothing.
type Metrics struct {
	turns           *prometheus.CounterVec
	remoteFallbacks prometheus.Counter
	reindexes       prometheus.Counter
	turnDuration    prometheus.Histogram
	streamRequests  *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "profilechat",
			Name:      "chat_turns_total",
			Help:      "Chat turns by engine path and outcome.",
		}, []string{"path", "outcome"}),
		remoteFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: "profilechat",
			Name:      "remote_fallbacks_total",
			Help:      "Turns that fell back from the remote server to the local engine.",
		}),
		reindexes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "profilechat",
			Name:      "profile_reindex_total",
			Help:      "Full re-indexes of the profile document.",
		}),
		turnDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "profilechat",
			Name:      "chat_turn_duration_seconds",
			Help:      "Wall time of a chat turn.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		streamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "profilechat",
			Name:      "server_stream_requests_total",
			Help:      "chat_stream requests served, by status.",
		}, []string{"status"}),
	}
}

// Turn records a finished chat turn.
func (m *Metrics) Turn(path, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(path, outcome).Inc()
	m.turnDuration.Observe(time.Since(started).Seconds())
}

// RemoteFallback records a remote-to-local fallback.
func (m *Metrics) RemoteFallback() {
	if m == nil {
		return
	}
	m.remoteFallbacks.Inc()
}

// Reindex records a full re-index.
func (m *Metrics) Reindex() {
	if m == nil {
		return
	}
	m.reindexes.Inc()
}

// StreamRequest records a chat_stream request served by the HTTP server.
func (m *Metrics) StreamRequest(status string) {
	if m == nil {
		return
	}
	m.streamRequests.WithLabelValues(status).Inc()
}
