package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	blocksSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tftp",
			Subsystem: "session",
			Name:      "blocks_sent_total",
			Help:      "DATA blocks sent to peers.",
		},
	)
	blocksReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tftp",
			Subsystem: "session",
			Name:      "blocks_received_total",
			Help:      "DATA blocks accepted from peers.",
		},
	)
	bytesTransferred = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tftp",
			Subsystem: "session",
			Name:      "bytes_total",
			Help:      "Payload bytes moved, by direction.",
		},
		[]string{"direction"},
	)
	retransmits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tftp",
			Subsystem: "session",
			Name:      "retransmits_total",
			Help:      "Timer-driven retransmissions, by session mode.",
		},
		[]string{"mode"},
	)
	sessionsEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tftp",
			Subsystem: "session",
			Name:      "ended_total",
			Help:      "Terminated sessions, by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)
	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tftp",
			Subsystem: "session",
			Name:      "duration_seconds",
			Help:      "Session lifetime from start to termination.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"mode"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(blocksSent, blocksReceived, bytesTransferred, retransmits, sessionsEnded, sessionDuration)
	})
}

func RecordBlockSent(payloadLen int) {
	RegisterMetrics()
	blocksSent.Inc()
	bytesTransferred.WithLabelValues("out").Add(float64(payloadLen))
}

func RecordBlockReceived(payloadLen int) {
	RegisterMetrics()
	blocksReceived.Inc()
	bytesTransferred.WithLabelValues("in").Add(float64(payloadLen))
}

func RecordRetransmit(mode string) {
	RegisterMetrics()
	retransmits.WithLabelValues(mode).Inc()
}

func RecordSessionEnd(mode, outcome string, duration time.Duration) {
	RegisterMetrics()
	sessionsEnded.WithLabelValues(mode, outcome).Inc()
	sessionDuration.WithLabelValues(mode).Observe(duration.Seconds())
}
