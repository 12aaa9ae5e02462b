package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the voice pipeline. All
// Record helpers are nil-safe so callers can run without metrics (tests,
// METRICS_ADDR unset).
type Metrics struct {
	PacketsReceived    prometheus.Counter
	PacketsUndecodable prometheus.Counter
	SamplesAppended    prometheus.Counter

	UtterancesFinalized prometheus.Counter
	UtterancesEmpty     prometheus.Counter

	TranscriptionSuccesses prometheus.Counter
	TranscriptionNoResult  prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram

	AnnounceFailures prometheus.Counter
}

// New creates and registers all instruments on the default registry.
func New() *Metrics {
	return &Metrics{
		PacketsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scribe_packets_received_total",
			Help: "Total number of voice packets received",
		}),
		PacketsUndecodable: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scribe_packets_undecodable_total",
			Help: "Total number of voice packets without decodable audio",
		}),
		SamplesAppended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scribe_samples_appended_total",
			Help: "Total number of non-silence PCM samples accumulated",
		}),
		UtterancesFinalized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scribe_utterances_finalized_total",
			Help: "Total number of utterances handed to the finalizer",
		}),
		UtterancesEmpty: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scribe_utterances_empty_total",
			Help: "Total number of speaking stops with no accumulated audio",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scribe_transcription_successes_total",
			Help: "Total number of transcription requests that produced text",
		}),
		TranscriptionNoResult: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scribe_transcription_no_result_total",
			Help: "Total number of transcription requests that produced no transcript",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scribe_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scribe_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		AnnounceFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scribe_announce_failures_total",
			Help: "Total number of failed channel announcements",
		}),
	}
}

// RecordPacket counts a received packet and whether it carried decoded audio.
func (m *Metrics) RecordPacket(decoded bool) {
	if m == nil {
		return
	}
	m.PacketsReceived.Inc()
	if !decoded {
		m.PacketsUndecodable.Inc()
	}
}

// RecordAppend counts non-silence samples kept by the buffer store.
func (m *Metrics) RecordAppend(samples int) {
	if m == nil {
		return
	}
	m.SamplesAppended.Add(float64(samples))
}

// RecordFinalized counts an utterance handed to the finalizer.
func (m *Metrics) RecordFinalized() {
	if m == nil {
		return
	}
	m.UtterancesFinalized.Inc()
}

// RecordEmptyUtterance counts a speaking stop that drained nothing.
func (m *Metrics) RecordEmptyUtterance() {
	if m == nil {
		return
	}
	m.UtterancesEmpty.Inc()
}

// RecordTranscription records the outcome and duration of one transcription
// request. ok and noResult are mutually exclusive.
func (m *Metrics) RecordTranscription(ok, noResult bool, d time.Duration) {
	if m == nil {
		return
	}
	switch {
	case ok:
		m.TranscriptionSuccesses.Inc()
	case noResult:
		m.TranscriptionNoResult.Inc()
	default:
		m.TranscriptionFailures.Inc()
	}
	m.TranscriptionDuration.Observe(d.Seconds())
}

// RecordAnnounceFailure counts a failed channel announcement.
func (m *Metrics) RecordAnnounceFailure() {
	if m == nil {
		return
	}
	m.AnnounceFailures.Inc()
}

// Serve exposes /metrics on addr. It blocks, so run it on its own goroutine.
func Serve(addr string, handler http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	return http.ListenAndServe(addr, mux)
}
