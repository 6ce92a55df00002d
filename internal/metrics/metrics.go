// Package metrics exposes pipeline counters in the Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Metrics holds the collectors for one process. It satisfies listen.Observer.
type Metrics struct {
	Registry *prometheus.Registry

	ChunksCaptured prometheus.Counter
	BytesCaptured  prometheus.Counter
	CaptureErrors  *prometheus.CounterVec
	EvictedChunks  prometheus.Counter
	QueueSize      prometheus.Gauge
	IdleCycles     prometheus.Counter

	Transcriptions        *prometheus.CounterVec
	TranscriptionDuration prometheus.Histogram
	PhrasesCompleted      prometheus.Counter
	TranscriptLines       prometheus.Gauge

	HooksSent    prometheus.Counter
	HooksSkipped prometheus.Counter
	HooksDropped prometheus.Counter
	HookFailures prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		ChunksCaptured: f.NewCounter(prometheus.CounterOpts{
			Name: "hark_chunks_captured_total",
			Help: "Audio chunks pushed onto the queue",
		}),
		BytesCaptured: f.NewCounter(prometheus.CounterOpts{
			Name: "hark_captured_bytes_total",
			Help: "PCM16 bytes pushed onto the queue",
		}),
		CaptureErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hark_capture_errors_total",
			Help: "Capture read failures",
		}, []string{"kind"}),
		EvictedChunks: f.NewCounter(prometheus.CounterOpts{
			Name: "hark_chunks_evicted_total",
			Help: "Chunks dropped because the queue was full",
		}),
		QueueSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "hark_queue_depth",
			Help: "Chunks captured but not yet transcribed",
		}),
		IdleCycles: f.NewCounter(prometheus.CounterOpts{
			Name: "hark_idle_cycles_total",
			Help: "Scheduler cycles that found no audio",
		}),
		Transcriptions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hark_transcriptions_total",
			Help: "Transcription calls by outcome",
		}, []string{"result"}),
		TranscriptionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hark_transcription_duration_seconds",
			Help:    "Latency of transcription calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		PhrasesCompleted: f.NewCounter(prometheus.CounterOpts{
			Name: "hark_phrases_completed_total",
			Help: "Phrase boundaries detected",
		}),
		TranscriptLines: f.NewGauge(prometheus.GaugeOpts{
			Name: "hark_transcript_lines",
			Help: "Lines in the current transcript",
		}),
		HooksSent: f.NewCounter(prometheus.CounterOpts{
			Name: "hark_hooks_sent_total",
			Help: "Hook invocations that succeeded",
		}),
		HooksSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "hark_hooks_skipped_total",
			Help: "Lines not sent to the hook",
		}),
		HooksDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "hark_hooks_dropped_total",
			Help: "Lines dropped because the hook queue was full",
		}),
		HookFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "hark_hook_failures_total",
			Help: "Hook invocations that returned an error",
		}),
	}
}

func (m *Metrics) ChunkCaptured(n int) {
	m.ChunksCaptured.Inc()
	m.BytesCaptured.Add(float64(n))
}

func (m *Metrics) CaptureFailed(fatal bool) {
	kind := "transient"
	if fatal {
		kind = "fatal"
	}
	m.CaptureErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) ChunksEvicted(n int) { m.EvictedChunks.Add(float64(n)) }
func (m *Metrics) QueueDepth(n int)    { m.QueueSize.Set(float64(n)) }
func (m *Metrics) IdleCycle()          { m.IdleCycles.Inc() }

func (m *Metrics) Transcribed(latency time.Duration, err error) {
	if err != nil {
		m.Transcriptions.WithLabelValues("error").Inc()
		return
	}
	m.Transcriptions.WithLabelValues("ok").Inc()
	m.TranscriptionDuration.Observe(latency.Seconds())
}

func (m *Metrics) LineUpdated(phraseComplete bool, lines int) {
	if phraseComplete {
		m.PhrasesCompleted.Inc()
	}
	m.TranscriptLines.Set(float64(lines))
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger logrus.FieldLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	logger.Infof("metrics listening on http://%s/metrics", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
