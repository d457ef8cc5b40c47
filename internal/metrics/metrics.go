package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder counts gameplay and HTTP events on its own Prometheus registry.
// A nil *Recorder records nothing, so callers never need to check.
type Recorder struct {
	registry        *prometheus.Registry
	sessionsStarted prometheus.Counter
	progressSaves   *prometheus.CounterVec
	scoresRecorded  prometheus.Counter
	rejections      *prometheus.CounterVec
	requests        *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	winnersNotified prometheus.Counter
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "krosswordle",
			Name:      "sessions_started_total",
			Help:      "Daily attempts started.",
		}),
		progressSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "krosswordle",
			Name:      "progress_saves_total",
			Help:      "Autosave requests by outcome.",
		}, []string{"outcome"}),
		scoresRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "krosswordle",
			Name:      "scores_recorded_total",
			Help:      "Completed puzzles written to the leaderboard.",
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "krosswordle",
			Name:      "rejected_requests_total",
			Help:      "Gameplay requests refused, by reason.",
		}, []string{"reason"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "krosswordle",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "krosswordle",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		winnersNotified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "krosswordle",
			Name:      "winners_notifications_total",
			Help:      "Monthly winner emails sent.",
		}),
	}
	r.registry.MustRegister(
		r.sessionsStarted, r.progressSaves, r.scoresRecorded, r.rejections,
		r.requests, r.requestLatency, r.winnersNotified,
	)
	return r
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) SessionStarted() {
	if r == nil {
		return
	}
	r.sessionsStarted.Inc()
}

// ProgressSaved counts an autosave; err nil means it was stored
func (r *Recorder) ProgressSaved(err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.progressSaves.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ScoreRecorded() {
	if r == nil {
		return
	}
	r.scoresRecorded.Inc()
}

// Rejected counts a refused gameplay request, e.g. "frozen" or "completed"
func (r *Recorder) Rejected(reason string) {
	if r == nil {
		return
	}
	r.rejections.WithLabelValues(reason).Inc()
}

func (r *Recorder) WinnersNotified() {
	if r == nil {
		return
	}
	r.winnersNotified.Inc()
}

// ObserveRequest records one served HTTP request
func (r *Recorder) ObserveRequest(route string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	r.requestLatency.WithLabelValues(route).Observe(d.Seconds())
}
