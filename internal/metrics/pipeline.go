package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcomes used as the "outcome" label.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Pipeline holds the collectors of the transcription pipeline.
type Pipeline struct {
	RunsTotal     *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	StageFailures *prometheus.CounterVec
	CleanupErrors prometheus.Counter
	RunsInFlight  prometheus.Gauge
}

// NewPipeline registers the pipeline collectors on reg. A nil reg keeps them
// unregistered, which tests use to avoid global state.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	factory := promauto.With(reg)
	return &Pipeline{
		// Labels: outcome (success/failure)
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clipscribe_runs_total",
				Help: "Total number of pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		// Labels: stage (download/rename/extract/transcribe/cleanup)
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clipscribe_stage_duration_seconds",
				Help:    "Pipeline stage duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"stage"},
		),
		// Labels: stage, kind (error kind code)
		StageFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clipscribe_stage_failures_total",
				Help: "Total number of stage failures by stage and error kind",
			},
			[]string{"stage", "kind"},
		),
		CleanupErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "clipscribe_cleanup_errors_total",
				Help: "Total number of artifacts that could not be removed",
			},
		),
		RunsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "clipscribe_runs_in_flight",
				Help: "Number of pipeline runs currently executing",
			},
		),
	}
}

// RecordRun counts a finished run.
func (p *Pipeline) RecordRun(success bool) {
	outcome := OutcomeSuccess
	if !success {
		outcome = OutcomeFailure
	}
	p.RunsTotal.WithLabelValues(outcome).Inc()
}

// RecordStage observes how long a stage took.
func (p *Pipeline) RecordStage(stage string, elapsed time.Duration) {
	p.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// RecordFailure counts a stage failure of the given kind.
func (p *Pipeline) RecordFailure(stage, kind string) {
	p.StageFailures.WithLabelValues(stage, kind).Inc()
}

// RecordCleanupErrors adds n failed removals.
func (p *Pipeline) RecordCleanupErrors(n int) {
	if n > 0 {
		p.CleanupErrors.Add(float64(n))
	}
}
