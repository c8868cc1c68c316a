package stepline

import (
	"context"
	"sync"
	"time"

	"github.com/mharju/stepline/pkg/flow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusObserver exports run and step counters to a Prometheus
// registry. Combine it with other observers via NewCompositeObserver:
//
//	obs := stepline.NewCompositeObserver(
//	    stepline.NewPrometheusObserver(prometheus.DefaultRegisterer),
//	    jrn.Observer(),
//	)
type PrometheusObserver struct {
	tasksStarted  prometheus.Counter
	tasksFinished *prometheus.CounterVec
	stepsDone     *prometheus.CounterVec
	stepDuration  prometheus.Histogram
	jumps         prometheus.Counter

	mu        sync.Mutex
	startedAt map[stepKey]time.Time
}

type stepKey struct {
	runID string
	index int
}

// Ensure PrometheusObserver implements Observer.
var _ Observer = (*PrometheusObserver)(nil)

// NewPrometheusObserver creates an Observer whose collectors are registered
// with reg. Registering twice with the same registry panics, per the usual
// prometheus client semantics.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	factory := promauto.With(reg)
	return &PrometheusObserver{
		tasksStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stepline",
			Name:      "tasks_started_total",
			Help:      "Number of task runs started.",
		}),
		tasksFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stepline",
			Name:      "tasks_finished_total",
			Help:      "Number of task runs finished, by terminal status.",
		}, []string{"status"}),
		stepsDone: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stepline",
			Name:      "steps_done_total",
			Help:      "Number of step completions, by outcome.",
		}, []string{"outcome"}),
		stepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "stepline",
			Name:      "step_duration_seconds",
			Help:      "Time from step start to its completion signal.",
			Buckets:   prometheus.DefBuckets,
		}),
		jumps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stepline",
			Name:      "jumps_total",
			Help:      "Number of non-linear step transitions taken.",
		}),
		startedAt: make(map[stepKey]time.Time),
	}
}

func (o *PrometheusObserver) OnTaskStart(ctx context.Context, t *flow.Task) {
	o.tasksStarted.Inc()
}

func (o *PrometheusObserver) OnTaskFinished(ctx context.Context, t *flow.Task, lastStep string, err error) {
	status := "completed"
	if err != nil {
		status = "failed"
	}
	o.tasksFinished.WithLabelValues(status).Inc()

	// Steps that completed via Jump or End never report a step-done signal;
	// drop their pending start marks.
	o.mu.Lock()
	for key := range o.startedAt {
		if key.runID == t.RunID() {
			delete(o.startedAt, key)
		}
	}
	o.mu.Unlock()
}

func (o *PrometheusObserver) OnStepStart(ctx context.Context, t *flow.Task, stepName string, idx int) {
	o.mu.Lock()
	o.startedAt[stepKey{t.RunID(), idx}] = time.Now()
	o.mu.Unlock()
}

func (o *PrometheusObserver) OnStepDone(ctx context.Context, t *flow.Task, stepName string, idx int, err error) {
	key := stepKey{t.RunID(), idx}
	o.mu.Lock()
	started, ok := o.startedAt[key]
	delete(o.startedAt, key)
	o.mu.Unlock()
	if ok {
		o.stepDuration.Observe(time.Since(started).Seconds())
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	o.stepsDone.WithLabelValues(outcome).Inc()
}

func (o *PrometheusObserver) OnJump(ctx context.Context, t *flow.Task, from, to int, target string) {
	if from != to {
		o.jumps.Inc()
	}
}
