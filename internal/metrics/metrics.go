// Package metrics exposes experiment counters in Prometheus form. Each
// Recorder owns its registry so sweeps and tests never share state.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "firemaze"

type Recorder struct {
	reg *prometheus.Registry

	searches      *prometheus.CounterVec
	explored      *prometheus.HistogramVec
	trials        *prometheus.CounterVec
	fireTicks     prometheus.Histogram
	trialDuration *prometheus.HistogramVec
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,

		// Labels: algo (dfs, bfs, astar), outcome (found, unreachable)
		searches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Searches run, by algorithm and outcome",
		}, []string{"algo", "outcome"}),

		explored: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "nodes_explored",
			Help:      "Cells marked visited per search",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"algo"}),

		// Labels: strategy, outcome (escaped, burned, trapped, timeout)
		trials: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trials_total",
			Help:      "Fire trials run, by strategy and outcome",
		}, []string{"strategy", "outcome"}),

		fireTicks: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fire_ticks",
			Help:      "Agent moves per fire trial",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),

		trialDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trial_duration_seconds",
			Help:      "Wall time of a single trial",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"kind"}),
	}
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// ObserveSearch records one search. found is false for an unreachable goal.
func (r *Recorder) ObserveSearch(algo string, found bool, explored int) {
	if r == nil {
		return
	}
	outcome := "found"
	if !found {
		outcome = "unreachable"
	}
	r.searches.WithLabelValues(algo, outcome).Inc()
	r.explored.WithLabelValues(algo).Observe(float64(explored))
}

func (r *Recorder) ObserveTrial(strategy, outcome string, ticks int) {
	if r == nil {
		return
	}
	r.trials.WithLabelValues(strategy, outcome).Inc()
	r.fireTicks.Observe(float64(ticks))
}

func (r *Recorder) ObserveDuration(kind string, seconds float64) {
	if r == nil {
		return
	}
	r.trialDuration.WithLabelValues(kind).Observe(seconds)
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
