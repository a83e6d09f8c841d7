// Package metrics exposes Prometheus collectors for the scheduling engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsLaunched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "energybud_jobs_launched_total",
			Help: "Jobs launched, by scheduling phase.",
		},
		[]string{"phase"},
	)
	jobsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "energybud_jobs_rejected_total",
			Help: "Jobs rejected at submission for exceeding platform capacity.",
		},
	)
	queuedJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "energybud_queued_jobs",
			Help: "Jobs currently awaiting a decision.",
		},
	)
	freeHosts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "energybud_free_hosts",
			Help: "Hosts currently free.",
		},
	)
	availableEnergy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "energybud_available_energy_wh",
			Help: "Live available energy pool in watt-hours.",
		},
	)
	reservedEnergy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "energybud_reserved_energy_wh",
			Help: "Energy pledged to the active reservation in watt-hours.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		jobsLaunched,
		jobsRejected,
		queuedJobs,
		freeHosts,
		availableEnergy,
		reservedEnergy,
	)
}

// JobLaunched counts one launch for the given scheduling phase.
func JobLaunched(phase string) { jobsLaunched.WithLabelValues(phase).Inc() }

// JobRejected counts one submission-time rejection.
func JobRejected() { jobsRejected.Inc() }

// ObserveCycle records the engine snapshot taken after a decision cycle.
func ObserveCycle(queued, free int, availableWh, reservedWh float64) {
	queuedJobs.Set(float64(queued))
	freeHosts.Set(float64(free))
	availableEnergy.Set(availableWh)
	reservedEnergy.Set(reservedWh)
}

// Handler returns the HTTP handler serving the collected metrics.
func Handler() http.Handler { return promhttp.Handler() }
