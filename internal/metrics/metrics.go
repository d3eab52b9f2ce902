// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MarksSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "satresults_marks_saved_total",
			Help: "Mark entries written by batch saves",
		},
	)

	MarksSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satresults_marks_skipped_total",
			Help: "Mark entries skipped by batch saves, by reason",
		},
		[]string{"reason"},
	)

	FormulaFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "satresults_formula_failures_total",
			Help: "Criteria formulas rejected at compile or evaluation time",
		},
	)

	PlansComputed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "satresults_cgpa_plans_computed_total",
			Help: "CGPA plans evaluated",
		},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "satresults_http_request_duration_seconds",
			Help:    "HTTP request duration by route pattern and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
