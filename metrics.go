package after

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksScheduled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "after_tasks_scheduled_total",
		Help: "Deferred tasks accepted by Schedule, by kind.",
	}, []string{"kind"})

	callbackFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "after_callback_failures_total",
		Help: "Deferred callbacks which panicked or returned an error.",
	})

	drainsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "after_drains_completed_total",
		Help: "Drain passes which ran to completion.",
	})
)
