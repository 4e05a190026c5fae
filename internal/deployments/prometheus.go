package deployments

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deploymentsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "harborcd",
		Subsystem: "deployments",
		Name:      "created_total",
		Help:      "Deployments created.",
	})
	deploymentsSucceeded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "harborcd",
		Subsystem: "deployments",
		Name:      "succeeded_total",
		Help:      "Deployments that completed every stage.",
	})
	deploymentsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "harborcd",
		Subsystem: "deployments",
		Name:      "failed_total",
		Help:      "Deployments that failed a stage or were rejected.",
	})
	rollbacksExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "harborcd",
		Subsystem: "deployments",
		Name:      "rollbacks_total",
		Help:      "Rollbacks executed.",
	})
)
