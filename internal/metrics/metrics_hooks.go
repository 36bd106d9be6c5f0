package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HookOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packages_hook_operations_total",
			Help: "Webhook enable and disable operations by result",
		},
		[]string{"provider", "operation", "result"},
	)

	WebhooksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packages_webhooks_received_total",
			Help: "Push callbacks received by result",
		},
		[]string{"result"},
	)
)

// Result labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultIgnored = "ignored"
)
