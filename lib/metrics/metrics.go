// Package metrics defines the prometheus collectors of the faucet.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "faucet"

// Counters holds the faucet collectors.
type Counters struct {
	TotalRequests      prometheus.Counter
	SuccessfulRequests prometheus.Counter
	// FaucetBalance is the primary account balance in the smallest unit of the currency, as a float.
	FaucetBalance prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Counters {
	c := &Counters{
		TotalRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of drip requests received.",
		}),
		SuccessfulRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "successful_requests_total",
			Help:      "Number of drip requests that ended in a transfer.",
		}),
		FaucetBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "balance",
			Help:      "Last known balance of the primary faucet account.",
		}),
	}

	if reg != nil {
		reg.MustRegister(c.TotalRequests, c.SuccessfulRequests, c.FaucetBalance)
	}

	return c
}
