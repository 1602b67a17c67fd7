// Package metrics records phonectl run outcomes. Collectors live on a
// private registry so the textfile export holds only phonectl series.
package metrics

import (
	"strconv"
	"time"

	"github.com/jjgriff93/ai-contact-centre/internal/numbers"
	"github.com/jjgriff93/ai-contact-centre/internal/reconcile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every phonectl collector.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// OperationsTotal counts command invocations by outcome.
	OperationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "phonectl",
		Name:      "operations_total",
		Help:      "Total phonectl operations by command and outcome.",
	}, []string{"command", "outcome"})

	// NumbersPurchasedTotal counts numbers bought.
	NumbersPurchasedTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "phonectl",
		Name:      "numbers_purchased_total",
		Help:      "Total phone numbers purchased by country and type.",
	}, []string{"country", "type"})

	// NumbersReleasedTotal counts numbers given up.
	NumbersReleasedTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "phonectl",
		Name:      "numbers_released_total",
		Help:      "Total phone numbers released.",
	})

	// ReleaseFailuresTotal counts attempted releases that failed.
	ReleaseFailuresTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "phonectl",
		Name:      "release_failures_total",
		Help:      "Total phone number releases that failed.",
	})

	// PurchaseAttemptsTotal counts candidates tried, by result. An order still
	// pending at the deadline is counted as pending: its outcome is unknown.
	PurchaseAttemptsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "phonectl",
		Name:      "purchase_attempts_total",
		Help:      "Purchase attempts by result (succeeded, unavailable, pending, failed).",
	}, []string{"result"})

	// OwnedNumbers is the inventory size seen by the last run.
	OwnedNumbers = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "phonectl",
		Name:      "owned_numbers",
		Help:      "Number of phone numbers owned at the start of the last run.",
	})

	// Converged is 1 when the last ensure left the account converged.
	Converged = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "phonectl",
		Name:      "converged",
		Help:      "Whether the last ensure run converged (1) or not (0).",
	})

	// LastRunTimestamp records when each command last finished.
	LastRunTimestamp = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "phonectl",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time of the last completed run by command.",
	}, []string{"command"})

	// ProviderRequestDuration tracks provider API latency.
	ProviderRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "phonectl",
		Name:      "provider_request_duration_seconds",
		Help:      "Provider API request duration by operation and HTTP status.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"op", "code"})
)

// ObserveProviderRequest records one provider exchange. status 0 means no
// response was received.
func ObserveProviderRequest(op string, status int, elapsed time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	ProviderRequestDuration.WithLabelValues(op, code).Observe(elapsed.Seconds())
}

// RecordResult folds one invocation result into the collectors.
func RecordResult(res *reconcile.Result, outcome string, now time.Time) {
	if res == nil {
		return
	}
	command := string(res.Operation)
	OperationsTotal.WithLabelValues(command, outcome).Inc()
	LastRunTimestamp.WithLabelValues(command).Set(float64(now.Unix()))

	switch res.Operation {
	case reconcile.OpEnsure, reconcile.OpList:
		OwnedNumbers.Set(float64(len(res.Owned)))
	}
	if res.Operation == reconcile.OpEnsure {
		if res.Converged() {
			Converged.Set(1)
		} else {
			Converged.Set(0)
		}
	}

	if p := res.Purchase; p != nil {
		PurchaseAttemptsTotal.WithLabelValues("unavailable").Add(float64(len(p.Unavailable)))
		other := p.Attempts - len(p.Unavailable)
		if number := res.Purchased(); number != "" {
			PurchaseAttemptsTotal.WithLabelValues("succeeded").Inc()
			other--
			if res.Satisfying != nil {
				NumbersPurchasedTotal.WithLabelValues(string(res.Satisfying.Country), string(res.Satisfying.Type)).Inc()
			}
		} else if p.Order != nil && p.Order.Status == numbers.OrderPending {
			PurchaseAttemptsTotal.WithLabelValues("pending").Inc()
			other--
		}
		if other > 0 {
			PurchaseAttemptsTotal.WithLabelValues("failed").Add(float64(other))
		}
	}
	NumbersReleasedTotal.Add(float64(len(res.Released)))
	ReleaseFailuresTotal.Add(float64(len(res.ReleaseFailures)))
}

// WriteTextfile writes the registry in the node-exporter textfile format.
// The file is replaced atomically.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
