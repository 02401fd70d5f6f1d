package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the payment gate.
type Metrics struct {
	CheckoutsStarted  *prometheus.CounterVec
	Callbacks         *prometheus.CounterVec
	RegistrarFailures prometheus.Counter
	DuplicatePayments prometheus.Counter
}

// New creates the payment metrics and registers them with the default registry.
func New() *Metrics {
	return &Metrics{
		CheckoutsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "campusreg_checkouts_started_total",
			Help: "Checkout orders created with a payment provider",
		}, []string{"provider"}),
		Callbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "campusreg_payment_callbacks_total",
			Help: "Verified payment callbacks by provider and outcome",
		}, []string{"provider", "outcome"}),
		RegistrarFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "campusreg_paid_registration_failures_total",
			Help: "Succeeded payments whose registration could not be created",
		}),
		DuplicatePayments: promauto.NewCounter(prometheus.CounterOpts{
			Name: "campusreg_duplicate_payments_total",
			Help: "Succeeded payments for users who were already registered",
		}),
	}
}

func (m *Metrics) IncrementCheckout(provider string) {
	m.CheckoutsStarted.WithLabelValues(provider).Inc()
}

func (m *Metrics) IncrementCallback(provider, outcome string) {
	m.Callbacks.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) IncrementRegistrarFailure() {
	m.RegistrarFailures.Inc()
}

func (m *Metrics) IncrementDuplicatePayment() {
	m.DuplicatePayments.Inc()
}
