package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registration orchestrator.
type Metrics struct {
	Registrations       *prometheus.CounterVec
	Duplicates          prometheus.Counter
	Cancellations       prometheus.Counter
	MembershipFailures  prometheus.Counter
	Compensations       prometheus.Counter
	TeamsCreated        prometheus.Counter
	TeamJoins           prometheus.Counter
	RegisterDuration    prometheus.Histogram
	TransactionDuration prometheus.Histogram
}

// New creates the registration metrics and registers them with the default registry.
func New() *Metrics {
	return &Metrics{
		Registrations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "campusreg_registrations_confirmed_total",
			Help: "Confirmed registrations by kind (individual, team, paid)",
		}, []string{"kind"}),
		Duplicates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "campusreg_registrations_duplicate_total",
			Help: "Registration attempts resolved to an existing confirmed record",
		}),
		Cancellations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "campusreg_registrations_cancelled_total",
			Help: "Registrations cancelled",
		}),
		MembershipFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "campusreg_membership_write_failures_total",
			Help: "Membership index writes that failed and aborted a registration",
		}),
		Compensations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "campusreg_registration_compensations_total",
			Help: "Pending records marked failed after an aborted registration",
		}),
		TeamsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "campusreg_teams_created_total",
			Help: "Teams created",
		}),
		TeamJoins: promauto.NewCounter(prometheus.CounterOpts{
			Name: "campusreg_team_joins_total",
			Help: "Members added to team rosters",
		}),
		RegisterDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "campusreg_register_duration_seconds",
			Help:    "Duration of registration operations end to end",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		TransactionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "campusreg_registration_tx_duration_seconds",
			Help:    "Time spent inside the per-event registration transaction",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
	}
}

func (m *Metrics) IncrementConfirmed(kind string) {
	m.Registrations.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementDuplicate() {
	m.Duplicates.Inc()
}

func (m *Metrics) IncrementCancelled() {
	m.Cancellations.Inc()
}

func (m *Metrics) IncrementMembershipFailure() {
	m.MembershipFailures.Inc()
}

func (m *Metrics) IncrementCompensation() {
	m.Compensations.Inc()
}

func (m *Metrics) IncrementTeamCreated() {
	m.TeamsCreated.Inc()
}

func (m *Metrics) IncrementTeamJoin() {
	m.TeamJoins.Inc()
}

// ObserveRegister records an end-to-end registration. Call with time.Now() at the start.
func (m *Metrics) ObserveRegister(start time.Time) {
	m.RegisterDuration.Observe(time.Since(start).Seconds())
}

// ObserveTransaction records time spent holding the per-event lock.
func (m *Metrics) ObserveTransaction(start time.Time) {
	m.TransactionDuration.Observe(time.Since(start).Seconds())
}
