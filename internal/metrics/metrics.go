// Package metrics содержит счётчики Prometheus для платёжного цикла и свипера.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics агрегирует счётчики сервиса.
type Metrics struct {
	PaymentsCreated  *prometheus.CounterVec
	PaymentOutcomes  *prometheus.CounterVec
	StatusPolls      prometheus.Counter
	GrantsIssued     prometheus.Counter
	GrantsFailed     prometheus.Counter
	MembersRevoked   prometheus.Counter
	SweepCycles      *prometheus.CounterVec
}

// New регистрирует счётчики в реестре по умолчанию.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith регистрирует счётчики в переданном реестре.
func NewWith(registry prometheus.Registerer) *Metrics {
	return &Metrics{
		PaymentsCreated: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_created_total",
				Help: "The total number of created payment attempts",
			},
			[]string{"tier", "method"},
		),
		PaymentOutcomes: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_outcomes_total",
				Help: "The total number of payment attempts by terminal state",
			},
			[]string{"state"},
		),
		StatusPolls: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "payment_status_polls_total",
				Help: "The total number of payment status queries to the gateway",
			},
		),
		GrantsIssued: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "access_grants_issued_total",
				Help: "The total number of issued invite credentials",
			},
		),
		GrantsFailed: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "access_grants_failed_total",
				Help: "The total number of failed invite credential issues",
			},
		),
		MembersRevoked: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "members_revoked_total",
				Help: "The total number of members removed by the expiration sweeper",
			},
		),
		SweepCycles: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweep_cycles_total",
				Help: "The total number of sweep cycles by result",
			},
			[]string{"result"},
		),
	}
}
