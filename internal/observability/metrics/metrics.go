// Package metrics exposes application instruments on the prometheus registry
// served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the domain-level instruments.
type Metrics struct {
	ViolationsRecorded  *prometheus.CounterVec
	ScoreRecoveries     prometheus.Counter
	WebhookEvents       *prometheus.CounterVec
	PayoutsRequested    prometheus.Counter
	GiftCodeRedemptions prometheus.Counter
}

// New registers the domain instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ViolationsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "steadfast_violations_recorded_total",
			Help: "Violations recorded, by type.",
		}, []string{"type"}),
		ScoreRecoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "steadfast_score_recoveries_total",
			Help: "Successful daily score recoveries.",
		}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "steadfast_payment_webhook_events_total",
			Help: "Payment webhook events, by type and outcome.",
		}, []string{"event_type", "outcome"}),
		PayoutsRequested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "steadfast_payouts_requested_total",
			Help: "Accepted affiliate payout requests.",
		}),
		GiftCodeRedemptions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "steadfast_gift_code_redemptions_total",
			Help: "Successful gift code redemptions.",
		}),
	}
	reg.MustRegister(
		m.ViolationsRecorded,
		m.ScoreRecoveries,
		m.WebhookEvents,
		m.PayoutsRequested,
		m.GiftCodeRedemptions,
	)
	return m
}

// NewNop returns instruments backed by a throwaway registry. Test helper.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
