// Package metrics exposes campaign progress as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/unclebandit/wsp-bulk-sender/internal/campaign"
)

// Metrics tracks dispatch outcomes and campaign lifecycle.
//
// Usage:
//
//	m := metrics.New(prometheus.DefaultRegisterer)
//	runner.Subscribe(m.Observe)
type Metrics struct {
	// MessagesTotal counts dispatched recipients.
	// Labels: result (sent|failed)
	MessagesTotal *prometheus.CounterVec

	// SendDuration measures the sender call per recipient, in seconds.
	SendDuration prometheus.Histogram

	// CampaignsTotal counts finished campaigns.
	// Labels: outcome (completed|cancelled)
	CampaignsTotal *prometheus.CounterVec

	// CampaignRunning is 1 while a dispatch loop is active.
	CampaignRunning prometheus.Gauge

	// CampaignPending is the number of recipients not yet dispatched.
	CampaignPending prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wsp_campaign_messages_total",
				Help: "Recipients dispatched, by result.",
			},
			[]string{"result"},
		),
		SendDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wsp_campaign_send_duration_seconds",
				Help:    "Time spent in the message sender per recipient.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),
		CampaignsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wsp_campaigns_total",
				Help: "Finished campaigns, by outcome.",
			},
			[]string{"outcome"},
		),
		CampaignRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "wsp_campaign_running",
				Help: "1 while a campaign is dispatching.",
			},
		),
		CampaignPending: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "wsp_campaign_pending_recipients",
				Help: "Recipients of the current campaign not yet dispatched.",
			},
		),
	}
}

// Observe is a campaign.Observer.
func (m *Metrics) Observe(ev campaign.Event) {
	m.CampaignPending.Set(float64(ev.Stats.Pending))

	switch ev.Type {
	case campaign.EventStarted:
		m.CampaignRunning.Set(1)
	case campaign.EventRecipient:
		result := "failed"
		if ev.Outcome != nil && ev.Outcome.Success {
			result = "sent"
		}
		m.MessagesTotal.WithLabelValues(result).Inc()
		m.SendDuration.Observe(ev.Elapsed.Seconds())
	case campaign.EventCompleted:
		m.CampaignRunning.Set(0)
		outcome := "completed"
		if ev.Cancelled {
			outcome = "cancelled"
		}
		m.CampaignsTotal.WithLabelValues(outcome).Inc()
	}
}
