package metrics

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/unclebandit/wsp-bulk-sender/internal/campaign"
	"github.com/unclebandit/wsp-bulk-sender/internal/model"
)

func TestObserveRun(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	sender := campaign.SenderFunc(func(ctx context.Context, req model.SendRequest) (*model.SendResponse, error) {
		if req.Destination == "bad" {
			return &model.SendResponse{OK: false, ErrorMessage: "rejected"}, nil
		}
		return &model.SendResponse{OK: true, ApplicationStatus: model.ApplicationStatusSuccess, ID: "x"}, nil
	})

	r := campaign.NewRunner(campaign.Settings{TemplateName: "t"})
	r.Subscribe(m.Observe)
	recipients := []model.Recipient{{Numero: "1"}, {Numero: "bad"}, {Numero: "2"}}
	if err := r.Run(context.Background(), recipients, sender, 0); err != nil {
		t.Fatalf("run: %v", err)
	}

	expected := `
		# HELP wsp_campaign_messages_total Recipients dispatched, by result.
		# TYPE wsp_campaign_messages_total counter
		wsp_campaign_messages_total{result="failed"} 1
		wsp_campaign_messages_total{result="sent"} 2
	`
	if err := testutil.CollectAndCompare(m.MessagesTotal, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}
	if got := testutil.ToFloat64(m.CampaignsTotal.WithLabelValues("completed")); got != 1 {
		t.Errorf("Expected 1 completed campaign, got %v", got)
	}
	if got := testutil.ToFloat64(m.CampaignRunning); got != 0 {
		t.Errorf("Expected running gauge 0, got %v", got)
	}
	if got := testutil.ToFloat64(m.CampaignPending); got != 0 {
		t.Errorf("Expected pending gauge 0, got %v", got)
	}
	if count := testutil.CollectAndCount(m.SendDuration); count != 1 {
		t.Errorf("Expected 1 histogram, got %d", count)
	}
}

func TestObserveCancelled(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Observe(campaign.Event{Type: campaign.EventStarted, Stats: model.CampaignStats{Total: 5, Pending: 5}})
	if got := testutil.ToFloat64(m.CampaignRunning); got != 1 {
		t.Errorf("Expected running gauge 1, got %v", got)
	}

	m.Observe(campaign.Event{Type: campaign.EventCompleted, Cancelled: true, Stats: model.CampaignStats{Total: 5, Success: 1, Pending: 4}})
	if got := testutil.ToFloat64(m.CampaignsTotal.WithLabelValues("cancelled")); got != 1 {
		t.Errorf("Expected 1 cancelled campaign, got %v", got)
	}
	if got := testutil.ToFloat64(m.CampaignPending); got != 4 {
		t.Errorf("Expected pending gauge 4, got %v", got)
	}
}
