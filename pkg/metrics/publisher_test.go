package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPublisherMetricsCountByEventType(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPublisherMetrics(reg)
	m.IncPublished("order_created")
	m.IncPublished("order_created")
	m.IncFailed("wallet_settled")
	m.IncDeadLettered("order_cancelled", "max_attempts")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_published", "event_type", "order_created"); err != nil || got != 2 {
		t.Fatalf("expected published=2, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_publish_failures", "event_type", "wallet_settled"); err != nil || got != 1 {
		t.Fatalf("expected failures=1, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_dead_lettered", "reason", "max_attempts"); err != nil || got != 1 {
		t.Fatalf("expected dead lettered=1, got %f (%v)", got, err)
	}

	var nilMetrics *PublisherMetrics
	nilMetrics.IncPublished("x")
	nilMetrics.IncDeadLettered("x", "y")
}
