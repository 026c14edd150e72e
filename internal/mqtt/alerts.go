package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Kerhoff/carecircle/internal/models"
)

// AlertSink publishes circle-wide notifications to <prefix>/<circleID>/alerts.
// The topic cannot filter per reader, so events about audience-restricted
// records are not published.
type AlertSink struct {
	client Client
	prefix string
}

// NewAlertSink creates an MQTT alert sink
func NewAlertSink(client Client, prefix string) *AlertSink {
	return &AlertSink{client: client, prefix: prefix}
}

// Name implements fanout.Sink
func (s *AlertSink) Name() string { return "mqtt" }

// Topic returns the alert topic of a circle
func (s *AlertSink) Topic(circleID int64) string {
	return fmt.Sprintf("%s/%d/alerts", s.prefix, circleID)
}

// Deliver implements fanout.Sink
func (s *AlertSink) Deliver(ctx context.Context, n models.Notification, _ func(int64) bool) error {
	if n.Audience != nil {
		return nil
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode %s alert: %w", n.Kind, err)
	}

	topic := s.Topic(n.CircleID)
	if err := wait(s.client.Publish(topic, 1, false, payload), publishTimeout); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}
