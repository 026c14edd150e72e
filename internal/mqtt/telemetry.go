package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/carecircle/internal/models"
)

const ingestTimeout = 10 * time.Second

var errBadTopic = errors.New("unexpected telemetry topic")

// Ingester records device telemetry. *service.Service satisfies it.
type Ingester interface {
	IsMember(circleID, userID int64) bool
	RecordLocation(ctx context.Context, userID int64, lat, lon float64) error
	RecordHeartbeat(ctx context.Context, userID int64) error
	RecordVitalInCircle(ctx context.Context, circleID, userID int64, kind string, value float64, aud *models.Audience) (*models.VitalReading, error)
}

// telemetryMessage is the JSON body of every telemetry topic. Which fields
// are required depends on the topic.
type telemetryMessage struct {
	UserID   int64            `json:"userId"`
	Lat      *float64         `json:"lat"`
	Lon      *float64         `json:"lon"`
	Kind     string           `json:"kind"`
	Value    *float64         `json:"value"`
	Audience *models.Audience `json:"audience"`
}

// TelemetrySubscriber consumes <prefix>/<circleID>/telemetry/<type> where
// type is location, heartbeat or vital.
type TelemetrySubscriber struct {
	client Client
	prefix string
	ingest Ingester
	logger *logrus.Logger
}

// NewTelemetrySubscriber creates a subscriber; call Start to subscribe
func NewTelemetrySubscriber(client Client, prefix string, ingest Ingester, logger *logrus.Logger) *TelemetrySubscriber {
	return &TelemetrySubscriber{client: client, prefix: prefix, ingest: ingest, logger: logger}
}

func (t *TelemetrySubscriber) filter() string {
	return t.prefix + "/+/telemetry/+"
}

// Start subscribes to the telemetry topics
func (t *TelemetrySubscriber) Start() error {
	topic := t.filter()
	if err := wait(t.client.Subscribe(topic, 1, t.onMessage), connectTimeout); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	t.logger.WithField("topic", topic).Info("Subscribed to device telemetry")
	return nil
}

// Stop unsubscribes from the telemetry topics
func (t *TelemetrySubscriber) Stop() {
	if err := wait(t.client.Unsubscribe(t.filter()), publishTimeout); err != nil {
		t.logger.WithError(err).Warn("Failed to unsubscribe from device telemetry")
	}
}

func (t *TelemetrySubscriber) onMessage(_ paho.Client, msg paho.Message) {
	if err := t.handle(msg.Topic(), msg.Payload()); err != nil {
		t.logger.WithField("topic", msg.Topic()).WithError(err).Warn("Dropping telemetry message")
	}
}

func (t *TelemetrySubscriber) handle(topic string, payload []byte) error {
	rest, ok := strings.CutPrefix(topic, t.prefix+"/")
	if !ok {
		return errBadTopic
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[1] != "telemetry" {
		return errBadTopic
	}
	circleID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: circle %q", errBadTopic, parts[0])
	}

	var msg telemetryMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("failed to decode telemetry: %w", err)
	}
	if !t.ingest.IsMember(circleID, msg.UserID) {
		return fmt.Errorf("user %d is not a member of circle %d", msg.UserID, circleID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	switch parts[2] {
	case "location":
		if msg.Lat == nil || msg.Lon == nil {
			return errors.New("location needs lat and lon")
		}
		return t.ingest.RecordLocation(ctx, msg.UserID, *msg.Lat, *msg.Lon)
	case "heartbeat":
		return t.ingest.RecordHeartbeat(ctx, msg.UserID)
	case "vital":
		if msg.Value == nil {
			return errors.New("vital needs a value")
		}
		_, err := t.ingest.RecordVitalInCircle(ctx, circleID, msg.UserID, msg.Kind, *msg.Value, msg.Audience)
		return err
	default:
		return fmt.Errorf("%w: type %q", errBadTopic, parts[2])
	}
}
