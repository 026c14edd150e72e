// Package mqtt bridges the engine to an MQTT broker: devices publish
// telemetry to it and circle-wide alerts are published back.
package mqtt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

var errTimeout = errors.New("mqtt operation timed out")

// Client is the part of paho.Client the bridge uses
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
}

// Connect dials the broker with automatic reconnects enabled
func Connect(broker, clientID string, logger *logrus.Logger) (paho.Client, error) {
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	log := logger.WithFields(logrus.Fields{"broker": broker, "client_id": clientID})

	opts := paho.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(paho.Client) {
		log.Info("MQTT connection established")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.WithError(err).Warn("MQTT connection lost, reconnecting")
	}

	client := paho.NewClient(opts)
	log.Info("Connecting to MQTT broker")

	if err := wait(client.Connect(), connectTimeout); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker: %w", err)
	}
	return client, nil
}

func wait(token paho.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return errTimeout
	}
	return token.Error()
}
