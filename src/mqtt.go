package aisverify

/*------------------------------------------------------------------
 *
 * Purpose:   	Publish events to an MQTT broker.
 *
 * Description:	Each event goes, as JSON, to <topic>/<kind>, for example
 *		aisverify/verified.  QoS 0, not retained.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const mqttConnectTimeout = 10 * time.Second

// MQTTPublisher is the part of an MQTT client the sink needs.
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type MQTTSink struct {
	client mqtt.Client // nil when a publisher was supplied directly.
	pub    MQTTPublisher
	topic  string
	logger *log.Logger
}

/*-------------------------------------------------------------------
 *
 * Name:        NewMQTTSink
 *
 * Inputs:	broker	- host:port, or a URL such as tcp://host:1883.
 *			  user:pass@ may precede the host.
 *
 *--------------------------------------------------------------------*/

func NewMQTTSink(broker string, topic string, clientID string, logger *log.Logger) (*MQTTSink, error) {
	var opts = mqtt.NewClientOptions()

	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	if scheme, rest, ok := strings.Cut(broker, "://"); ok {
		if auth, host, hasAuth := strings.Cut(rest, "@"); hasAuth {
			var user, pass, _ = strings.Cut(auth, ":")
			opts.SetUsername(user)
			opts.SetPassword(pass)
			broker = scheme + "://" + host
		}
	}

	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)

	var client = mqtt.NewClient(opts)

	var token = client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		logger.Warn("MQTT broker not reachable yet, will keep trying", "broker", broker)
	} else if token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	} else {
		logger.Info("connected to MQTT broker", "broker", broker)
	}

	return &MQTTSink{client: client, pub: client, topic: topic, logger: logger}, nil
}

// NewMQTTSinkWithPublisher is for callers that manage the client themselves.
func NewMQTTSinkWithPublisher(pub MQTTPublisher, topic string, logger *log.Logger) *MQTTSink {
	return &MQTTSink{client: nil, pub: pub, topic: topic, logger: logger}
}

func (m *MQTTSink) Name() string {
	return "mqtt"
}

func (m *MQTTSink) Topic(kind EventKind) string {
	return strings.TrimSuffix(m.topic, "/") + "/" + string(kind)
}

func (m *MQTTSink) Publish(ev Event) error {
	var payload, err = json.Marshal(ev)
	if err != nil {
		return err
	}

	var token = m.pub.Publish(m.Topic(ev.Kind), 0, false, payload)
	if token.WaitTimeout(eventWriteTimeout) && token.Error() != nil {
		return token.Error()
	}

	return nil
}

func (m *MQTTSink) Consume(ctx context.Context, events <-chan Event) error {
	defer m.Close()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := m.Publish(ev); err != nil {
				m.logger.Warn("MQTT publish failed", "err", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *MQTTSink) Close() {
	if m.client != nil {
		m.client.Disconnect(250)
	}
}
