package statepub

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"github.com/jake-scott/dirigera-bridge/internal/pkg/home"
	"github.com/jake-scott/dirigera-bridge/internal/pkg/logging"
)

const (
	DefaultTopicPrefix = "dirigera"
	publishTimeout     = 5 * time.Second
)

var ErrNotConnected = errors.New("mqtt: client not connected")

// Publisher is the part of an MQTT client the mirror needs
type Publisher interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Mirror publishes the reconciled room model as retained messages, one
// topic per room plus one for the gateway
type Mirror struct {
	client Publisher
	prefix string
	qos    byte
}

func New(client Publisher, prefix string) *Mirror {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &Mirror{client: client, prefix: prefix, qos: 1}
}

// Connect dials broker and returns a mirror using the connection
func Connect(broker, clientID, prefix string) (*Mirror, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID).SetOrderMatters(false)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logging.Logger(nil).Infof("connected to MQTT broker %s", broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logging.Logger(nil).WithError(err).Warn("lost MQTT connection")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, errors.Errorf("timed out connecting to MQTT broker %s", broker)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "connecting to MQTT broker %s", broker)
	}

	return New(client, prefix), nil
}

func (m *Mirror) RoomTopic(roomID string) string {
	return m.prefix + "/rooms/" + roomID
}

func (m *Mirror) GatewayTopic() string {
	return m.prefix + "/gateway"
}

// Publish sends every room and, when known, the gateway.  It carries on
// past individual failures and returns the first one.
func (m *Mirror) Publish(rooms []home.Room, gateway *home.Gateway) error {
	if !m.client.IsConnected() {
		return ErrNotConnected
	}

	var first error
	record := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	for _, room := range rooms {
		record(m.publishJSON(m.RoomTopic(room.ID), room))
	}
	if gateway != nil {
		record(m.publishJSON(m.GatewayTopic(), gateway))
	}

	return first
}

// Update adapts Publish to the session's refresh hook
func (m *Mirror) Update(ctx context.Context, rooms []home.Room, gateway *home.Gateway) {
	if err := m.Publish(rooms, gateway); err != nil {
		logging.Logger(ctx).WithError(err).Warn("mirroring state to MQTT")
	}
}

func (m *Mirror) publishJSON(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", topic)
	}

	token := m.client.Publish(topic, m.qos, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.Errorf("mqtt: timed out publishing %s", topic)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "mqtt: publishing %s", topic)
	}
	return nil
}

func (m *Mirror) Close() {
	if m.client.IsConnected() {
		m.client.Disconnect(250)
	}
}
