package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// MQTTConfig points the bridge at a broker. Publications go to
// <prefix>/<topic>; the peer sends requests to <prefix>/req and reads
// replies from <prefix>/reply/<id>.
type MQTTConfig struct {
	Broker    string `json:"broker"`
	ClientID  string `json:"client_id,omitempty"`
	Prefix    string `json:"prefix,omitempty"`
	QoS       byte   `json:"qos,omitempty"`
	Username  string `json:"username,omitempty"`
	Password  string `json:"password,omitempty"`
	TimeoutMS int    `json:"timeout_ms,omitempty"`
}

type mqttTransport struct {
	cfg MQTTConfig
}

func newMQTTTransport(cfg TransportConfig) (Transport, error) {
	if cfg.MQTT == nil || cfg.MQTT.Broker == "" {
		return nil, errors.New("mqtt transport requires a broker")
	}
	c := *cfg.MQTT
	if c.ClientID == "" {
		c.ClientID = "imx662-" + uuid.NewString()
	}
	if c.Prefix == "" {
		c.Prefix = "imx662"
	}
	c.Prefix = strings.TrimSuffix(c.Prefix, "/")
	if c.QoS > 2 {
		c.QoS = 2
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = 3000
	}
	return &mqttTransport{cfg: c}, nil
}

func (m *mqttTransport) String() string { return "mqtt " + m.cfg.Broker }

func (m *mqttTransport) timeout() time.Duration {
	return time.Duration(m.cfg.TimeoutMS) * time.Millisecond
}

func (m *mqttTransport) Open(ctx context.Context) (Link, error) {
	l := &mqttLink{
		prefix:  m.cfg.Prefix,
		qos:     m.cfg.QoS,
		timeout: m.timeout(),
		in:      make(chan inbound, 16),
		done:    make(chan struct{}),
	}
	opts := mqtt.NewClientOptions().AddBroker(m.cfg.Broker).SetClientID(m.cfg.ClientID)
	opts.SetUsername(m.cfg.Username)
	opts.SetPassword(m.cfg.Password)
	opts.SetKeepAlive(10 * time.Second)
	opts.SetPingTimeout(2 * time.Second)
	opts.SetConnectTimeout(m.timeout())
	opts.SetAutoReconnect(false)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) { l.push(inbound{err: err}) })

	c := mqtt.NewClient(opts)
	if err := wait(ctx, c.Connect(), m.timeout()); err != nil {
		return nil, err
	}
	l.client = c
	if err := wait(ctx, c.Subscribe(m.cfg.Prefix+"/req", m.cfg.QoS, l.onRequest), m.timeout()); err != nil {
		c.Disconnect(0)
		return nil, err
	}
	return l, nil
}

var errMQTTTimeout = errors.New("mqtt: operation timed out")

func wait(ctx context.Context, tok mqtt.Token, d time.Duration) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return errMQTTTimeout
	}
}

type mqttLink struct {
	client  mqtt.Client
	prefix  string
	qos     byte
	timeout time.Duration
	in      chan inbound
	done    chan struct{}
}

func (l *mqttLink) onRequest(_ mqtt.Client, msg mqtt.Message) {
	var env Envelope
	if err := json.Unmarshal(msg.Payload(), &env); err != nil || env.Topic == "" {
		return
	}
	env.Kind = KindRequest
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	l.push(inbound{env: env})
}

func (l *mqttLink) push(in inbound) {
	select {
	case l.in <- in:
	case <-l.done:
	}
}

// remoteTopic maps an outbound envelope to its broker topic.
func (l *mqttLink) remoteTopic(env Envelope) (string, bool) {
	switch env.Kind {
	case KindPublish:
		return l.prefix + "/" + env.Topic, true
	case KindReply:
		return l.prefix + "/reply/" + env.ID, true
	}
	return "", false
}

// Send publishes events and replies. Pings and close marks have no MQTT
// equivalent; the client keepalive covers liveness.
func (l *mqttLink) Send(env Envelope) error {
	topic, ok := l.remoteTopic(env)
	if !ok {
		return nil
	}
	body := []byte(env.Payload)
	if env.Kind == KindReply {
		b, err := json.Marshal(env)
		if err != nil {
			return err
		}
		body = b
	}
	tok := l.client.Publish(topic, l.qos, env.Retained, body)
	if !tok.WaitTimeout(l.timeout) {
		return errMQTTTimeout
	}
	return tok.Error()
}

func (l *mqttLink) Recv(ctx context.Context) (Envelope, error) {
	select {
	case in := <-l.in:
		return in.env, in.err
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

func (l *mqttLink) Close() error {
	select {
	case <-l.done:
		return nil
	default:
	}
	close(l.done)
	if l.client != nil {
		l.client.Disconnect(250)
	}
	return nil
}
