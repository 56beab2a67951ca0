// Package bridge mirrors local camera topics to a remote peer and injects
// the peer's control requests into the local bus.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"imx662-go/bus"
	"imx662-go/errcode"
	"imx662-go/types"
	"imx662-go/x/logx"
	"imx662-go/x/timex"
)

var (
	topicConfig = bus.T("config", "bridge")
	topicState  = bus.T("bridge", "state")
)

// Start runs the bridge until ctx is cancelled. It waits for JSON config
// on config/bridge and (re)builds the link on every new document.
func Start(ctx context.Context, conn *bus.Connection) {
	s := &Service{conn: conn, log: logx.With("service", "bridge")}
	s.run(ctx)
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config is the document expected on config/bridge.
type Config struct {
	Transport TransportConfig `json:"transport"`
	// Forward lists local patterns mirrored to the peer; default camera/#.
	Forward []string `json:"forward,omitempty"`
	// Inject lists topics the peer may send requests to; default camera/+/ctrl/+.
	Inject           []string `json:"inject,omitempty"`
	RequestTimeoutMS int      `json:"request_timeout_ms,omitempty"`
	PingIntervalMS   int      `json:"ping_interval_ms,omitempty"`
}

func (c *Config) applyDefaults() {
	if len(c.Forward) == 0 {
		c.Forward = []string{"camera/#"}
	}
	if len(c.Inject) == 0 {
		c.Inject = []string{"camera/+/ctrl/+"}
	}
	if c.RequestTimeoutMS <= 0 {
		c.RequestTimeoutMS = 2000
	}
	if c.PingIntervalMS <= 0 {
		c.PingIntervalMS = 5000
	}
}

type TransportConfig struct {
	// "uart", "mqtt" or a name added with RegisterTransport.
	Type string      `json:"type"`
	UART *UARTConfig `json:"uart,omitempty"`
	MQTT *MQTTConfig `json:"mqtt,omitempty"`
}

// UARTConfig selects a serial port. Device names the host port; the pins
// and instance apply on the microcontroller.
type UARTConfig struct {
	Device string `json:"device,omitempty"`
	Port   int    `json:"port,omitempty"`
	Baud   int    `json:"baud"`
	RxPin  int    `json:"rx_pin"`
	TxPin  int    `json:"tx_pin"`
}

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

type Service struct {
	conn *bus.Connection
	log  *slog.Logger

	mu     sync.Mutex
	curRun context.CancelFunc
}

func (s *Service) run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(topicConfig)
	defer s.conn.Unsubscribe(cfgSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.stopCurrent()
			return
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				s.publishState("error", "config_subscription_closed", nil)
				return
			}
			cfg, err := decodeConfig(msg.Payload)
			if err != nil {
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			s.reconfigure(ctx, cfg)
		}
	}
}

func (s *Service) stopCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
}

func (s *Service) reconfigure(parent context.Context, cfg Config) {
	s.stopCurrent()
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	s.curRun = cancel
	s.mu.Unlock()

	cfg.applyDefaults()
	go s.runLink(ctx, cfg)
}

// -----------------------------------------------------------------------------
// Link supervision
// -----------------------------------------------------------------------------

func (s *Service) runLink(ctx context.Context, cfg Config) {
	tr, err := newTransport(cfg.Transport)
	if err != nil {
		s.publishState("error", "transport_init_failed", err)
		return
	}

	backoff := backoffSeq(250*time.Millisecond, 5*time.Second)
	for {
		if ctx.Err() != nil {
			return
		}

		link, err := tr.Open(ctx)
		if err != nil {
			delay := backoff()
			s.publishState("degraded", "dial_failed_retrying", fmt.Errorf("%s: %w (retry in %s)", tr, err, delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		s.log.Info("link established", "transport", tr.String())
		s.publishState("up", "link_established", nil)
		err = s.handleLink(ctx, link, cfg)
		_ = link.Close()
		if err == nil {
			return
		}
		delay := backoff()
		s.log.Warn("link lost", "transport", tr.String(), "err", err)
		s.publishState("degraded", "link_lost_retrying", fmt.Errorf("%w (retry in %s)", err, delay))
		if !sleep(ctx, delay) {
			return
		}
	}
}

// handleLink owns one live link. A nil return means ctx ended it.
func (s *Service) handleLink(ctx context.Context, link Link, cfg Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	fail := func(err error) {
		select {
		case errCh <- err:
		default:
		}
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	for _, pat := range cfg.Forward {
		sub := s.conn.Subscribe(parseTopic(pat))
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.conn.Unsubscribe(sub)
			if err := s.forward(ctx, link, sub); err != nil {
				fail(err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			env, err := link.Recv(ctx)
			if err != nil {
				if ctx.Err() == nil {
					fail(err)
				}
				return
			}
			if env.Kind == KindRequest {
				go s.serveRequest(ctx, link, cfg, env)
			}
		}
	}()

	tick := time.NewTicker(time.Duration(cfg.PingIntervalMS) * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = link.Send(Envelope{Kind: KindClose})
			return nil
		case err := <-errCh:
			return err
		case <-tick.C:
			if err := link.Send(Envelope{Kind: KindPing}); err != nil {
				return err
			}
		}
	}
}

// forward mirrors local publications. Requests are local traffic and stay here.
func (s *Service) forward(ctx context.Context, link Link, sub *bus.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.Channel():
			if !ok {
				return nil
			}
			if msg.CanReply() {
				continue
			}
			env := Envelope{Kind: KindPublish, Topic: formatTopic(msg.Topic), Retained: msg.Retained}
			if msg.Payload != nil {
				b, err := json.Marshal(msg.Payload)
				if err != nil {
					s.log.Warn("unencodable payload dropped", "topic", env.Topic, "err", err)
					continue
				}
				env.Payload = b
			}
			if err := link.Send(env); err != nil {
				return err
			}
		}
	}
}

// serveRequest injects a peer request and sends the local reply back.
func (s *Service) serveRequest(ctx context.Context, link Link, cfg Config, env Envelope) {
	rep := Envelope{Kind: KindReply, ID: env.ID, Topic: env.Topic}
	send := func(p any) {
		b, err := json.Marshal(p)
		if err != nil {
			b, _ = json.Marshal(types.ErrorReply{Error: string(errcode.Error), Msg: err.Error()})
		}
		rep.Payload = b
		if err := link.Send(rep); err != nil {
			s.log.Warn("reply not sent", "id", env.ID, "err", err)
		}
	}

	topic := parseTopic(env.Topic)
	if !allowed(cfg.Inject, topic) {
		send(types.ErrorReply{Error: string(errcode.InvalidTopic), Msg: env.Topic})
		return
	}
	var payload any
	if len(env.Payload) > 0 {
		payload = []byte(env.Payload)
	}
	rctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.RequestTimeoutMS)*time.Millisecond)
	defer cancel()
	msg, err := s.conn.RequestWait(rctx, s.conn.NewMessage(topic, payload, false))
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		send(types.ErrorReply{Error: string(errcode.Timeout), Msg: err.Error()})
		return
	}
	send(msg.Payload)
}

// -----------------------------------------------------------------------------
// Utilities
// -----------------------------------------------------------------------------

func decodeConfig(p any) (Config, error) {
	var cfg Config
	var err error
	switch v := p.(type) {
	case Config:
		return v, nil
	case []byte:
		err = json.Unmarshal(v, &cfg)
	case string:
		err = json.Unmarshal([]byte(v), &cfg)
	case map[string]any:
		var b []byte
		if b, err = json.Marshal(v); err == nil {
			err = json.Unmarshal(b, &cfg)
		}
	default:
		err = fmt.Errorf("unsupported config payload type: %T", p)
	}
	return cfg, err
}

// parseTopic splits a slash-separated topic into bus tokens.
func parseTopic(s string) bus.Topic {
	parts := strings.Split(s, "/")
	t := make(bus.Topic, len(parts))
	for i, p := range parts {
		t[i] = p
	}
	return t
}

func formatTopic(t bus.Topic) string {
	parts := make([]string, t.Len())
	for i := range parts {
		parts[i] = fmt.Sprint(t.At(i))
	}
	return strings.Join(parts, "/")
}

// allowed reports whether topic matches any MQTT-style pattern.
func allowed(patterns []string, topic bus.Topic) bool {
	for _, p := range patterns {
		if matchTopic(parseTopic(p), topic) {
			return true
		}
	}
	return false
}

func matchTopic(pat, topic bus.Topic) bool {
	for i := 0; i < pat.Len(); i++ {
		tok := pat.At(i)
		if tok == bus.MultiLevel {
			return true
		}
		if i >= topic.Len() {
			return false
		}
		if tok != bus.SingleLevel && tok != topic.At(i) {
			return false
		}
	}
	return pat.Len() == topic.Len()
}

func (s *Service) publishState(level, status string, err error) {
	st := types.ServiceState{Level: level, Status: status, TS: timex.NowMs()}
	if err != nil {
		st.Error = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(topicState, st, true))
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	cur := min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
