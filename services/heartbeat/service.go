// Package heartbeat publishes a retained liveness document.
package heartbeat

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"imx662-go/bus"
	"imx662-go/types"
	"imx662-go/x/logx"
	"imx662-go/x/timex"
)

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	topicHeartbeat       = bus.T("system", "heartbeat")
)

const defaultInterval = time.Second

// Config is the document expected on config/heartbeat.
type Config struct {
	IntervalMS int `json:"interval_ms"`
}

type Service struct {
	log   *slog.Logger
	start time.Time
	seq   uint64
}

func (s *Service) beat(conn *bus.Connection) {
	s.seq++
	hb := types.Heartbeat{Seq: s.seq, UptimeMs: time.Since(s.start).Milliseconds(), TS: timex.NowMs()}
	conn.Publish(conn.NewMessage(topicHeartbeat, hb, true))
}

func decodeConfig(p any) (Config, bool) {
	var c Config
	switch v := p.(type) {
	case Config:
		return v, true
	case []byte:
		if json.Unmarshal(v, &c) != nil {
			return c, false
		}
	case string:
		if json.Unmarshal([]byte(v), &c) != nil {
			return c, false
		}
	default:
		return c, false
	}
	return c, true
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(defaultInterval)
	defer tick.Stop()
	s.beat(conn)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("heartbeat service stopping")
			return
		case <-tick.C:
			s.beat(conn)
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				return
			}
			cfg, ok := decodeConfig(msg.Payload)
			if !ok || cfg.IntervalMS <= 0 {
				s.log.Warn("heartbeat config ignored", "payload", msg.Payload)
				continue
			}
			tick.Reset(time.Duration(cfg.IntervalMS) * time.Millisecond)
			s.log.Info("heartbeat interval set", "interval_ms", cfg.IntervalMS)
		}
	}
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	s.log = logx.Or(s.log, "service", "heartbeat")
	s.start = time.Now()
	go s.serviceLoop(ctx, conn)
	return nil
}
