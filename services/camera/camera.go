// Package camera exposes configured image sensors on the bus. Each sensor
// gets a worker goroutine; the service loop only routes requests, replies
// and retained documents.
package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"

	"imx662-go/bus"
	"imx662-go/drivers/imx662"
	"imx662-go/errcode"
	"imx662-go/types"
	"imx662-go/x/logx"
	"imx662-go/x/timex"
)

var (
	topicConfig = bus.T("config", "camera")
	topicState  = bus.T("camera", "state")
	topicCtrl   = bus.T("camera", bus.SingleLevel, "ctrl", bus.SingleLevel)
)

func deviceTopic(name string, rest ...any) bus.Topic {
	return bus.T("camera", name).Append(rest...)
}

type entry struct {
	cfg    types.CameraDevice
	dev    *imx662.Device
	worker *deviceWorker
}

type Service struct {
	conn    *bus.Connection
	plat    Platform
	log     *slog.Logger
	devices map[string]*entry
	results chan result
}

// New prepares a service; Run starts it.
func New(conn *bus.Connection, plat Platform, log *slog.Logger) *Service {
	return &Service{
		conn:    conn,
		plat:    plat,
		log:     logx.Or(log, "service", "camera"),
		devices: map[string]*entry{},
		results: make(chan result, 32),
	}
}

// Run blocks until ctx is cancelled.
func Run(ctx context.Context, conn *bus.Connection, plat Platform) {
	New(conn, plat, nil).Run(ctx)
}

func (s *Service) Run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(topicConfig)
	ctrlSub := s.conn.Subscribe(topicCtrl)
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(ctrlSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			s.publishState("stopped", "context_cancelled", nil)
			return

		case msg, ok := <-cfgSub.Channel():
			if !ok {
				s.publishState("error", "config_subscription_closed", nil)
				return
			}
			var cfg types.CameraConfig
			if err := decodeJSON(msg.Payload, &cfg); err != nil {
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			if err := s.applyConfig(ctx, cfg); err != nil {
				s.publishState("error", "apply_config_failed", err)
				continue
			}
			s.publishState("ready", "configured", nil)

		case msg, ok := <-ctrlSub.Channel():
			if !ok {
				return
			}
			s.handleCtrl(msg)

		case r := <-s.results:
			s.handleResult(r)
		}
	}
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

func validName(n string) bool {
	return n != "" && n != bus.SingleLevel && n != bus.MultiLevel && !strings.ContainsAny(n, "/")
}

func (s *Service) applyConfig(ctx context.Context, cfg types.CameraConfig) error {
	var errs []error
	seen := map[string]struct{}{}

	for _, d := range cfg.Devices {
		if !validName(d.Name) {
			errs = append(errs, fmt.Errorf("invalid device name %q", d.Name))
			continue
		}
		if _, dup := seen[d.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate device name %q", d.Name))
			continue
		}
		seen[d.Name] = struct{}{}

		if old, ok := s.devices[d.Name]; ok {
			if reflect.DeepEqual(old.cfg, d) {
				continue
			}
			s.remove(d.Name)
		}
		if err := s.add(ctx, d); err != nil {
			s.log.Error("device build failed", "device", d.Name, "type", d.Type, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", d.Name, err))
		}
	}

	for name := range s.devices {
		if _, ok := seen[name]; !ok {
			s.remove(name)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) add(ctx context.Context, d types.CameraDevice) error {
	b, ok := findBuilder(d.Type)
	if !ok {
		return &errcode.E{C: errcode.Unsupported, Op: "build", Msg: "no builder for type " + d.Type}
	}
	out, err := b.Build(BuildInput{
		Ctx:      ctx,
		Platform: s.plat,
		Device:   d,
		Logger:   s.log.With("device", d.Name),
	})
	if err != nil {
		return err
	}
	meta := infoMeta{sensor: out.Sensor, bus: d.Bus, addr: out.Addr}
	w := newWorker(d.Name, out.Device, meta, out.Worker, s.results)
	w.Start(ctx)
	s.devices[d.Name] = &entry{cfg: d, dev: out.Device, worker: w}

	s.pubRet(deviceTopic(d.Name, "info"), infoOf(out.Device, meta))
	s.pubRet(deviceTopic(d.Name, "state"), stateOf(out.Device))
	s.log.Info("device added", "device", d.Name, "bus", d.Bus)

	if len(d.Controls) > 0 || d.Stream {
		w.Submit(job{verb: "configure", run: initialJob(d), mutates: true, prio: true})
	}
	return nil
}

// initialJob applies configured controls in name order, then starts the
// stream when asked to.
func initialJob(d types.CameraDevice) jobFunc {
	names := make([]string, 0, len(d.Controls))
	for n := range d.Controls {
		names = append(names, n)
	}
	sort.Strings(names)
	return func(ctx context.Context, dev *imx662.Device) (any, error) {
		var errs []error
		for _, n := range names {
			id, err := imx662.ParseControl(n)
			if err == nil {
				err = dev.SetControl(id, d.Controls[n])
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", n, err))
			}
		}
		if d.Stream {
			if err := dev.Start(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return nil, errors.Join(errs...)
	}
}

// remove clears the retained documents and powers the sensor down on its
// own worker before the worker exits.
func (s *Service) remove(name string) {
	ent, ok := s.devices[name]
	if !ok {
		return
	}
	delete(s.devices, name)
	s.pubRet(deviceTopic(name, "info"), nil)
	s.pubRet(deviceTopic(name, "state"), nil)
	ent.worker.Submit(job{verb: "remove", prio: true, run: func(ctx context.Context, d *imx662.Device) (any, error) {
		return nil, d.PowerOff(ctx)
	}})
	ent.worker.Close()
	s.log.Info("device removed", "device", name)
}

func (s *Service) shutdown() {
	for name, ent := range s.devices {
		ent.worker.Close()
		<-ent.worker.Done()
		if err := ent.dev.PowerOff(context.Background()); err != nil {
			s.log.Warn("power off at shutdown failed", "device", name, "err", err)
		}
	}
}

// -----------------------------------------------------------------------------
// Requests and results
// -----------------------------------------------------------------------------

func (s *Service) handleCtrl(msg *bus.Message) {
	// camera/<name>/ctrl/<verb>
	if msg.Topic.Len() != 4 {
		s.replyErr(msg, errcode.InvalidTopic, nil)
		return
	}
	name, _ := msg.Topic.At(1).(string)
	vname, _ := msg.Topic.At(3).(string)
	ent, ok := s.devices[name]
	if !ok {
		s.replyErr(msg, errcode.UnknownDevice, nil)
		return
	}
	v, ok := verbs[vname]
	if !ok {
		s.replyErr(msg, errcode.UnknownVerb, nil)
		return
	}
	run, err := v.parse(msg.Payload)
	if err != nil {
		s.replyErr(msg, errcode.Of(err), err)
		return
	}
	if !ent.worker.Submit(job{req: msg, verb: vname, run: run, mutates: v.mutates, prio: v.prio, timeout: v.timeout}) {
		s.replyErr(msg, errcode.Busy, nil)
	}
}

func (s *Service) handleResult(r result) {
	// results from removed or replaced devices are dropped
	if ent, ok := s.devices[r.dev]; !ok || ent.worker != r.from {
		return
	}
	if r.err != nil {
		s.log.Warn("camera request failed", "device", r.dev, "verb", r.verb, "err", r.err)
		s.replyErr(r.req, errcode.Of(r.err), r.err)
	} else {
		s.replyOK(r.req, r.value)
	}
	s.pubRet(deviceTopic(r.dev, "state"), r.state)
	if r.info != nil {
		s.pubRet(deviceTopic(r.dev, "info"), *r.info)
	}
}

// ---- helpers ----

func (s *Service) publishState(level, status string, err error) {
	st := types.ServiceState{Level: level, Status: status, TS: timex.NowMs()}
	if err != nil {
		st.Error = err.Error()
	}
	s.pubRet(topicState, st)
}

func (s *Service) replyOK(req *bus.Message, v any) {
	if !req.CanReply() {
		return
	}
	s.conn.Reply(req, types.OKReply{OK: true, Result: v}, false)
}

func (s *Service) replyErr(req *bus.Message, c errcode.Code, err error) {
	if !req.CanReply() {
		return
	}
	rep := types.ErrorReply{OK: false, Error: string(c)}
	if err != nil {
		rep.Msg = err.Error()
	}
	s.conn.Reply(req, rep, false)
}

func (s *Service) pubRet(t bus.Topic, p any) {
	s.conn.Publish(s.conn.NewMessage(t, p, true))
}
