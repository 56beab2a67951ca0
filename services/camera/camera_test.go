package camera

import (
	"context"
	"testing"
	"time"

	"imx662-go/bus"
	"imx662-go/drivers/imx662"
	"imx662-go/errcode"
	"imx662-go/types"
	"imx662-go/x/i2csim"
	"imx662-go/x/logx"
)

const (
	regStandby = 0x3000
	regSHR0    = 0x3050
	regGain    = 0x3070
)

type harness struct {
	conn   *bus.Connection
	plat   *SimPlatform
	states *bus.Subscription
	cancel context.CancelFunc
}

func recvWithin[T any](t *testing.T, ch <-chan T, d time.Duration) (T, bool) {
	t.Helper()
	var zero T
	select {
	case v := <-ch:
		return v, true
	case <-time.After(d):
		return zero, false
	}
}

func startService(t *testing.T, cfg types.CameraConfig, wantLevel string) *harness {
	t.Helper()
	b := bus.NewBus(32)
	conn := b.NewConnection("test")
	plat := NewSimPlatform("i2c0", "i2c1")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := &harness{conn: conn, plat: plat, states: conn.Subscribe(topicState), cancel: cancel}
	go New(conn, plat, logx.Discard()).Run(ctx)
	h.waitLevel(t, "idle")
	conn.Publish(conn.NewMessage(topicConfig, cfg, true))
	h.waitLevel(t, wantLevel)
	return h
}

func (h *harness) waitLevel(t *testing.T, level string) types.ServiceState {
	t.Helper()
	for {
		msg, ok := recvWithin(t, h.states.Channel(), 2*time.Second)
		if !ok {
			t.Fatalf("timeout waiting for service level %q", level)
		}
		if st, _ := msg.Payload.(types.ServiceState); st.Level == level {
			return st
		}
	}
}

func (h *harness) call(t *testing.T, name, verb string, payload any) any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rep, err := h.conn.RequestWait(ctx, h.conn.NewMessage(deviceTopic(name, "ctrl", verb), payload, false))
	if err != nil {
		t.Fatalf("%s/%s: %v", name, verb, err)
	}
	return rep.Payload
}

func (h *harness) ok(t *testing.T, name, verb string, payload any) any {
	t.Helper()
	p := h.call(t, name, verb, payload)
	r, ok := p.(types.OKReply)
	if !ok {
		t.Fatalf("%s/%s: %+v", name, verb, p)
	}
	return r.Result
}

func (h *harness) fail(t *testing.T, name, verb string, payload any, want errcode.Code) {
	t.Helper()
	p := h.call(t, name, verb, payload)
	r, ok := p.(types.ErrorReply)
	if !ok || r.Error != string(want) {
		t.Fatalf("%s/%s: got %+v, want error %q", name, verb, p, want)
	}
}

func (h *harness) sim(t *testing.T, id string) *i2csim.Device {
	t.Helper()
	s, ok := h.plat.Sim(id)
	if !ok {
		t.Fatalf("no sim on %s", id)
	}
	return s
}

// waitRetained returns the first value on topic, retained or live, that
// satisfies pred.
func waitRetained[T any](t *testing.T, conn *bus.Connection, topic bus.Topic, pred func(T) bool) T {
	t.Helper()
	sub := conn.Subscribe(topic)
	defer conn.Unsubscribe(sub)
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-sub.Channel():
			if v, ok := msg.Payload.(T); ok && pred(v) {
				return v
			}
		case <-deadline:
			var zero T
			t.Fatalf("timeout waiting on %v", topic)
			return zero
		}
	}
}

func lifecycle(want string) func(types.CameraState) bool {
	return func(st types.CameraState) bool { return st.Lifecycle == want }
}

func oneCamera() types.CameraConfig {
	return types.CameraConfig{Devices: []types.CameraDevice{{Name: "cam0", Type: "imx662", Bus: "i2c0"}}}
}

// ---- Tests ----

func TestServiceLifecycle(t *testing.T) {
	h := startService(t, oneCamera(), "ready")

	info := waitRetained(t, h.conn, deviceTopic("cam0", "info"), func(types.CameraInfo) bool { return true })
	if info.Sensor != "imx662" || info.Bus != "i2c0" || info.Addr != imx662.Address || info.Lanes != 4 {
		t.Fatalf("info = %+v", info)
	}
	if len(info.Formats) == 0 || len(info.Controls) == 0 {
		t.Fatalf("info lists %d formats, %d controls", len(info.Formats), len(info.Controls))
	}
	st := waitRetained(t, h.conn, deviceTopic("cam0", "state"), lifecycle("off"))
	if st.Mode != "all-pixel" || st.FrameLen != 1250 {
		t.Fatalf("state = %+v", st)
	}

	h.cancel()
	if got := h.waitLevel(t, "stopped"); got.Status != "context_cancelled" {
		t.Fatalf("stopped status = %q", got.Status)
	}
}

func TestPowerAndStream(t *testing.T) {
	h := startService(t, oneCamera(), "ready")

	if got := h.ok(t, "cam0", "power", types.PowerSet{On: true}); got != "standby" {
		t.Fatalf("power on -> %v", got)
	}
	if got := h.ok(t, "cam0", "stream", types.StreamSet{On: true}); got != "streaming" {
		t.Fatalf("stream on -> %v", got)
	}
	st := waitRetained(t, h.conn, deviceTopic("cam0", "state"), lifecycle("streaming"))
	if st.FPSMicro != 60_001_500 || st.DataRate != 594 {
		t.Fatalf("state = %+v", st)
	}
	sim := h.sim(t, "i2c0")
	if sim.WroteTo(regStandby) == 0 || sim.Reg(regStandby) != 0 {
		t.Fatal("standby not released")
	}

	if got := h.ok(t, "cam0", "suspend", nil); got != "standby" {
		t.Fatalf("suspend -> %v", got)
	}
	if got := h.ok(t, "cam0", "resume", nil); got != "streaming" {
		t.Fatalf("resume -> %v", got)
	}
	if got := h.ok(t, "cam0", "stream", types.StreamSet{On: false}); got != "standby" {
		t.Fatalf("stream off -> %v", got)
	}
	if sim.Reg(regStandby) != 1 {
		t.Fatal("sensor not in standby")
	}
	h.ok(t, "cam0", "power", types.PowerSet{On: false})
	waitRetained(t, h.conn, deviceTopic("cam0", "state"), lifecycle("off"))
}

func TestFormatVerbs(t *testing.T) {
	h := startService(t, oneCamera(), "ready")

	got, ok := h.ok(t, "cam0", "set_format", types.FormatSet{Format: "SRGGB12", Width: 1000, Height: 560}).(formatReply)
	if !ok || got.Mode.Name != "binning" || got.Transfer != "linear" {
		t.Fatalf("set_format -> %+v", got)
	}
	cur, _ := h.ok(t, "cam0", "get_format", nil).(formatReply)
	if cur.Mode.Name != "binning" || cur.Format != "SRGGB12" {
		t.Fatalf("get_format -> %+v", cur)
	}
	formats, _ := h.ok(t, "cam0", "enum_formats", nil).([]types.FormatInfo)
	if len(formats) == 0 {
		t.Fatal("enum_formats empty")
	}
	waitRetained(t, h.conn, deviceTopic("cam0", "state"), func(st types.CameraState) bool { return st.Mode == "binning" })

	h.fail(t, "cam0", "set_format", types.FormatSet{Format: "YUYV", Width: 1920, Height: 1080}, errcode.UnsupportedFormat)
	h.fail(t, "cam0", "set_format", types.FormatSet{Format: "SRGGB12", Transfer: "pq"}, errcode.InvalidPayload)
}

func TestCtrlVerbs(t *testing.T) {
	h := startService(t, oneCamera(), "ready")

	if got := h.ok(t, "cam0", "set_ctrl", types.CtrlSet{Name: "gain", Value: 500}); got != (types.CtrlValue{Name: "gain", Value: imx662.MaxGainCode}) {
		t.Fatalf("set_ctrl gain -> %+v", got)
	}
	if got := h.ok(t, "cam0", "get_ctrl", types.CtrlGet{Name: "gain"}); got != (types.CtrlValue{Name: "gain", Value: imx662.MaxGainCode}) {
		t.Fatalf("get_ctrl gain -> %+v", got)
	}
	if got := h.ok(t, "cam0", "set_ctrl", []byte(`{"name":"gain","value":12}`)); got != (types.CtrlValue{Name: "gain", Value: 12}) {
		t.Fatalf("json set_ctrl -> %+v", got)
	}
	ctrls, _ := h.ok(t, "cam0", "query_ctrls", nil).([]types.ControlInfo)
	if len(ctrls) == 0 {
		t.Fatal("query_ctrls empty")
	}

	h.fail(t, "cam0", "set_ctrl", types.CtrlSet{Name: "zoom", Value: 1}, errcode.UnknownControl)
	h.fail(t, "cam0", "set_ctrl", types.CtrlSet{Name: "pixel_rate", Value: 1}, errcode.ReadOnly)
	h.fail(t, "cam0", "set_ctrl", "not json", errcode.InvalidPayload)
}

func TestExposureAndGainVerbs(t *testing.T) {
	h := startService(t, oneCamera(), "ready")
	h.ok(t, "cam0", "power", types.PowerSet{On: true})
	sim := h.sim(t, "i2c0")

	if got := h.ok(t, "cam0", "exposure", types.ExposureSet{Value: 16667, Unit: "us"}); got != (types.CtrlValue{Name: "exposure", Value: 1246}) {
		t.Fatalf("exposure -> %+v", got)
	}
	if got := sim.RegLE(regSHR0, 3); got != 4 {
		t.Fatalf("SHR0 = %d", got)
	}
	if got := h.ok(t, "cam0", "gain", types.GainSet{Value: 300, Unit: "deci_db"}); got != (types.CtrlValue{Name: "gain", Value: 100}) {
		t.Fatalf("gain -> %+v", got)
	}
	if got := sim.RegLE(regGain, 2); got != 100 {
		t.Fatalf("GAIN = %d", got)
	}

	h.fail(t, "cam0", "exposure", types.ExposureSet{Value: 1, Unit: "fortnights"}, errcode.InvalidPayload)
	h.fail(t, "cam0", "gain", types.GainSet{Value: 1, Channel: "long"}, errcode.InvalidPayload)
}

func TestRampVerb(t *testing.T) {
	h := startService(t, oneCamera(), "ready")
	h.ok(t, "cam0", "power", types.PowerSet{On: true})
	sim := h.sim(t, "i2c0")
	sim.ClearOps()

	got := h.ok(t, "cam0", "ramp", types.CtrlRamp{Name: "gain", To: 40, DurationMS: 80, Steps: 4})
	if got != (types.CtrlValue{Name: "gain", Value: 40}) {
		t.Fatalf("ramp -> %+v", got)
	}
	if n := sim.WroteTo(regGain); n != 4 {
		t.Fatalf("GAIN written %d times", n)
	}
	if sim.RegLE(regGain, 2) != 40 {
		t.Fatalf("GAIN = %d", sim.RegLE(regGain, 2))
	}
	h.fail(t, "cam0", "ramp", types.CtrlRamp{Name: "gain", To: 1, DurationMS: 60_000}, errcode.InvalidPayload)
	h.fail(t, "cam0", "ramp", types.CtrlRamp{Name: "pixel_rate", To: 1}, errcode.ReadOnly)
}

func TestRoutingErrors(t *testing.T) {
	h := startService(t, oneCamera(), "ready")
	h.fail(t, "cam9", "power", types.PowerSet{On: true}, errcode.UnknownDevice)
	h.fail(t, "cam0", "explode", nil, errcode.UnknownVerb)
}

func TestGrabbedControlWhileStreaming(t *testing.T) {
	h := startService(t, oneCamera(), "ready")
	h.ok(t, "cam0", "stream", types.StreamSet{On: true})
	h.fail(t, "cam0", "set_ctrl", types.CtrlSet{Name: "hflip", Value: 1}, errcode.Busy)
	h.fail(t, "cam0", "set_format", types.FormatSet{Format: "SRGGB12", Width: 1920, Height: 1080}, errcode.Busy)
	h.ok(t, "cam0", "set_ctrl", types.CtrlSet{Name: "gain", Value: 40})
}

func TestFullQueueRepliesBusy(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("test")
	plat := NewSimPlatform("i2c0")
	s := New(conn, plat, logx.Discard())

	i2c, _ := plat.I2C("i2c0")
	dev, err := imx662.New(i2c, imx662.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	// never started, so the single slot stays taken
	w := newWorker("cam0", dev, infoMeta{}, WorkerConfig{InputQueueSize: 1, PrioWait: time.Millisecond}, s.results)
	s.devices["cam0"] = &entry{dev: dev, worker: w}
	if !w.Submit(job{verb: "get_format", run: func(context.Context, *imx662.Device) (any, error) { return nil, nil }}) {
		t.Fatal("first submit rejected")
	}

	msg := conn.NewMessage(deviceTopic("cam0", "ctrl", "stream"), types.StreamSet{On: true}, false)
	replies := conn.Request(msg)
	s.handleCtrl(msg)
	rep, ok := recvWithin(t, replies.Channel(), time.Second)
	if !ok {
		t.Fatal("no reply")
	}
	if r, _ := rep.Payload.(types.ErrorReply); r.Error != string(errcode.Busy) {
		t.Fatalf("reply = %+v", rep.Payload)
	}
}

func TestInitialControlsAndStream(t *testing.T) {
	cfg := oneCamera()
	cfg.Devices[0].Controls = map[string]int64{"gain": 30, "vflip": 1}
	cfg.Devices[0].Stream = true
	h := startService(t, cfg, "ready")

	waitRetained(t, h.conn, deviceTopic("cam0", "state"), lifecycle("streaming"))
	sim := h.sim(t, "i2c0")
	if got := sim.RegLE(regGain, 2); got != 30 {
		t.Fatalf("GAIN = %d", got)
	}
	if got := h.ok(t, "cam0", "get_ctrl", types.CtrlGet{Name: "vflip"}); got != (types.CtrlValue{Name: "vflip", Value: 1}) {
		t.Fatalf("vflip -> %+v", got)
	}
}

func TestResetPinFollowsPower(t *testing.T) {
	cfg := oneCamera()
	pin := 5
	cfg.Devices[0].ResetPin = &pin
	cfg.Devices[0].VerifyChipID = true
	h := startService(t, cfg, "ready")

	p, _ := h.plat.Pin(pin)
	sp := p.(*SimPin)
	if sp.Level() {
		t.Fatal("reset released before power on")
	}
	h.ok(t, "cam0", "power", types.PowerSet{On: true})
	if !sp.Level() || sp.Rises() != 1 {
		t.Fatalf("level %v, rises %d", sp.Level(), sp.Rises())
	}
	h.ok(t, "cam0", "power", types.PowerSet{On: false})
	if sp.Level() {
		t.Fatal("reset still released after power off")
	}
}

func TestConfigRemovesAndReplacesDevices(t *testing.T) {
	cfg := types.CameraConfig{Devices: []types.CameraDevice{
		{Name: "cam0", Type: "imx662", Bus: "i2c0"},
		{Name: "cam1", Type: "imx662", Bus: "i2c1"},
	}}
	h := startService(t, cfg, "ready")
	h.ok(t, "cam1", "stream", types.StreamSet{On: true})
	h.ok(t, "cam0", "power", types.PowerSet{On: true})
	waitRetained(t, h.conn, deviceTopic("cam1", "state"), lifecycle("streaming"))

	infoSub := h.conn.Subscribe(deviceTopic("cam1", "info"))
	defer h.conn.Unsubscribe(infoSub)
	recvWithin(t, infoSub.Channel(), time.Second)

	next := types.CameraConfig{Devices: []types.CameraDevice{{Name: "cam0", Type: "imx662", Bus: "i2c0", HCG: true}}}
	h.conn.Publish(h.conn.NewMessage(topicConfig, next, true))

	for {
		msg, ok := recvWithin(t, infoSub.Channel(), 2*time.Second)
		if !ok {
			t.Fatal("cam1 info not cleared")
		}
		if msg.Payload == nil {
			break
		}
	}

	sim := h.sim(t, "i2c1")
	deadline := time.Now().Add(2 * time.Second)
	for sim.Reg(regStandby) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("cam1 not stopped on removal")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// cam0 changed, so it was rebuilt and starts over powered off
	waitRetained(t, h.conn, deviceTopic("cam0", "state"), lifecycle("off"))
	h.fail(t, "cam1", "get_format", nil, errcode.UnknownDevice)
}

func TestConfigErrors(t *testing.T) {
	cfg := types.CameraConfig{Devices: []types.CameraDevice{
		{Name: "cam0", Type: "imx662", Bus: "i2c0"},
		{Name: "cam0", Type: "imx662", Bus: "i2c1"},
		{Name: "cam/1", Type: "imx662", Bus: "i2c1"},
		{Name: "cam2", Type: "ov5640", Bus: "i2c1"},
		{Name: "cam3", Type: "imx662", Bus: "spi0"},
		{Name: "cam4", Type: "imx662", Bus: "i2c1", DataRateMbps: 1000},
	}}
	h := startService(t, cfg, "error")
	h.ok(t, "cam0", "get_format", nil)
	for _, name := range []string{"cam2", "cam3", "cam4"} {
		h.fail(t, name, "get_format", nil, errcode.UnknownDevice)
	}
}
