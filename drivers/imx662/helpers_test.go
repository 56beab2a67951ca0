package imx662

import (
	"context"
	"testing"

	"imx662-go/x/i2csim"
	"imx662-go/x/logx"
	"imx662-go/x/timex"
)

type fakePower struct {
	ons, offs int
	onErr     error
	onPowerOn func()
}

func (p *fakePower) PowerOn(context.Context) error {
	p.ons++
	if p.onErr != nil {
		return p.onErr
	}
	if p.onPowerOn != nil {
		p.onPowerOn()
	}
	return nil
}

func (p *fakePower) PowerOff(context.Context) error {
	p.offs++
	return nil
}

type fakeLink struct {
	setupErr, startErr, stopErr error
	calls                       []string
}

func (l *fakeLink) Setup(context.Context) error {
	l.calls = append(l.calls, "setup")
	return l.setupErr
}

func (l *fakeLink) StartStreaming(context.Context) error {
	l.calls = append(l.calls, "start")
	return l.startErr
}

func (l *fakeLink) StopStreaming(context.Context) error {
	l.calls = append(l.calls, "stop")
	return l.stopErr
}

func (l *fakeLink) Reset(context.Context) error {
	l.calls = append(l.calls, "reset")
	return nil
}

type rig struct {
	dev   *Device
	bus   *i2csim.Device
	sleep *timex.Recorder
	power *fakePower
}

func newRig(t *testing.T, mutate func(*Config)) *rig {
	t.Helper()
	r := &rig{
		bus:   i2csim.New(Address, map[uint16]byte{regChipID: chipIDValue}),
		sleep: &timex.Recorder{},
		power: &fakePower{},
	}
	cfg := DefaultConfig()
	cfg.Power = r.power
	cfg.Sleeper = r.sleep
	cfg.Logger = logx.Discard()
	if mutate != nil {
		mutate(&cfg)
	}
	dev, err := New(r.bus, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.dev = dev
	return r
}

func (r *rig) powerOn(t *testing.T) {
	t.Helper()
	if err := r.dev.PowerOn(context.Background()); err != nil {
		t.Fatalf("PowerOn: %v", err)
	}
}

func (r *rig) start(t *testing.T) {
	t.Helper()
	if err := r.dev.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func (r *rig) control(t *testing.T, id ControlID) int64 {
	t.Helper()
	v, err := r.dev.Control(id)
	if err != nil {
		t.Fatalf("Control(%s): %v", id, err)
	}
	return v
}

func (r *rig) set(t *testing.T, id ControlID, v int64) {
	t.Helper()
	if err := r.dev.SetControl(id, v); err != nil {
		t.Fatalf("SetControl(%s, %d): %v", id, v, err)
	}
}

// writeIndex returns the position of the first write of val to reg in the
// op log, or -1.
func writeIndex(ops []i2csim.Op, reg uint16, val byte) int {
	for i, op := range ops {
		if !op.Read && op.Reg == reg && len(op.Data) > 0 && op.Data[0] == val {
			return i
		}
	}
	return -1
}

func lastWriteIndex(ops []i2csim.Op, reg uint16) int {
	idx := -1
	for i, op := range ops {
		if !op.Read && reg >= op.Reg && int(reg-op.Reg) < len(op.Data) {
			idx = i
		}
	}
	return idx
}
