package imx662

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewStartsOff(t *testing.T) {
	r := newRig(t, nil)
	if r.dev.State() != Off {
		t.Fatalf("state = %s", r.dev.State())
	}
	if len(r.bus.Ops()) != 0 {
		t.Fatalf("New touched the bus: %+v", r.bus.Ops())
	}
	if _, err := New(nil, DefaultConfig()); err == nil {
		t.Fatal("nil bus accepted")
	}
	if _, err := r.dev.ReadRegister(regVMAX, 3); !errors.Is(err, ErrNotPowered) {
		t.Fatalf("ReadRegister while off: %v", err)
	}
}

func TestPowerOnOff(t *testing.T) {
	r := newRig(t, func(c *Config) { c.VerifyChipID = true })
	r.powerOn(t)
	if r.dev.State() != Standby || r.power.ons != 1 {
		t.Fatalf("state = %s, ons = %d", r.dev.State(), r.power.ons)
	}
	if len(r.sleep.Delays) != 1 || r.sleep.Delays[0] != powerOnSettle {
		t.Fatalf("delays = %v", r.sleep.Delays)
	}
	r.powerOn(t)
	if r.power.ons != 1 {
		t.Fatal("second PowerOn switched supplies again")
	}
	if err := r.dev.PowerOff(context.Background()); err != nil {
		t.Fatal(err)
	}
	if r.dev.State() != Off || r.power.offs != 1 {
		t.Fatalf("state = %s, offs = %d", r.dev.State(), r.power.offs)
	}
	if r.bus.Reg(regXVSXHSDrv) != pinsHiZ {
		t.Fatalf("pins = %#x", r.bus.Reg(regXVSXHSDrv))
	}
}

func TestPowerOnFailures(t *testing.T) {
	t.Run("bus", func(t *testing.T) {
		r := newRig(t, nil)
		r.bus.FailNext(1000)
		err := r.dev.PowerOn(context.Background())
		if !errors.Is(err, ErrBus) {
			t.Fatalf("err = %v", err)
		}
		if r.dev.State() != Off || r.power.offs != 1 {
			t.Fatalf("state = %s, offs = %d", r.dev.State(), r.power.offs)
		}
	})
	t.Run("chip id", func(t *testing.T) {
		r := newRig(t, func(c *Config) { c.VerifyChipID = true })
		r.bus.SetReg(regChipID, 0x00)
		if err := r.dev.PowerOn(context.Background()); !errors.Is(err, ErrChipID) {
			t.Fatalf("err = %v", err)
		}
		if r.dev.State() != Off {
			t.Fatalf("state = %s", r.dev.State())
		}
	})
	t.Run("hold write", func(t *testing.T) {
		r := newRig(t, nil)
		r.bus.FailReg(regHold, true)
		if err := r.dev.PowerOn(context.Background()); !errors.Is(err, ErrBus) || r.dev.State() != Off {
			t.Fatalf("err = %v, state = %s", err, r.dev.State())
		}
	})
	t.Run("supply", func(t *testing.T) {
		r := newRig(t, nil)
		r.power.onErr = errors.New("regulator")
		if err := r.dev.PowerOn(context.Background()); err == nil || r.dev.State() != Off {
			t.Fatalf("err = %v, state = %s", err, r.dev.State())
		}
	})
}

func TestLinkPartnerErrors(t *testing.T) {
	deser := &fakeLink{setupErr: &LinkError{Side: LinkDeserializer, Err: errors.New("no lock")}}
	r := newRig(t, func(c *Config) { c.Link = deser })
	r.start(t)
	if r.dev.State() != Streaming {
		t.Fatalf("state = %s", r.dev.State())
	}

	ser := &fakeLink{setupErr: &LinkError{Side: LinkSerializer, Err: errors.New("no lock")}}
	r = newRig(t, func(c *Config) { c.Link = ser })
	err := r.dev.PowerOn(context.Background())
	if !errors.Is(err, ErrLinkPartner) {
		t.Fatalf("err = %v", err)
	}
	if r.dev.State() != Off {
		t.Fatalf("state = %s", r.dev.State())
	}
}

func TestPowerOnRoundTrip(t *testing.T) {
	r := newRig(t, nil)
	r.powerOn(t)
	w, rd := -1, -1
	for i, op := range r.bus.Ops() {
		if op.Reg != regHold {
			continue
		}
		if op.Read && rd < 0 {
			rd = i
		} else if !op.Read && w < 0 {
			w = i
		}
	}
	if w < 0 || rd < w {
		t.Fatalf("REGHOLD write at %d, read at %d", w, rd)
	}
}

func TestStartOrder(t *testing.T) {
	r := newRig(t, nil)
	r.powerOn(t)
	r.bus.ClearOps()
	r.sleep.Delays = nil
	r.start(t)
	if r.dev.State() != Streaming {
		t.Fatalf("state = %s", r.dev.State())
	}
	ops := r.bus.Ops()
	standby := writeIndex(ops, regStandby, standbyOff)
	master := writeIndex(ops, regXMSTA, masterStart)
	if standby < 0 || master < standby {
		t.Fatalf("standby release at %d, master start at %d", standby, master)
	}
	for _, reg := range []uint16{regVMAX, regSHR0, regGain, regBlkLevel, regHReverse, regHMAX} {
		if i := lastWriteIndex(ops, reg); i < 0 || i > standby {
			t.Errorf("reg %#04x written at %d, standby released at %d", reg, i, standby)
		}
	}
	if len(r.sleep.Delays) != 1 || r.sleep.Delays[0] != streamSettle {
		t.Fatalf("delays = %v", r.sleep.Delays)
	}
}

func TestStartIdempotent(t *testing.T) {
	r := newRig(t, nil)
	r.start(t)
	r.bus.ClearOps()
	r.start(t)
	if n := len(r.bus.Ops()); n != 0 {
		t.Fatalf("second Start issued %d transfers", n)
	}
}

func TestCommonTableOncePerPowerCycle(t *testing.T) {
	const commonOnly = 0x3444
	r := newRig(t, nil)
	r.powerOn(t)
	for _, sz := range [][2]uint32{{1280, 720}, {1920, 1080}} {
		if _, err := r.dev.SetFormat(FormatRGGB12, TransferLinear, sz[0], sz[1]); err != nil {
			t.Fatal(err)
		}
	}
	r.start(t)
	if n := r.bus.WroteTo(commonOnly); n != 1 {
		t.Fatalf("common table written %d times", n)
	}
	if err := r.dev.PowerOff(context.Background()); err != nil {
		t.Fatal(err)
	}
	r.bus.ClearOps()
	r.start(t)
	if n := r.bus.WroteTo(commonOnly); n != 1 {
		t.Fatalf("common table written %d times after power cycle", n)
	}
}

func TestStartFailureEndsInStandby(t *testing.T) {
	r := newRig(t, nil)
	r.powerOn(t)
	r.bus.FailReg(regStandby, true)
	err := r.dev.Start(context.Background())
	if !errors.Is(err, ErrBus) {
		t.Fatalf("err = %v", err)
	}
	if r.dev.State() != Standby {
		t.Fatalf("state = %s", r.dev.State())
	}
	r.bus.FailReg(regStandby, false)
	r.start(t)
}

func TestStopBestEffort(t *testing.T) {
	r := newRig(t, nil)
	r.start(t)
	r.sleep.Delays = nil
	r.bus.FailReg(regXMSTA, true)
	err := r.dev.Stop(context.Background())
	if !errors.Is(err, ErrBus) {
		t.Fatalf("err = %v", err)
	}
	if r.dev.State() != Standby {
		t.Fatalf("state = %s", r.dev.State())
	}
	if r.bus.Reg(regStandby) != standbyOn || r.bus.Reg(regXVSXHSDrv) != pinsHiZ {
		t.Fatalf("STANDBY=%d pins=%#x", r.bus.Reg(regStandby), r.bus.Reg(regXVSXHSDrv))
	}
	if want := time.Duration(1250 * 13333); len(r.sleep.Delays) != 1 || r.sleep.Delays[0] != want {
		t.Fatalf("delays = %v, want one frame %v", r.sleep.Delays, want)
	}
	if err := r.dev.Stop(context.Background()); err != nil {
		t.Fatalf("Stop in standby: %v", err)
	}
}

func TestSlaveSkipsMasterStart(t *testing.T) {
	r := newRig(t, func(c *Config) { c.OperationMode = Slave })
	r.start(t)
	if n := r.bus.WroteTo(regXMSTA); n != 0 {
		t.Fatalf("XMSTA written %d times", n)
	}
	if r.bus.Reg(regXVSXHSDrv) != pinsHiZ {
		t.Fatalf("pins = %#x", r.bus.Reg(regXVSXHSDrv))
	}
}

func TestTriggerPins(t *testing.T) {
	tests := []struct {
		op   OperationMode
		sync SyncMode
		want uint32
	}{
		{Master, SyncInternal, pinsBothDrive},
		{Master, SyncExternal, pinsXVSDrive},
		{Master, SyncNone, pinsHiZ},
		{Slave, SyncInternal, pinsHiZ},
		{Slave, SyncExternal, pinsHiZ},
	}
	for _, tc := range tests {
		if got := triggerPins(tc.op, tc.sync); got != tc.want {
			t.Errorf("triggerPins(%d, %d) = %#x, want %#x", tc.op, tc.sync, got, tc.want)
		}
	}
}

func TestSuspendResume(t *testing.T) {
	r := newRig(t, nil)
	r.start(t)
	ctx := context.Background()
	if err := r.dev.Suspend(ctx); err != nil {
		t.Fatal(err)
	}
	if r.dev.State() != Standby {
		t.Fatalf("suspended state = %s", r.dev.State())
	}
	if err := r.dev.Resume(ctx); err != nil {
		t.Fatal(err)
	}
	if r.dev.State() != Streaming {
		t.Fatalf("resumed state = %s", r.dev.State())
	}

	if err := r.dev.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.dev.Suspend(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.dev.Resume(ctx); err != nil || r.dev.State() != Standby {
		t.Fatalf("resume of idle device: %v, %s", err, r.dev.State())
	}
}

func TestResumeFailureStaysInStandby(t *testing.T) {
	r := newRig(t, nil)
	r.start(t)
	ctx := context.Background()
	if err := r.dev.Suspend(ctx); err != nil {
		t.Fatal(err)
	}
	r.bus.FailReg(regStandby, true)
	if err := r.dev.Resume(ctx); !errors.Is(err, ErrBus) {
		t.Fatalf("err = %v", err)
	}
	if r.dev.State() != Standby {
		t.Fatalf("state = %s", r.dev.State())
	}
	r.bus.FailReg(regStandby, false)
	if err := r.dev.Resume(ctx); err != nil || r.dev.State() != Standby {
		t.Fatalf("second resume: %v, %s", err, r.dev.State())
	}
}

func TestSetFormat(t *testing.T) {
	r := newRig(t, nil)
	r.bus.ClearOps()
	if _, err := r.dev.SetFormat(FormatY10, TransferLinear, 1920, 1080); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v", err)
	}
	if len(r.bus.Ops()) != 0 {
		t.Fatal("rejected format touched the bus")
	}
	m, err := r.dev.SetFormat(FormatRGGB12, TransferLinear, 1000, 560)
	if err != nil || m.Name != "binning" {
		t.Fatalf("SetFormat = %s, %v", m, err)
	}
	if r.dev.Format().Name != "binning" {
		t.Fatalf("Format() = %s", r.dev.Format())
	}
	r.start(t)
	if _, err := r.dev.SetFormat(FormatRGGB12, TransferLinear, 1920, 1080); !errors.Is(err, ErrBusy) {
		t.Fatalf("SetFormat while streaming: %v", err)
	}
	if got, _ := r.dev.TryFormat(FormatRGGB12, TransferLinear, 1920, 1080); got.Name != "all-pixel" {
		t.Fatalf("TryFormat = %s", got)
	}
}

func TestRegisterAccess(t *testing.T) {
	r := newRig(t, nil)
	r.powerOn(t)
	if err := r.dev.WriteRegister(regVMAX, 3, 0x0004E2); err != nil {
		t.Fatal(err)
	}
	v, err := r.dev.ReadRegister(regVMAX, 1)
	if err != nil || v != 0xE2 {
		t.Fatalf("ReadRegister = %#x, %v", v, err)
	}
	if _, err := r.dev.ReadRegister(regVMAX, 5); err == nil {
		t.Fatal("width 5 accepted")
	}
}
