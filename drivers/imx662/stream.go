package imx662

import (
	"context"
	"errors"
	"fmt"
	"time"

	"imx662-go/x/timex"
)

// Settle delays.
const (
	powerOnSettle  = 35 * time.Millisecond
	powerOffSettle = 128 * time.Millisecond
	streamSettle   = 30 * time.Millisecond
)

// linkErr decides whether a link failure aborts the transition. Deserializer
// failures are logged and tolerated; anything else propagates.
func (d *Device) linkErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var le *LinkError
	if errors.As(err, &le) && le.Side == LinkDeserializer {
		d.log.Warn("link partner failure ignored", "op", op, "side", le.Side.String(), "err", err)
		return nil
	}
	d.log.Error("link partner failure", "op", op, "err", err)
	return err
}

// PowerOn moves Off → Standby. A no-op in any other state.
func (d *Device) PowerOn(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.powerOnLocked(ctx)
}

func (d *Device) powerOnLocked(ctx context.Context) error {
	if d.state != Off {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.cfg.Power.PowerOn(ctx); err != nil {
		return err
	}
	if d.cfg.Link != nil {
		if err := d.linkErr("setup", d.cfg.Link.Setup(ctx)); err != nil {
			d.powerDownQuiet(ctx)
			return err
		}
	}
	d.sleep.Sleep(powerOnSettle)
	if err := d.verifyLocked(); err != nil {
		d.log.Error("sensor not responding", "err", err)
		d.powerDownQuiet(ctx)
		return err
	}
	d.commonWritten = false
	d.state = Standby
	d.log.Info("powered on")
	return nil
}

// verifyLocked proves the bus works with a REGHOLD write and read-back, a
// VMAX read and, optionally, the reset value of the chip id register.
func (d *Device) verifyLocked() error {
	if err := d.io.write(regHold, 1, holdReleased); err != nil {
		return err
	}
	v, err := d.io.read(regHold, 1)
	if err != nil {
		return err
	}
	if v != holdReleased {
		return &BusError{Op: "verify", Reg: regHold, Attempts: 1, Err: fmt.Errorf("read back %#x", v)}
	}
	if _, err := d.io.readLE(regVMAX, 3); err != nil {
		return err
	}
	if !d.cfg.VerifyChipID {
		return nil
	}
	id, err := d.io.read(regChipID, 1)
	if err != nil {
		return err
	}
	if id != chipIDValue {
		return ErrChipID
	}
	return nil
}

func (d *Device) powerDownQuiet(ctx context.Context) {
	if d.cfg.Link != nil {
		_ = d.cfg.Link.Reset(ctx)
	}
	if err := d.cfg.Power.PowerOff(ctx); err != nil {
		d.log.Warn("power off after failed power on", "err", err)
	}
}

// PowerOff moves any state to Off, stopping the stream first.
func (d *Device) PowerOff(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.powerOffLocked(ctx)
}

func (d *Device) powerOffLocked(ctx context.Context) error {
	if d.state == Off {
		return nil
	}
	var first error
	if d.state == Streaming {
		first = d.stopLocked(ctx)
	}
	if err := d.io.write(regXVSXHSDrv, 1, pinsHiZ); err != nil {
		d.log.Warn("trigger pins not released", "err", err)
	}
	if d.cfg.Link != nil {
		if err := d.cfg.Link.Reset(ctx); err != nil {
			d.log.Warn("link reset failed", "err", err)
		}
	}
	if err := d.cfg.Power.PowerOff(ctx); err != nil && first == nil {
		first = err
	}
	d.sleep.Sleep(powerOffSettle)
	d.commonWritten = false
	d.state = Off
	d.log.Info("powered off")
	return first
}

// enterModeLocked programs the active mode: Standby → Configuring → Standby.
// On failure the state returns to Standby.
func (d *Device) enterModeLocked() error {
	prev := d.state
	d.state = Configuring
	err := d.writeModeLocked()
	d.state = prev
	if err != nil {
		d.log.Error("mode entry failed", "err", err)
	}
	return err
}

func (d *Device) writeModeLocked() error {
	m := d.timing.Mode()
	if !d.commonWritten {
		if err := d.io.writeTable(d.reg.common); err != nil {
			return err
		}
		d.commonWritten = true
	}
	if err := d.io.writeTable(m.regs); err != nil {
		return err
	}
	if err := d.io.writeTable(m.formatRegs); err != nil {
		return err
	}
	if err := d.io.writeTable(compressionTable(m.Compressed)); err != nil {
		return err
	}
	if m.HDR != HDRNone {
		if err := d.io.writeTable(hdrCombineTable); err != nil {
			return err
		}
	}
	if err := d.io.write(regDigClamp, 1, 0); err != nil {
		return err
	}
	if err := d.applyDataRate(); err != nil {
		return err
	}
	return d.applySync()
}

// Start moves Standby (or Off) → Streaming. Every held control is applied
// before the standby bit is cleared. Already streaming is a no-op.
func (d *Device) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.startLocked(ctx)
}

func (d *Device) startLocked(ctx context.Context) error {
	if d.state == Streaming {
		return nil
	}
	if err := d.powerOnLocked(ctx); err != nil {
		return err
	}
	if d.cfg.Link != nil {
		if err := d.linkErr("start", d.cfg.Link.StartStreaming(ctx)); err != nil {
			return err
		}
	}
	if err := d.enterModeLocked(); err != nil {
		d.abortStartLocked(ctx)
		return err
	}
	d.state = Configuring
	if err := d.streamOnLocked(); err != nil {
		d.log.Error("stream start failed", "err", err)
		d.state = Standby
		d.abortStartLocked(ctx)
		return err
	}
	d.state = Streaming
	d.log.Info("streaming", "mode", d.timing.Mode().String(), "ufps", d.timing.MaxFrameRate())
	return nil
}

func (d *Device) streamOnLocked() error {
	if err := d.applyAll(); err != nil {
		return err
	}
	if err := d.io.write(regStandby, 1, standbyOff); err != nil {
		return err
	}
	d.sleep.Sleep(streamSettle)
	if d.ctrls.opMode == Master {
		return d.io.write(regXMSTA, 1, masterStart)
	}
	return nil
}

func (d *Device) abortStartLocked(ctx context.Context) {
	if d.cfg.Link != nil {
		_ = d.cfg.Link.StopStreaming(ctx)
	}
	_ = d.io.write(regStandby, 1, standbyOn)
}

// Stop moves Streaming → Standby. The sensor is put in standby even when
// a step fails; the first error is returned and the state is Standby.
func (d *Device) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked(ctx)
}

func (d *Device) stopLocked(ctx context.Context) error {
	if d.state != Streaming {
		return nil
	}
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if d.cfg.Link != nil {
		keep(d.linkErr("stop", d.cfg.Link.StopStreaming(ctx)))
	}
	keep(d.io.write(regXMSTA, 1, masterStop))
	keep(d.io.write(regStandby, 1, standbyOn))
	d.sleep.Sleep(timex.LinesToDuration(d.timing.State().FrameLength*d.timing.Mode().rowsPerFrameUnit(), d.timing.LineTimeNs()))
	keep(d.io.write(regXVSXHSDrv, 1, pinsHiZ))
	d.state = Standby
	if first != nil {
		d.log.Warn("stream stop incomplete", "err", first)
	} else {
		d.log.Info("stream stopped")
	}
	return first
}

// SetStream is the host-facing stream toggle.
func (d *Device) SetStream(ctx context.Context, on bool) error {
	if on {
		return d.Start(ctx)
	}
	return d.Stop(ctx)
}

// Suspend stops streaming for system sleep and remembers whether it was on.
func (d *Device) Suspend(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resumeStream = d.state == Streaming
	return d.stopLocked(ctx)
}

// Resume restarts streaming if it was on at Suspend.
func (d *Device) Resume(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.resumeStream {
		return nil
	}
	d.resumeStream = false
	return d.startLocked(ctx)
}
