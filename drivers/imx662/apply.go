package imx662

// Register writers for held control values. Each assumes the lock is held
// and the sensor is powered.

func (d *Device) powered() bool { return d.state != Off }

// whenPowered runs fn only once the sensor can take writes; otherwise the
// held value waits for stream start.
func (d *Device) whenPowered(fn func() error) error {
	if !d.powered() {
		return nil
	}
	return fn()
}

func (d *Device) shutter() uint32 {
	return shutterFor(d.timing.Mode(), d.timing.State().FrameLength, d.ctrls.exposure)
}

func (d *Device) applyExposure() error {
	shr := d.shutter()
	d.log.Debug("exposure", "lines", d.ctrls.exposure, "shr0", shr)
	return d.io.held(func() error {
		if err := d.io.write(regSHR0, 3, shr); err != nil {
			return err
		}
		return d.writeVS(shr)
	})
}

func (d *Device) applyFrameAndExposure() error {
	fl, shr := d.timing.State().FrameLength, d.shutter()
	d.log.Debug("frame length", "vmax", fl, "shr0", shr)
	return d.io.held(func() error {
		if err := d.io.write(regVMAX, 3, fl); err != nil {
			return err
		}
		if err := d.io.write(regSHR0, 3, shr); err != nil {
			return err
		}
		return d.writeVS(shr)
	})
}

func (d *Device) applyVSExposure() error {
	if d.timing.Mode().HDR != HDRLineInterleaved {
		return nil
	}
	return d.io.held(func() error {
		return d.writeVS(d.shutter())
	})
}

// writeVS places SHR1/RHS1 against shr0. RHS1 must trail SHR0 by the
// minimum distance, so every SHR0 move in DOL rewrites it in the same hold.
func (d *Device) writeVS(shr0 uint32) error {
	m := d.timing.Mode()
	if m.HDR != HDRLineInterleaved {
		return nil
	}
	p := placeVS(m, shr0, d.ctrls.vsExposure)
	if p.Narrowed {
		d.log.Warn("vs exposure narrowed", "requested", d.ctrls.vsExposure, "applied", p.Lines, "shr0", shr0, "rhs1", p.RHS1)
	}
	if err := d.io.write(regSHR1, 3, p.SHR1); err != nil {
		return err
	}
	return d.io.write(regRHS1, 3, p.RHS1)
}

func (d *Device) applyGain() error {
	g := gainFor(d.timing.Mode(), d.ctrls.gain, d.cfg.HCG)
	if g.HCG {
		d.log.Debug("gain on hcg path", "requested", d.ctrls.gain, "code", g.Code)
	}
	return d.io.held(func() error {
		if err := d.io.write(regGain, 2, g.Code); err != nil {
			return err
		}
		if !d.cfg.HCG || d.timing.Mode().HDR != HDRNone {
			return nil
		}
		var fdg uint32
		if g.HCG {
			fdg = 1
		}
		return d.io.write(regFDGSel0, 1, fdg)
	})
}

func (d *Device) applyVSGain() error {
	if d.timing.Mode().HDR != HDRLineInterleaved {
		return nil
	}
	return d.io.held(func() error {
		return d.io.write(regGain1, 2, d.ctrls.vsGain)
	})
}

func (d *Device) applyExpGain() error {
	if d.timing.Mode().HDR != HDRDualGain {
		return nil
	}
	return d.io.write(regExpGain, 1, d.ctrls.expGain)
}

func (d *Device) applyBlackLevel() error {
	v := blackLevelReg(d.timing.Mode().Format, d.ctrls.blackLevel)
	return d.io.held(func() error {
		return d.io.write(regBlkLevel, 2, v)
	})
}

func (d *Device) applyFlips() error {
	return d.io.held(func() error {
		if err := d.io.write(regHReverse, 1, uint32(b2i(d.ctrls.hflip))); err != nil {
			return err
		}
		return d.io.write(regVReverse, 1, uint32(b2i(d.ctrls.vflip)))
	})
}

func (d *Device) applyTestPattern() error {
	if d.ctrls.pattern == 0 {
		if err := d.io.writeTable(tpgDisableTable); err != nil {
			return err
		}
		return d.applyBlackLevel()
	}
	if err := d.io.writeTable(tpgEnableTable); err != nil {
		return err
	}
	return d.io.write(regTPGPatSel, 1, d.ctrls.pattern-1)
}

func (d *Device) applyDataRate() error {
	st := d.timing.State()
	if err := d.io.write(regHMAX, 2, st.LineLength); err != nil {
		return err
	}
	return d.io.write(regDataRate, 1, st.DataRate)
}

// triggerPins returns the XVS/XHS drive setting.
func triggerPins(op OperationMode, sync SyncMode) uint32 {
	switch {
	case op != Master:
		return pinsHiZ
	case sync == SyncInternal:
		return pinsBothDrive
	case sync == SyncExternal:
		return pinsXVSDrive
	}
	return pinsHiZ
}

func (d *Device) applySync() error {
	var ext uint32
	if d.ctrls.sync == SyncExternal {
		ext = 1
	}
	if err := d.io.write(regExtMode, 1, ext); err != nil {
		return err
	}
	return d.io.write(regXVSXHSDrv, 1, triggerPins(d.ctrls.opMode, d.ctrls.sync))
}

// applyAll replays every held control, in the order stream start needs.
func (d *Device) applyAll() error {
	steps := []func() error{
		d.applyDataRate,
		d.applyFrameAndExposure,
		d.applyVSExposure,
		d.applyGain,
		d.applyVSGain,
		d.applyExpGain,
		d.applyBlackLevel,
		d.applyFlips,
		d.applyTestPattern,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
