package imx662

import (
	"fmt"
)

// ControlID identifies a user-facing control.
type ControlID uint32

const (
	CtrlExposure   ControlID = iota + 1 // main integration, lines
	CtrlVSExposure                      // DOL short integration, lines
	CtrlGain                            // analog gain code, 0.3 dB steps
	CtrlVSGain                          // DOL short exposure gain code
	CtrlExpGain                         // clear HDR exponential gain step
	CtrlVBlank                          // vertical blanking, lines
	CtrlFrameRate                       // Q10 fps
	CtrlBlackLevel                      // in the active format's domain
	CtrlHFlip
	CtrlVFlip
	CtrlTestPattern
	CtrlDataRate      // data-rate selector
	CtrlSyncMode      // SyncMode
	CtrlOperationMode // OperationMode
	CtrlPixelRate     // read-only, pixels per second
)

var controlNames = map[ControlID]string{
	CtrlExposure:      "exposure",
	CtrlVSExposure:    "vs_exposure",
	CtrlGain:          "gain",
	CtrlVSGain:        "vs_gain",
	CtrlExpGain:       "exp_gain",
	CtrlVBlank:        "vblank",
	CtrlFrameRate:     "frame_rate",
	CtrlBlackLevel:    "black_level",
	CtrlHFlip:         "hflip",
	CtrlVFlip:         "vflip",
	CtrlTestPattern:   "test_pattern",
	CtrlDataRate:      "data_rate",
	CtrlSyncMode:      "sync_mode",
	CtrlOperationMode: "operation_mode",
	CtrlPixelRate:     "pixel_rate",
}

func (id ControlID) String() string {
	if n, ok := controlNames[id]; ok {
		return n
	}
	return fmt.Sprintf("control(%d)", uint32(id))
}

// ParseControl maps a control name back to its ID.
func ParseControl(name string) (ControlID, error) {
	for id, n := range controlNames {
		if n == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownControl, name)
}

// SyncMode selects how frames are timed.
type SyncMode uint32

const (
	SyncNone SyncMode = iota
	SyncInternal
	SyncExternal
)

// OperationMode selects who drives XVS/XHS.
type OperationMode uint32

const (
	Master OperationMode = iota
	Slave
)

// ControlInfo describes a control for enumeration.
type ControlInfo struct {
	ID       ControlID
	Name     string
	Min, Max int64
	Step     int64
	Default  int64
	Value    int64
	ReadOnly bool
	// Inactive controls are held but have no effect in the current mode.
	Inactive bool
	// Grabbed controls cannot change while streaming.
	Grabbed bool
	Menu    []string
}

// controlValues is the held value of every writable control.
type controlValues struct {
	exposure   uint32
	vsExposure uint32
	gain       uint32
	vsGain     uint32
	expGain    uint32
	blackLevel uint32
	hflip      bool
	vflip      bool
	pattern    uint32
	dataRate   uint32
	sync       SyncMode
	opMode     OperationMode
}

// grabbed controls change readout geometry or sync wiring.
func grabbed(id ControlID) bool {
	switch id {
	case CtrlHFlip, CtrlVFlip, CtrlSyncMode, CtrlOperationMode, CtrlDataRate:
		return true
	}
	return false
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// controlInfoLocked builds the descriptor of one control from current state.
func (d *Device) controlInfoLocked(id ControlID) (ControlInfo, error) {
	m := d.timing.Mode()
	ci := ControlInfo{ID: id, Name: id.String(), Step: 1, Grabbed: grabbed(id)}
	switch id {
	case CtrlExposure:
		lo, hi := exposureRange(m, d.timing.State().FrameLength)
		ci.Min, ci.Max, ci.Value = int64(lo), int64(hi), int64(d.ctrls.exposure)
		ci.Default = int64(hi)
	case CtrlVSExposure:
		ci.Min, ci.Max, ci.Value = minVSIntegration, maxVSIntegration, int64(d.ctrls.vsExposure)
		ci.Default = minVSIntegration
		ci.Inactive = m.HDR != HDRLineInterleaved
	case CtrlGain:
		ci.Max, ci.Value = int64(maxGainCode(m, ChannelMain)), int64(d.ctrls.gain)
	case CtrlVSGain:
		ci.Max, ci.Value = vsMaxGain, int64(d.ctrls.vsGain)
		ci.Inactive = m.HDR != HDRLineInterleaved
	case CtrlExpGain:
		ci.Max, ci.Default, ci.Value = int64(maxExpGain), 2, int64(d.ctrls.expGain)
		ci.Inactive = m.HDR != HDRDualGain
	case CtrlVBlank:
		lo, hi := d.timing.VBlankRange()
		ci.Min, ci.Max, ci.Value = int64(lo), int64(hi), int64(d.timing.VBlank())
		ci.Default = int64(m.DefFrameLength*m.rowsPerFrameUnit()) - int64(m.readoutRows())
	case CtrlFrameRate:
		ci.Min, ci.Max, ci.Value = int64(m.MinFPS), int64(m.MaxFPS), int64(d.timing.FrameRateQ10())
		ci.Default = ci.Value
	case CtrlBlackLevel:
		hi, def := blackLevelRange(m.Format)
		ci.Max, ci.Default, ci.Value = int64(hi), int64(def), int64(d.ctrls.blackLevel)
	case CtrlHFlip:
		ci.Max, ci.Value = 1, b2i(d.ctrls.hflip)
	case CtrlVFlip:
		ci.Max, ci.Value = 1, b2i(d.ctrls.vflip)
	case CtrlTestPattern:
		ci.Max, ci.Value, ci.Menu = int64(len(TestPatterns)-1), int64(d.ctrls.pattern), TestPatterns
	case CtrlDataRate:
		ci.Max, ci.Default, ci.Value = int64(len(dataRateMbps)-1), int64(d.reg.Board().DataRate), int64(d.ctrls.dataRate)
		for _, mbps := range dataRateMbps {
			ci.Menu = append(ci.Menu, fmt.Sprintf("%d Mbps", mbps))
		}
	case CtrlSyncMode:
		ci.Max, ci.Value = int64(SyncExternal), int64(d.ctrls.sync)
		ci.Menu = []string{"no sync", "internal sync", "external sync"}
	case CtrlOperationMode:
		ci.Max, ci.Value = int64(Slave), int64(d.ctrls.opMode)
		ci.Default = int64(d.cfg.OperationMode)
		ci.Menu = []string{"master", "slave"}
	case CtrlPixelRate:
		ci.ReadOnly, ci.Step = true, 0
		ci.Value = int64(d.timing.State().PixelRate)
		ci.Min, ci.Max, ci.Default = ci.Value, ci.Value, ci.Value
	default:
		return ControlInfo{}, fmt.Errorf("%w: %d", ErrUnknownControl, uint32(id))
	}
	return ci, nil
}

// resetControls loads defaults for the current mode.
func (d *Device) resetControls() {
	m := d.timing.Mode()
	_, hi := exposureRange(m, d.timing.State().FrameLength)
	_, bl := blackLevelRange(m.Format)
	d.ctrls = controlValues{
		exposure:   hi,
		vsExposure: minVSIntegration,
		expGain:    2,
		blackLevel: bl,
		dataRate:   d.reg.Board().DataRate,
		sync:       d.cfg.SyncMode,
		opMode:     d.cfg.OperationMode,
	}
}

// rebaseControls revalidates held values after a mode change from old.
func (d *Device) rebaseControls(old Mode) {
	m := d.timing.Mode()
	if old.Format.BitDepth() != m.Format.BitDepth() {
		if m.Format.BitDepth() == 12 {
			d.ctrls.blackLevel <<= 2
		} else {
			d.ctrls.blackLevel >>= 2
		}
	}
	blMax, _ := blackLevelRange(m.Format)
	d.ctrls.blackLevel = d.clampLogged(CtrlBlackLevel, d.ctrls.blackLevel, 0, blMax)
	d.ctrls.gain = d.clampLogged(CtrlGain, d.ctrls.gain, 0, maxGainCode(m, ChannelMain))
	if _, ok := lineLengthFor(d.ctrls.dataRate, d.reg.Board().Lanes, m.Binned); !ok {
		if rates := DataRates(m, d.reg.Board().Lanes); len(rates) > 0 {
			d.log.Warn("data rate not supported by mode, switching", "mode", m.Name,
				"requested", DataRateMbps(d.ctrls.dataRate), "applied", DataRateMbps(rates[len(rates)-1]))
			d.ctrls.dataRate = rates[len(rates)-1]
		}
	}
	d.syncDataRateLocked()
	d.clampExposureLocked()
}

// syncDataRateLocked moves the timing engine to the held data rate when legal.
func (d *Device) syncDataRateLocked() {
	if err := d.timing.SetDataRate(d.ctrls.dataRate, d.reg.Board().Lanes); err != nil {
		d.log.Warn("data rate rejected by timing", "rate", DataRateMbps(d.ctrls.dataRate), "lanes", d.reg.Board().Lanes)
	}
}

// clampExposureLocked keeps the held exposure inside the range implied by
// the current frame length.
func (d *Device) clampExposureLocked() {
	lo, hi := exposureRange(d.timing.Mode(), d.timing.State().FrameLength)
	d.ctrls.exposure = d.clampLogged(CtrlExposure, d.ctrls.exposure, lo, hi)
}

func (d *Device) clampLogged(id ControlID, v, lo, hi uint32) uint32 {
	out := v
	if out < lo {
		out = lo
	}
	if out > hi {
		out = hi
	}
	if out != v {
		d.log.Info("control clamped", "control", id.String(), "requested", v, "applied", out, "min", lo, "max", hi)
	}
	return out
}

// Control returns the current value of a control.
func (d *Device) Control(id ControlID) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ci, err := d.controlInfoLocked(id)
	return ci.Value, err
}

// QueryControls describes every control.
func (d *Device) QueryControls() []ControlInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ControlInfo, 0, len(controlNames))
	for id := CtrlExposure; id <= CtrlPixelRate; id++ {
		ci, _ := d.controlInfoLocked(id)
		out = append(out, ci)
	}
	return out
}

// SetControl updates a held value and, when the sensor is powered, writes
// it. Out-of-range values are clamped and logged, never rejected.
func (d *Device) SetControl(id ControlID, value int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setControlLocked(id, value)
}

func (d *Device) setControlLocked(id ControlID, value int64) error {
	ci, err := d.controlInfoLocked(id)
	if err != nil {
		return err
	}
	if ci.ReadOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, id)
	}
	if ci.Grabbed && d.state == Streaming {
		return fmt.Errorf("%w: %s is locked while streaming", ErrBusy, id)
	}
	if value < 0 {
		d.log.Info("control clamped", "control", id.String(), "requested", value, "applied", 0)
		value = 0
	}
	v := uint32(min(value, int64(^uint32(0))))
	m := d.timing.Mode()

	switch id {
	case CtrlExposure:
		lo, hi := exposureRange(m, d.timing.State().FrameLength)
		d.ctrls.exposure = d.clampLogged(id, v, lo, hi)
		return d.whenPowered(d.applyExposure)
	case CtrlVSExposure:
		d.ctrls.vsExposure = d.clampLogged(id, v, minVSIntegration, maxVSIntegration)
		return d.whenPowered(d.applyVSExposure)
	case CtrlGain:
		d.ctrls.gain = d.clampLogged(id, v, 0, maxGainCode(m, ChannelMain))
		return d.whenPowered(d.applyGain)
	case CtrlVSGain:
		d.ctrls.vsGain = d.clampLogged(id, v, 0, vsMaxGain)
		return d.whenPowered(d.applyVSGain)
	case CtrlExpGain:
		d.ctrls.expGain = d.clampLogged(id, v, 0, maxExpGain)
		return d.whenPowered(d.applyExpGain)
	case CtrlVBlank:
		lo, hi := d.timing.VBlankRange()
		d.timing.SetFrameLengthFromBlanking(d.clampLogged(id, v, lo, hi))
		return d.frameLengthChangedLocked()
	case CtrlFrameRate:
		fl, clamped := d.timing.FrameLengthForFPS(v)
		if clamped {
			d.log.Info("control clamped", "control", id.String(), "requested", v, "min", m.MinFPS, "max", m.MaxFPS)
		}
		d.timing.SetFrameLength(fl)
		return d.frameLengthChangedLocked()
	case CtrlBlackLevel:
		hi, _ := blackLevelRange(m.Format)
		d.ctrls.blackLevel = d.clampLogged(id, v, 0, hi)
		return d.whenPowered(d.applyBlackLevel)
	case CtrlHFlip:
		d.ctrls.hflip = v != 0
		return d.whenPowered(d.applyFlips)
	case CtrlVFlip:
		d.ctrls.vflip = v != 0
		return d.whenPowered(d.applyFlips)
	case CtrlTestPattern:
		d.ctrls.pattern = d.clampLogged(id, v, 0, uint32(len(TestPatterns)-1))
		return d.whenPowered(d.applyTestPattern)
	case CtrlDataRate:
		if _, ok := lineLengthFor(v, d.reg.Board().Lanes, m.Binned); !ok {
			return fmt.Errorf("%w: %d Mbps on %d lanes for %s", ErrUnsupportedDataRate, DataRateMbps(v), d.reg.Board().Lanes, m.Name)
		}
		d.ctrls.dataRate = v
		d.syncDataRateLocked()
		d.clampExposureLocked()
		return d.whenPowered(d.applyDataRate)
	case CtrlSyncMode:
		d.ctrls.sync = SyncMode(d.clampLogged(id, v, 0, uint32(SyncExternal)))
		return d.whenPowered(d.applySync)
	case CtrlOperationMode:
		d.ctrls.opMode = OperationMode(d.clampLogged(id, v, 0, uint32(Slave)))
		return d.whenPowered(d.applySync)
	}
	return fmt.Errorf("%w: %d", ErrUnknownControl, uint32(id))
}

// frameLengthChangedLocked re-derives the exposure range after VMAX moved
// and rewrites VMAX and SHR0 together.
func (d *Device) frameLengthChangedLocked() error {
	d.clampExposureLocked()
	return d.whenPowered(d.applyFrameAndExposure)
}

// SetExposure translates an exposure request and holds the result.
func (d *Device) SetExposure(req ExposureRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	lines := req.lines(d.timing.LineTimeNs())
	if req.Channel == ChannelVS {
		return d.setControlLocked(CtrlVSExposure, int64(lines))
	}
	return d.setControlLocked(CtrlExposure, int64(lines))
}

// SetGain translates a gain request and holds the result.
func (d *Device) SetGain(req GainRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	code, clamped := req.code()
	if clamped {
		d.log.Warn("gain out of table range", "requested", req.Value, "unit", req.Unit, "code", code)
	}
	if req.Channel == ChannelVS {
		return d.setControlLocked(CtrlVSGain, int64(code))
	}
	return d.setControlLocked(CtrlGain, int64(code))
}

// SetExpGainTimes selects the exponential gain step from a linear gain.
func (d *Device) SetExpGainTimes(times uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setControlLocked(CtrlExpGain, int64(expGainCode(times)))
}
