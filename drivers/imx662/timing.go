package imx662

import (
	"imx662-go/x/mathx"
)

// Line lengths in INCK ticks.
const (
	hmax990 = 990
	hmax660 = 660
)

// Frame geometry and shutter limits, in lines.
const (
	defFrameLength         = 1250
	minSHR0                = 4
	minSHR0ClearHDR        = 8
	minIntegration         = 1
	minIntegrationClearHDR = 8
	minSHR1                = 5
	minSHR0RHS1Distance    = 5
	minVSIntegration       = 2
	maxVSIntegration       = 66
	baseRowCount           = 1120 // BRL
)

// lineTimeNs returns the duration of one line for a line length in ticks.
func lineTimeNs(lineLength uint32) uint64 {
	return mathx.MulDiv(uint64(lineLength), nsPerSec, InckHz)
}

// frameLengthForFPS converts a Q10 frame rate to a VMAX value: rows per
// frame at the given line time, divided by rowsPerUnit, rounded up to even.
func frameLengthForFPS(fpsQ10 uint32, lineNs uint64, rowsPerUnit uint32) uint32 {
	if fpsQ10 == 0 || lineNs == 0 {
		return maxVMAX
	}
	rows := mathx.MulDiv(nsPerSec, q10, uint64(fpsQ10)*lineNs)
	fl := uint32(mathx.Min(rows/uint64(rowsPerUnit), maxVMAX))
	return mathx.EvenUp(fl)
}

// TimingState is the line/frame geometry of the active mode.
type TimingState struct {
	LineLength  uint32 // HMAX, INCK ticks
	FrameLength uint32 // VMAX, lines (line pairs in DOL)
	DataRate    uint32 // data-rate selector
	Lanes       uint32
	PixelRate   uint64 // pixels per second
}

// Timing keeps TimingState consistent with the active mode.
type Timing struct {
	mode Mode
	st   TimingState
}

// NewTiming starts from the given data rate and lane count; SetMode must
// run before any exposure computation.
func NewTiming(dataRate, lanes uint32) *Timing {
	return &Timing{st: TimingState{DataRate: dataRate, Lanes: lanes}}
}

func (t *Timing) State() TimingState { return t.st }
func (t *Timing) Mode() Mode         { return t.mode }

// SetMode resets line and frame length to the mode defaults.
func (t *Timing) SetMode(m Mode) {
	t.mode = m
	t.st.LineLength = m.DefLineLength
	t.st.FrameLength = m.DefFrameLength
	t.st.PixelRate = pixelRate(m)
}

func pixelRate(m Mode) uint64 {
	return mathx.MulDiv(uint64(m.Width), InckHz, uint64(m.MinLineLength))
}

// lineLengthFor is the data-rate support matrix.
func lineLengthFor(sel, lanes uint32, binned bool) (uint32, bool) {
	if lanes != 4 {
		return 0, false
	}
	switch {
	case sel == DataRate594 && binned:
		return hmax660, true
	case sel == DataRate594:
		return hmax990, true
	case sel == DataRate720 && !binned:
		return hmax660, true
	}
	return 0, false
}

// DataRates lists the selectors the mode accepts at the given lane count.
func DataRates(m Mode, lanes uint32) []uint32 {
	var out []uint32
	for sel := range uint32(len(dataRateMbps)) {
		if _, ok := lineLengthFor(sel, lanes, m.Binned); ok {
			out = append(out, sel)
		}
	}
	return out
}

// SetDataRate selects the line length for (sel, lanes) under the active
// mode. Unsupported combinations leave the state untouched.
func (t *Timing) SetDataRate(sel, lanes uint32) error {
	hmax, ok := lineLengthFor(sel, lanes, t.mode.Binned)
	if !ok {
		return ErrUnsupportedDataRate
	}
	t.st.DataRate, t.st.Lanes = sel, lanes
	t.st.LineLength = mathx.Max(hmax, t.mode.MinLineLength)
	t.st.PixelRate = pixelRate(t.mode)
	t.st.FrameLength = mathx.Max(t.st.FrameLength, t.MinFrameLength())
	return nil
}

// LineTimeNs is the current line period.
func (t *Timing) LineTimeNs() uint64 { return lineTimeNs(t.st.LineLength) }

// MinFrameLength is the shortest VMAX the mode allows at the current line
// length: the mode minimum or the max frame rate bound, whichever is longer.
func (t *Timing) MinFrameLength() uint32 {
	byFPS := frameLengthForFPS(t.mode.MaxFPS, t.LineTimeNs(), t.mode.rowsPerFrameUnit())
	return mathx.Max(t.mode.MinFrameLength, byFPS)
}

// MaxFrameLength is the longest VMAX the mode allows.
func (t *Timing) MaxFrameLength() uint32 {
	return mathx.Max(t.MinFrameLength(), frameLengthForFPS(t.mode.MinFPS, t.LineTimeNs(), t.mode.rowsPerFrameUnit()))
}

// SetFrameLength clamps fl into range, forces parity where required and
// stores it. It reports the value kept and whether it differs from fl.
func (t *Timing) SetFrameLength(fl uint32) (uint32, bool) {
	v := fl
	if t.mode.evenFrameLength() {
		v = mathx.EvenUp(v)
	}
	v = mathx.Clamp(v, t.MinFrameLength(), t.MaxFrameLength())
	t.st.FrameLength = v
	return v, v != fl
}

// SetFrameLengthFromBlanking sets the frame to the mode's readout rows plus
// vblank lines. Parity and range follow SetFrameLength.
func (t *Timing) SetFrameLengthFromBlanking(vblank uint32) uint32 {
	rows := t.mode.readoutRows() + vblank
	fl, _ := t.SetFrameLength(mathx.CeilDiv(rows, t.mode.rowsPerFrameUnit()))
	return fl
}

// VBlank is the blanking implied by the current frame length.
func (t *Timing) VBlank() uint32 {
	rows := t.st.FrameLength * t.mode.rowsPerFrameUnit()
	return rows - mathx.Min(rows, t.mode.readoutRows())
}

// VBlankRange is the legal blanking range at the current line length.
func (t *Timing) VBlankRange() (lo, hi uint32) {
	unit, rows := t.mode.rowsPerFrameUnit(), t.mode.readoutRows()
	lo = t.MinFrameLength()*unit - mathx.Min(t.MinFrameLength()*unit, rows)
	hi = t.MaxFrameLength()*unit - mathx.Min(t.MaxFrameLength()*unit, rows)
	return lo, hi
}

// FrameLengthForFPS converts a Q10 frame rate, clamped to the mode's
// bounds, to a VMAX value. clamped reports that fpsQ10 was out of range.
func (t *Timing) FrameLengthForFPS(fpsQ10 uint32) (fl uint32, clamped bool) {
	fps, clamped := mathx.Clamped(fpsQ10, t.mode.MinFPS, t.mode.MaxFPS)
	return frameLengthForFPS(fps, t.LineTimeNs(), t.mode.rowsPerFrameUnit()), clamped
}

func (t *Timing) framePeriodNs() uint64 {
	return uint64(t.st.FrameLength) * uint64(t.mode.rowsPerFrameUnit()) * t.LineTimeNs()
}

// MaxFrameRate is the frame rate at the current frame length, in µfps.
func (t *Timing) MaxFrameRate() uint64 {
	p := t.framePeriodNs()
	if p == 0 {
		return 0
	}
	return nsPerSec * 1_000_000 / p
}

// FrameRateQ10 is the current frame rate in Q10 fps.
func (t *Timing) FrameRateQ10() uint32 {
	p := t.framePeriodNs()
	if p == 0 {
		return 0
	}
	return uint32(mathx.MulDiv(nsPerSec, q10, p))
}
