package imx662

import (
	"fmt"

	"imx662-go/x/mathx"
)

// Format is the media-bus pixel format.
type Format uint8

const (
	FormatRGGB10 Format = iota + 1
	FormatRGGB12
	FormatY10
	FormatY12
)

func (f Format) BitDepth() int {
	if f == FormatRGGB10 || f == FormatY10 {
		return 10
	}
	return 12
}

func (f Format) Mono() bool { return f == FormatY10 || f == FormatY12 }

func (f Format) String() string {
	switch f {
	case FormatRGGB10:
		return "SRGGB10"
	case FormatRGGB12:
		return "SRGGB12"
	case FormatY10:
		return "Y10"
	case FormatY12:
		return "Y12"
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

// ParseFormat is the inverse of Format.String.
func ParseFormat(s string) (Format, error) {
	for _, f := range []Format{FormatRGGB10, FormatRGGB12, FormatY10, FormatY12} {
		if f.String() == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Transfer is the transfer-function hint that separates HDR modes from linear ones.
type Transfer uint8

const (
	TransferLinear Transfer = iota
	TransferHDR
)

func (t Transfer) String() string {
	if t == TransferHDR {
		return "hdr"
	}
	return "linear"
}

// HDRKind is the HDR combination performed by a mode.
type HDRKind uint8

const (
	HDRNone HDRKind = iota
	// HDRLineInterleaved is digital overlap (DOL): long and short exposures on alternating lines.
	HDRLineInterleaved
	// HDRDualGain combines high- and low-conversion-gain reads on chip ("clear HDR").
	HDRDualGain
)

type Rect struct {
	Left, Top, Width, Height uint32
}

// Mode is an immutable capture configuration.
type Mode struct {
	Name          string
	Width, Height uint32
	Format        Format
	HDR           HDRKind
	Binned        bool
	// Bounds is the full readout window; the active image sits at Left/Top.
	Bounds Rect

	MinLineLength, DefLineLength   uint32
	MinFrameLength, DefFrameLength uint32
	MinShutter                     uint32
	MinIntegration                 uint32
	MinVS, MaxVS                   uint32

	// Frame-rate bounds in Q10 fps.
	MinFPS, MaxFPS uint32

	Compressed bool

	regs       []regval
	formatRegs []regval
}

// Transfer reports the transfer hint the mode is registered under.
func (m Mode) Transfer() Transfer {
	if m.HDR == HDRNone {
		return TransferLinear
	}
	return TransferHDR
}

// rowsPerFrameUnit is 2 for DOL, where each VMAX unit covers two sensor rows.
func (m Mode) rowsPerFrameUnit() uint32 {
	if m.HDR == HDRLineInterleaved {
		return 2
	}
	return 1
}

// evenFrameLength reports whether VMAX must stay even.
func (m Mode) evenFrameLength() bool { return m.HDR == HDRLineInterleaved }

// readoutRows is the number of sensor rows read per output frame, before blanking.
func (m Mode) readoutRows() uint32 {
	if m.Binned {
		return 2 * m.Height
	}
	return m.Height
}

func (m Mode) String() string {
	return fmt.Sprintf("%s %dx%d %s", m.Name, m.Width, m.Height, m.Format)
}

// Data-rate selectors (Mbps per lane).
const (
	DataRate2376 uint32 = iota
	DataRate2079
	DataRate1782
	DataRate1440
	DataRate1188
	DataRate891
	DataRate720
	DataRate594
)

var dataRateMbps = [...]uint32{2376, 2079, 1782, 1440, 1188, 891, 720, 594}

// DataRateMbps returns the per-lane rate of a selector, or 0 when unknown.
func DataRateMbps(sel uint32) uint32 {
	if sel >= uint32(len(dataRateMbps)) {
		return 0
	}
	return dataRateMbps[sel]
}

// BoardConfig is what the board wiring fixes at construction time.
type BoardConfig struct {
	Lanes    uint32 // 2 or 4
	DataRate uint32 // default data-rate selector
	Mono     bool   // monochrome sensor variant
}

func DefaultBoardConfig() BoardConfig {
	return BoardConfig{Lanes: 4, DataRate: DataRate594}
}

func (b BoardConfig) Validate() error {
	if b.Lanes != 2 && b.Lanes != 4 {
		return fmt.Errorf("imx662: invalid lane count %d", b.Lanes)
	}
	if DataRateMbps(b.DataRate) == 0 {
		return fmt.Errorf("%w: selector %d", ErrUnsupportedDataRate, b.DataRate)
	}
	return nil
}

func (b BoardConfig) laneMode() uint32 {
	if b.Lanes == 2 {
		return laneMode2
	}
	return laneMode4
}

type modeKey struct {
	format   Format
	transfer Transfer
}

// Registry is the per-instance mode catalog.
type Registry struct {
	board  BoardConfig
	common []regval
	keys   []modeKey
	modes  map[modeKey][]Mode
}

// NewRegistry builds the catalog for one board.
func NewRegistry(board BoardConfig) (*Registry, error) {
	if err := board.Validate(); err != nil {
		return nil, err
	}
	r := &Registry{
		board:  board,
		common: commonTable(board.laneMode()),
		modes:  map[modeKey][]Mode{},
	}
	f10, f12 := FormatRGGB10, FormatRGGB12
	if board.Mono {
		f10, f12 = FormatY10, FormatY12
	}
	r.add(f12, TransferLinear, allPixel(f12), crop(f12), binning(f12), binningCrop(f12))
	r.add(f10, TransferLinear, allPixel(f10), crop(f10))
	r.add(f12, TransferHDR, dol(f12), clearHDR(f12))
	r.add(f10, TransferHDR, clearHDR(f10))
	return r, nil
}

func (r *Registry) add(f Format, t Transfer, modes ...Mode) {
	k := modeKey{f, t}
	r.keys = append(r.keys, k)
	r.modes[k] = modes
}

// Board returns the configuration the registry was built for.
func (r *Registry) Board() BoardConfig { return r.board }

// Lookup returns the modes registered for a format and transfer hint.
func (r *Registry) Lookup(f Format, t Transfer) ([]Mode, error) {
	modes := r.modes[modeKey{f, t}]
	if len(modes) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnsupportedFormat, f, t)
	}
	return append([]Mode(nil), modes...), nil
}

// FormatEntry is one enumerable (format, transfer) pair.
type FormatEntry struct {
	Format   Format
	Transfer Transfer
	Modes    []Mode
}

// Formats enumerates the catalog in registration order.
func (r *Registry) Formats() []FormatEntry {
	out := make([]FormatEntry, 0, len(r.keys))
	for _, k := range r.keys {
		out = append(out, FormatEntry{Format: k.format, Transfer: k.transfer, Modes: append([]Mode(nil), r.modes[k]...)})
	}
	return out
}

// Default returns the mode selected at probe time: full-resolution 12-bit linear.
func (r *Registry) Default() Mode {
	f := FormatRGGB12
	if r.board.Mono {
		f = FormatY12
	}
	return r.modes[modeKey{f, TransferLinear}][0]
}

// Nearest picks the mode closest to w x h: an exact match wins, otherwise
// the smallest absolute area difference; ties keep catalog order.
func Nearest(modes []Mode, w, h uint32) (Mode, error) {
	if len(modes) == 0 {
		return Mode{}, ErrUnsupportedFormat
	}
	best, bestDiff := 0, int64(-1)
	want := int64(w) * int64(h)
	for i, m := range modes {
		if m.Width == w && m.Height == h {
			return m, nil
		}
		d := mathx.Abs(int64(m.Width)*int64(m.Height) - want)
		if bestDiff < 0 || d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return modes[best], nil
}

func formatTable(f Format, hdr HDRKind) []regval {
	switch {
	case f.BitDepth() == 12:
		return format12Table
	case hdr == HDRDualGain:
		return format10ClearHDRTable
	}
	return format10Table
}

// linear fills the fields shared by every linear mode.
func linear(m Mode, line uint32, maxFPS uint32) Mode {
	m.MinLineLength, m.DefLineLength = hmax660, line
	m.MinShutter = minSHR0
	m.MinIntegration = minIntegration
	m.MaxFPS, m.MinFPS = maxFPS*q10, 5*q10
	m.DefFrameLength = defFrameLength
	m.MinFrameLength = frameLengthForFPS(m.MaxFPS, lineTimeNs(line), 1)
	m.formatRegs = formatTable(m.Format, HDRNone)
	return m
}

func allPixel(f Format) Mode {
	return linear(Mode{
		Name: "all-pixel", Width: 1920, Height: 1080, Format: f,
		Bounds: Rect{Left: 8, Top: 12, Width: 1936, Height: 1100},
		regs:   allPixelTable,
	}, hmax990, 60)
}

func crop(f Format) Mode {
	return linear(Mode{
		Name: "crop", Width: 1280, Height: 720, Format: f,
		Bounds: Rect{Left: 8, Top: 12, Width: 1296, Height: 740},
		regs:   cropTable,
	}, hmax990, 60)
}

func binning(f Format) Mode {
	m := linear(Mode{
		Name: "binning", Width: 960, Height: 540, Format: f, Binned: true,
		Bounds: Rect{Left: 4, Top: 6, Width: 968, Height: 550},
		regs:   binningTable,
	}, hmax660, 90)
	m.formatRegs = nil
	return m
}

func binningCrop(f Format) Mode {
	m := linear(Mode{
		Name: "binning-crop", Width: 640, Height: 480, Format: f, Binned: true,
		Bounds: Rect{Left: 4, Top: 6, Width: 648, Height: 490},
		regs:   binningCropTable,
	}, hmax660, 100)
	m.formatRegs = nil
	return m
}

func dol(f Format) Mode {
	m := Mode{
		Name: "dol-hdr", Width: 1936, Height: 1100, Format: f, HDR: HDRLineInterleaved,
		Bounds:        Rect{Width: 1936, Height: 1100},
		MinLineLength: hmax660, DefLineLength: hmax990,
		MinShutter:     minSHR0,
		MinIntegration: minIntegration,
		MinVS:          minVSIntegration, MaxVS: maxVSIntegration,
		MaxFPS: 30 * q10, MinFPS: 1 * q10,
		DefFrameLength: defFrameLength,
		Compressed:     true,
		regs:           dolTable,
		formatRegs:     formatTable(f, HDRLineInterleaved),
	}
	m.MinFrameLength = frameLengthForFPS(m.MaxFPS, lineTimeNs(hmax990), 2)
	return m
}

func clearHDR(f Format) Mode {
	m := Mode{
		Name: "clear-hdr", Width: 1936, Height: 1100, Format: f, HDR: HDRDualGain,
		Bounds:        Rect{Width: 1936, Height: 1100},
		MinLineLength: hmax660, DefLineLength: hmax990,
		MinShutter:     minSHR0ClearHDR,
		MinIntegration: minIntegrationClearHDR,
		MaxFPS:         30 * q10, MinFPS: 5 * q10,
		DefFrameLength: 2 * defFrameLength,
		Compressed:     true,
		regs:           clearHDRTable,
		formatRegs:     formatTable(f, HDRDualGain),
	}
	m.MinFrameLength = frameLengthForFPS(m.MaxFPS, lineTimeNs(hmax990), 1)
	return m
}
