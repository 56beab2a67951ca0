package imx662

import (
	"imx662-go/x/mathx"
)

// ExposureUnit says how ExposureRequest.Value is expressed.
type ExposureUnit uint8

const (
	UnitLines ExposureUnit = iota
	// UnitMicros is integration time in microseconds.
	UnitMicros
	// UnitMicrosQ10 is microseconds in Q10 fixed point.
	UnitMicrosQ10
)

// Channel selects the main exposure or the short (VS) sub-exposure of DOL.
type Channel uint8

const (
	ChannelMain Channel = iota
	ChannelVS
)

func (c Channel) String() string {
	if c == ChannelVS {
		return "vs"
	}
	return "main"
}

type ExposureRequest struct {
	Value   uint32
	Unit    ExposureUnit
	Channel Channel
}

// lines converts the request to integration lines at lineNs per line.
func (r ExposureRequest) lines(lineNs uint64) uint32 {
	switch r.Unit {
	case UnitMicros:
		return uint32(mathx.MulDiv(uint64(r.Value), 1000, lineNs))
	case UnitMicrosQ10:
		return uint32(mathx.MulDiv(uint64(r.Value), 1000, lineNs<<10))
	}
	return r.Value
}

// exposureRange is the legal main integration range at frame length fl.
func exposureRange(m Mode, fl uint32) (lo, hi uint32) {
	lo = m.MinIntegration
	if m.HDR == HDRLineInterleaved {
		hi = 2*fl - 2 - m.MaxVS
	} else {
		hi = fl - m.MinShutter
	}
	return lo, mathx.Max(lo, hi)
}

// shutterFor returns SHR0 for lines of integration, which must already be
// inside exposureRange.
func shutterFor(m Mode, fl, lines uint32) uint32 {
	var shr int64
	if m.HDR == HDRLineInterleaved {
		shr = int64(2*fl) - int64(lines)
		if shr%2 != 0 {
			shr--
		}
	} else {
		shr = int64(fl) - int64(lines)
	}
	return uint32(mathx.Max(shr, int64(m.MinShutter)))
}

// vsPlacement is the DOL short-exposure layout derived from the programmed SHR0.
type vsPlacement struct {
	SHR1, RHS1 uint32
	// Lines is the VS integration the placement yields.
	Lines    uint32
	Narrowed bool
}

// placeVS positions RHS1 for target lines of short exposure given SHR0 = shr0.
// RHS1 starts at the latest legal position (at least 2*BRL-1, at most
// SHR0 minus the minimum distance) and is pulled in to SHR1+lines, forced
// odd, when the window allows it.
func placeVS(m Mode, shr0, target uint32) vsPlacement {
	target = mathx.Clamp(target, m.MinVS, m.MaxVS)
	p := vsPlacement{SHR1: minSHR1}

	latest := int64(shr0) - minSHR0RHS1Distance
	rhs1 := mathx.Max(2*baseRowCount-1, latest)
	if int64(shr0) <= rhs1 {
		rhs1 = latest
	}
	floor := int64(p.SHR1 + m.MinVS)
	if rhs1 < floor {
		rhs1 = floor | 1
	}

	if rhs1-int64(p.SHR1) > int64(target) {
		rhs1 = mathx.OddDown(int64(target) + int64(p.SHR1))
	} else {
		p.Narrowed = true
	}
	p.RHS1 = uint32(rhs1)
	p.Lines = p.RHS1 - p.SHR1
	return p
}
