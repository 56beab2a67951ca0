package imx662

import (
	"imx662-go/x/mathx"
)

// Gain code limits. One code step is 0.3 dB.
const (
	MaxGainCode     = 240
	MaxGainDeciDB   = 720
	clearHDRMaxGain = 80
	vsMaxGain       = 200
)

// High conversion gain: above the threshold on linear modes the analog gain
// is reduced by the HCG level and FDG_SEL0 switches to the HCG path.
const (
	hcgLevel     = 51 // 15.3 dB
	hcgThreshold = hcgLevel + 29
	hcgMinCode   = 34
)

// GainUnit says how GainRequest.Value is expressed.
type GainUnit uint8

const (
	// GainCode is the sensor-native register code, 0..240.
	GainCode GainUnit = iota
	// GainTimesQ10 is linear gain with 1024 = 0 dB.
	GainTimesQ10
	// GainDeciDB is tenths of a decibel, 0..720.
	GainDeciDB
)

type GainRequest struct {
	Value   uint32
	Unit    GainUnit
	Channel Channel
}

// code converts the request to a register code; clamped reports an
// out-of-range input.
func (r GainRequest) code() (uint32, bool) {
	switch r.Unit {
	case GainTimesQ10:
		return lookupGainCode(r.Value)
	case GainDeciDB:
		v, clamped := mathx.Clamped(r.Value, 0, MaxGainDeciDB)
		return v * MaxGainCode / MaxGainDeciDB, clamped
	}
	return mathx.Clamped(r.Value, 0, MaxGainCode)
}

// maxGainCode is the channel cap for a mode.
func maxGainCode(m Mode, ch Channel) uint32 {
	switch {
	case ch == ChannelVS:
		return vsMaxGain
	case m.HDR == HDRDualGain:
		return clearHDRMaxGain
	}
	return MaxGainCode
}

// gainSetting is what lands in GAIN and FDG_SEL0.
type gainSetting struct {
	Code uint32
	HCG  bool
}

// gainFor applies the mode cap and, when enabled, the HCG split.
func gainFor(m Mode, code uint32, hcg bool) gainSetting {
	code = mathx.Min(code, maxGainCode(m, ChannelMain))
	if !hcg || m.HDR != HDRNone || code < hcgThreshold {
		return gainSetting{Code: code}
	}
	return gainSetting{Code: mathx.Max(code-hcgLevel, hcgMinCode), HCG: true}
}

// blackLevelRange is the control range in the active format's domain.
func blackLevelRange(f Format) (hi, def uint32) {
	if f.BitDepth() == 10 {
		return 1023, 50
	}
	return 4095, 200
}

// blackLevelReg converts a value in the format's domain to the register,
// which is always 10-bit equivalent.
func blackLevelReg(f Format, v uint32) uint32 {
	if f.BitDepth() == 12 {
		return v >> 2
	}
	return v
}
