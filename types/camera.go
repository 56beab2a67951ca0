package types

// ------------------------
// Camera state & discovery (retained)
// ------------------------

// CameraState appears on camera/<name>/state.
type CameraState struct {
	Lifecycle string `json:"lifecycle"` // "off", "standby", "configuring", "streaming"
	Mode      string `json:"mode"`
	Format    string `json:"format"`
	Width     uint32 `json:"width"`
	Height    uint32 `json:"height"`
	HDR       bool   `json:"hdr"`
	// Frame rate in micro-frames per second (60 fps => 60000000).
	FPSMicro   uint64 `json:"fps_u"`
	LineLength uint32 `json:"hmax"`
	FrameLen   uint32 `json:"vmax"`
	DataRate   uint32 `json:"data_rate_mbps"`
	Error      string `json:"error,omitempty"`
	TS         int64  `json:"ts_ms"`
}

// CameraInfo appears on camera/<name>/info.
type CameraInfo struct {
	Sensor   string        `json:"sensor"`
	Bus      string        `json:"bus"`
	Addr     uint16        `json:"addr"`
	Lanes    uint32        `json:"lanes"`
	Mono     bool          `json:"mono"`
	Formats  []FormatInfo  `json:"formats"`
	Controls []ControlInfo `json:"controls"`
}

type FormatInfo struct {
	Format   string     `json:"format"`   // "SRGGB12", "Y10", ...
	Transfer string     `json:"transfer"` // "linear" or "hdr"
	Modes    []ModeInfo `json:"modes"`
}

type ModeInfo struct {
	Name   string `json:"name"`
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
	// Max frame rate in Q10 fps.
	MaxFPSQ10 uint32 `json:"max_fps_q10"`
}

type ControlInfo struct {
	Name     string   `json:"name"`
	Min      int64    `json:"min"`
	Max      int64    `json:"max"`
	Step     int64    `json:"step"`
	Default  int64    `json:"default"`
	Value    int64    `json:"value"`
	ReadOnly bool     `json:"read_only,omitempty"`
	Inactive bool     `json:"inactive,omitempty"`
	Grabbed  bool     `json:"grabbed,omitempty"`
	Menu     []string `json:"menu,omitempty"`
}

// ------------------------
// Control payloads (camera/<name>/ctrl/<verb>)
// ------------------------

type PowerSet struct {
	On bool `json:"on"`
}

type StreamSet struct {
	On bool `json:"on"`
}

type FormatSet struct {
	Format   string `json:"format"`
	Transfer string `json:"transfer,omitempty"` // empty => "linear"
	Width    uint32 `json:"width"`
	Height   uint32 `json:"height"`
}

type CtrlSet struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

type CtrlGet struct {
	Name string `json:"name"`
}

// CtrlRamp walks a control to To in Steps over DurationMS.
type CtrlRamp struct {
	Name       string `json:"name"`
	To         int64  `json:"to"`
	DurationMS uint32 `json:"duration_ms"`
	Steps      int    `json:"steps,omitempty"` // 0 => one per frame-ish 33 ms
}

type CtrlValue struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// ExposureSet units: "lines" (default), "us", "us_q10". Channel: "main" (default) or "vs".
type ExposureSet struct {
	Value   uint32 `json:"value"`
	Unit    string `json:"unit,omitempty"`
	Channel string `json:"channel,omitempty"`
}

// GainSet units: "code" (default), "times_q10", "deci_db".
type GainSet struct {
	Value   uint32 `json:"value"`
	Unit    string `json:"unit,omitempty"`
	Channel string `json:"channel,omitempty"`
}
