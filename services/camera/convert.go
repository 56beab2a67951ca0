package camera

import (
	"fmt"

	"imx662-go/drivers/imx662"
	"imx662-go/types"
	"imx662-go/x/timex"
)

// infoMeta is the static part of a camera's info document.
type infoMeta struct {
	sensor string
	bus    string
	addr   uint16
}

func stateOf(dev *imx662.Device) types.CameraState {
	m := dev.Format()
	st := dev.Timing()
	return types.CameraState{
		Lifecycle:  dev.State().String(),
		Mode:       m.Name,
		Format:     m.Format.String(),
		Width:      m.Width,
		Height:     m.Height,
		HDR:        m.HDR != imx662.HDRNone,
		FPSMicro:   dev.FrameRate(),
		LineLength: st.LineLength,
		FrameLen:   st.FrameLength,
		DataRate:   imx662.DataRateMbps(st.DataRate),
		TS:         timex.NowMs(),
	}
}

func modeInfo(m imx662.Mode) types.ModeInfo {
	return types.ModeInfo{Name: m.Name, Width: m.Width, Height: m.Height, MaxFPSQ10: m.MaxFPS}
}

func formatsOf(reg *imx662.Registry) []types.FormatInfo {
	var out []types.FormatInfo
	for _, e := range reg.Formats() {
		fi := types.FormatInfo{Format: e.Format.String(), Transfer: e.Transfer.String()}
		for _, m := range e.Modes {
			fi.Modes = append(fi.Modes, modeInfo(m))
		}
		out = append(out, fi)
	}
	return out
}

func controlsOf(dev *imx662.Device) []types.ControlInfo {
	var out []types.ControlInfo
	for _, ci := range dev.QueryControls() {
		out = append(out, types.ControlInfo{
			Name: ci.Name, Min: ci.Min, Max: ci.Max, Step: ci.Step,
			Default: ci.Default, Value: ci.Value,
			ReadOnly: ci.ReadOnly, Inactive: ci.Inactive, Grabbed: ci.Grabbed,
			Menu: ci.Menu,
		})
	}
	return out
}

func infoOf(dev *imx662.Device, meta infoMeta) types.CameraInfo {
	board := dev.Registry().Board()
	return types.CameraInfo{
		Sensor:   meta.sensor,
		Bus:      meta.bus,
		Addr:     meta.addr,
		Lanes:    board.Lanes,
		Mono:     board.Mono,
		Formats:  formatsOf(dev.Registry()),
		Controls: controlsOf(dev),
	}
}

func parseTransfer(s string) (imx662.Transfer, error) {
	switch s {
	case "", "linear":
		return imx662.TransferLinear, nil
	case "hdr":
		return imx662.TransferHDR, nil
	}
	return 0, fmt.Errorf("unknown transfer %q", s)
}

func parseChannel(s string) (imx662.Channel, error) {
	switch s {
	case "", "main":
		return imx662.ChannelMain, nil
	case "vs":
		return imx662.ChannelVS, nil
	}
	return 0, fmt.Errorf("unknown channel %q", s)
}

func parseExposure(p types.ExposureSet) (imx662.ExposureRequest, error) {
	ch, err := parseChannel(p.Channel)
	if err != nil {
		return imx662.ExposureRequest{}, err
	}
	req := imx662.ExposureRequest{Value: p.Value, Channel: ch}
	switch p.Unit {
	case "", "lines":
		req.Unit = imx662.UnitLines
	case "us":
		req.Unit = imx662.UnitMicros
	case "us_q10":
		req.Unit = imx662.UnitMicrosQ10
	default:
		return imx662.ExposureRequest{}, fmt.Errorf("unknown exposure unit %q", p.Unit)
	}
	return req, nil
}

func parseGain(p types.GainSet) (imx662.GainRequest, error) {
	ch, err := parseChannel(p.Channel)
	if err != nil {
		return imx662.GainRequest{}, err
	}
	req := imx662.GainRequest{Value: p.Value, Channel: ch}
	switch p.Unit {
	case "", "code":
		req.Unit = imx662.GainCode
	case "times_q10":
		req.Unit = imx662.GainTimesQ10
	case "deci_db":
		req.Unit = imx662.GainDeciDB
	default:
		return imx662.GainRequest{}, fmt.Errorf("unknown gain unit %q", p.Unit)
	}
	return req, nil
}

func parseSync(s string) (imx662.SyncMode, error) {
	switch s {
	case "", "internal":
		return imx662.SyncInternal, nil
	case "external":
		return imx662.SyncExternal, nil
	case "none":
		return imx662.SyncNone, nil
	}
	return 0, fmt.Errorf("unknown sync mode %q", s)
}

func parseOperation(s string) (imx662.OperationMode, error) {
	switch s {
	case "", "master":
		return imx662.Master, nil
	case "slave":
		return imx662.Slave, nil
	}
	return 0, fmt.Errorf("unknown operation mode %q", s)
}

// dataRateSelector maps a per-lane rate in Mbps to its selector.
func dataRateSelector(mbps uint32) (uint32, error) {
	if mbps == 0 {
		return imx662.DataRate594, nil
	}
	for sel := uint32(0); imx662.DataRateMbps(sel) != 0; sel++ {
		if imx662.DataRateMbps(sel) == mbps {
			return sel, nil
		}
	}
	return 0, fmt.Errorf("%w: %d Mbps", imx662.ErrUnsupportedDataRate, mbps)
}
