package camera

import (
	"errors"
	"testing"

	"imx662-go/drivers/imx662"
	"imx662-go/types"
)

func TestDataRateSelector(t *testing.T) {
	if sel, err := dataRateSelector(0); err != nil || sel != imx662.DataRate594 {
		t.Fatalf("default = %d, %v", sel, err)
	}
	if sel, err := dataRateSelector(720); err != nil || sel != imx662.DataRate720 {
		t.Fatalf("720 = %d, %v", sel, err)
	}
	if _, err := dataRateSelector(1000); !errors.Is(err, imx662.ErrUnsupportedDataRate) {
		t.Fatalf("1000: %v", err)
	}
}

func TestParseExposureAndGain(t *testing.T) {
	e, err := parseExposure(types.ExposureSet{Value: 5, Unit: "us_q10", Channel: "vs"})
	if err != nil || e.Unit != imx662.UnitMicrosQ10 || e.Channel != imx662.ChannelVS {
		t.Fatalf("exposure = %+v, %v", e, err)
	}
	if _, err := parseExposure(types.ExposureSet{Channel: "xs"}); err == nil {
		t.Fatal("bad channel accepted")
	}
	g, err := parseGain(types.GainSet{Value: 2048, Unit: "times_q10"})
	if err != nil || g.Unit != imx662.GainTimesQ10 || g.Channel != imx662.ChannelMain {
		t.Fatalf("gain = %+v, %v", g, err)
	}
	if _, err := parseGain(types.GainSet{Unit: "stops"}); err == nil {
		t.Fatal("bad unit accepted")
	}
}

func TestParseModes(t *testing.T) {
	if s, err := parseSync("external"); err != nil || s != imx662.SyncExternal {
		t.Fatalf("sync = %v, %v", s, err)
	}
	if _, err := parseSync("genlock"); err == nil {
		t.Fatal("unknown sync accepted")
	}
	if op, err := parseOperation("slave"); err != nil || op != imx662.Slave {
		t.Fatalf("operation = %v, %v", op, err)
	}
	if tr, err := parseTransfer("hdr"); err != nil || tr != imx662.TransferHDR {
		t.Fatalf("transfer = %v, %v", tr, err)
	}
}

func TestInfoOf(t *testing.T) {
	dev := testDevice(t)
	info := infoOf(dev, infoMeta{sensor: "imx662", bus: "i2c0", addr: imx662.Address})
	if info.Lanes != 4 || info.Mono {
		t.Fatalf("info = %+v", info)
	}
	var linear *types.FormatInfo
	for i := range info.Formats {
		if info.Formats[i].Format == "SRGGB12" && info.Formats[i].Transfer == "linear" {
			linear = &info.Formats[i]
		}
	}
	if linear == nil || len(linear.Modes) < 2 {
		t.Fatalf("SRGGB12 linear modes = %+v", linear)
	}
	if len(info.Controls) != len(dev.QueryControls()) {
		t.Fatalf("%d controls", len(info.Controls))
	}
	st := stateOf(dev)
	if st.Lifecycle != "off" || st.Width != 1920 || st.HDR {
		t.Fatalf("state = %+v", st)
	}
}
