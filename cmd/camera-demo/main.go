//go:build !rp2040 && !rp2350

// Command camera-demo drives one sensor through power, format, exposure and
// streaming over the bus, logging every reply and state change.
package main

import (
	"context"
	"runtime"
	"time"

	"imx662-go/bus"
	"imx662-go/services/camera"
	"imx662-go/types"
	"imx662-go/x/logx"
)

type step struct {
	verb    string
	payload any
}

var script = []step{
	{"power", types.PowerSet{On: true}},
	{"set_format", types.FormatSet{Format: "SRGGB12", Width: 1280, Height: 720}},
	{"set_ctrl", types.CtrlSet{Name: "frame_rate", Value: 30 << 10}},
	{"exposure", types.ExposureSet{Value: 10_000, Unit: "us"}},
	{"gain", types.GainSet{Value: 120, Unit: "deci_db"}},
	{"stream", types.StreamSet{On: true}},
	{"ramp", types.CtrlRamp{Name: "gain", To: 0, DurationMS: 500}},
	{"stream", types.StreamSet{On: false}},
	{"power", types.PowerSet{On: false}},
}

func main() {
	logx.Init("debug")
	log := logx.With("cmd", "camera-demo")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.NewBus(16)
	ui := b.NewConnection("ui")

	mon := ui.Subscribe(bus.T("camera", "+", "state"))
	go func() {
		for m := range mon.Channel() {
			if st, ok := m.Payload.(types.CameraState); ok {
				log.Info("state", "lifecycle", st.Lifecycle, "mode", st.Mode, "ufps", st.FPSMicro, "vmax", st.FrameLen)
			}
		}
	}()

	go camera.Run(ctx, b.NewConnection("camera"), camera.NewSimPlatform("i2c0"))

	cfg := types.CameraConfig{Devices: []types.CameraDevice{{Name: "cam0", Type: "imx662", Bus: "i2c0", VerifyChipID: true}}}
	ui.Publish(ui.NewMessage(bus.T("config", "camera"), cfg, true))
	time.Sleep(100 * time.Millisecond)

	for _, s := range script {
		rctx, rcancel := context.WithTimeout(ctx, 15*time.Second)
		reply, err := ui.RequestWait(rctx, ui.NewMessage(bus.T("camera", "cam0", "ctrl", s.verb), s.payload, false))
		rcancel()
		if err != nil {
			log.Error("request failed", "verb", s.verb, "err", err)
			continue
		}
		log.Info("reply", "verb", s.verb, "payload", reply.Payload)
		logMem()
	}
	time.Sleep(50 * time.Millisecond)
}

func logMem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	logx.Debug("mem", "alloc", ms.Alloc, "heap_inuse", ms.HeapInuse, "mallocs", ms.Mallocs, "frees", ms.Frees)
}
