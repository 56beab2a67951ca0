package main

import (
	"context"
	"time"

	"imx662-go/bus"
	"imx662-go/services/bridge"
	"imx662-go/services/camera"
	"imx662-go/services/config"
	"imx662-go/services/heartbeat"
	"imx662-go/x/logx"
)

func main() {
	// Allow USB CDC to enumerate before we log.
	time.Sleep(bootDelay)
	logx.Init(logLevel)
	logx.Info("boot", "device", deviceID)

	ctx := config.WithDevice(context.Background(), deviceID)
	b := bus.NewBus(16)

	go camera.Run(ctx, b.NewConnection("camera"), newPlatform())
	go bridge.Start(ctx, b.NewConnection("bridge"))
	hb := &heartbeat.Service{}
	_ = hb.Start(ctx, b.NewConnection("heartbeat"))
	config.NewConfigService().Start(ctx, b.NewConnection("config"))

	mon := b.NewConnection("monitor").Subscribe(bus.T("camera", "+", "state"))
	for m := range mon.Channel() {
		logx.Debug("camera state", "topic", m.Topic.String(), "state", m.Payload)
	}
}
