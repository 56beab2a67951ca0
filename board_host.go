//go:build !rp2040 && !rp2350

package main

import (
	"time"

	"imx662-go/services/camera"
)

const (
	deviceID  = "sim"
	logLevel  = "debug"
	bootDelay = 0 * time.Second
)

func newPlatform() camera.Platform { return camera.NewSimPlatform("i2c0", "i2c1") }
