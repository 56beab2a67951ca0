//go:build rp2040 || rp2350

package main

import (
	"time"

	"imx662-go/services/camera"
)

const (
	deviceID  = "pico"
	logLevel  = "info"
	bootDelay = 2 * time.Second
)

func newPlatform() camera.Platform { return camera.NewRP2Platform() }
