//go:build !rp2040 && !rp2350

package bridge

import (
	"context"
	"errors"
	"io"

	"go.bug.st/serial"
)

func dialUART(_ context.Context, u UARTConfig) (io.ReadWriteCloser, error) {
	if u.Device == "" {
		return nil, errors.New("uart: device path required on this platform")
	}
	baud := u.Baud
	if baud <= 0 {
		baud = 115200
	}
	return serial.Open(u.Device, &serial.Mode{BaudRate: baud})
}
