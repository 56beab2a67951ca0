//go:build rp2040 || rp2350

package bridge

import (
	"context"
	"fmt"
	"io"
	"machine"

	"github.com/jangala-dev/tinygo-uartx/uartx"
)

// uartPort adapts a uartx instance to a byte stream. Close cancels any
// pending receive; the hardware stays configured.
type uartPort struct {
	u      *uartx.UART
	ctx    context.Context
	cancel context.CancelFunc
}

func (p *uartPort) Read(b []byte) (int, error) {
	n, err := p.u.RecvSomeContext(p.ctx, b)
	if err != nil && p.ctx.Err() != nil {
		return n, io.EOF
	}
	return n, err
}

func (p *uartPort) Write(b []byte) (int, error) { return p.u.Write(b) }

func (p *uartPort) Close() error {
	p.cancel()
	return nil
}

func dialUART(ctx context.Context, u UARTConfig) (io.ReadWriteCloser, error) {
	var hw *uartx.UART
	switch u.Port {
	case 0:
		hw = uartx.UART0
	case 1:
		hw = uartx.UART1
	default:
		return nil, fmt.Errorf("uart: no instance %d", u.Port)
	}
	if err := hw.Configure(uartx.UARTConfig{
		BaudRate: uint32(u.Baud),
		TX:       machine.Pin(u.TxPin),
		RX:       machine.Pin(u.RxPin),
	}); err != nil {
		return nil, err
	}
	pctx, cancel := context.WithCancel(context.Background())
	return &uartPort{u: hw, ctx: pctx, cancel: cancel}, nil
}
