// Package i2csim emulates a device with a 16-bit-addressed byte register file
// behind a tinygo drivers.I2C bus. Addresses auto-increment across a
// transfer, as on Sony CMOS sensors.
package i2csim

import (
	"errors"
	"sync"

	"tinygo.org/x/drivers"
)

var (
	ErrNack  = errors.New("i2csim: nack")
	ErrShort = errors.New("i2csim: short write")
)

var _ drivers.I2C = (*Device)(nil)

// Op is one recorded transfer.
type Op struct {
	Reg  uint16
	Data []byte // bytes written after the address, or bytes returned for reads
	Read bool
}

type Device struct {
	mu       sync.Mutex
	addr     uint16
	defaults map[uint16]byte
	regs     map[uint16]byte
	ops      []Op
	failNext int
	failRegs map[uint16]bool
}

// New creates a register file answering at addr. defaults are the
// power-on values restored by Reset.
func New(addr uint16, defaults map[uint16]byte) *Device {
	d := &Device{addr: addr, defaults: defaults, failRegs: map[uint16]bool{}}
	d.Reset()
	return d
}

// Reset restores power-on values and forgets the op log.
func (d *Device) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.regs = make(map[uint16]byte, len(d.defaults))
	for k, v := range d.defaults {
		d.regs[k] = v
	}
	d.ops = nil
}

func (d *Device) Tx(addr uint16, w, r []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if addr != d.addr {
		return ErrNack
	}
	if len(w) < 2 {
		return ErrShort
	}
	reg := uint16(w[0])<<8 | uint16(w[1])
	if d.failNext > 0 {
		d.failNext--
		return ErrNack
	}
	if d.failRegs[reg] {
		return ErrNack
	}
	if data := w[2:]; len(data) > 0 {
		for i, b := range data {
			d.regs[reg+uint16(i)] = b
		}
		d.ops = append(d.ops, Op{Reg: reg, Data: append([]byte(nil), data...)})
	}
	if len(r) > 0 {
		for i := range r {
			r[i] = d.regs[reg+uint16(i)]
		}
		d.ops = append(d.ops, Op{Reg: reg, Data: append([]byte(nil), r...), Read: true})
	}
	return nil
}

// FailNext makes the next n transfers fail with ErrNack.
func (d *Device) FailNext(n int) {
	d.mu.Lock()
	d.failNext = n
	d.mu.Unlock()
}

// FailReg makes every transfer starting at reg fail until cleared.
func (d *Device) FailReg(reg uint16, fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if fail {
		d.failRegs[reg] = true
	} else {
		delete(d.failRegs, reg)
	}
}

// Reg returns a single register byte.
func (d *Device) Reg(reg uint16) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs[reg]
}

// RegLE assembles n bytes starting at reg, least significant first.
func (d *Device) RegLE(reg uint16, n int) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	var v uint32
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint32(d.regs[reg+uint16(i)])
	}
	return v
}

// SetReg pokes a register without logging an op.
func (d *Device) SetReg(reg uint16, v byte) {
	d.mu.Lock()
	d.regs[reg] = v
	d.mu.Unlock()
}

// Ops returns a copy of the op log.
func (d *Device) Ops() []Op {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Op(nil), d.ops...)
}

// Writes returns the write ops only.
func (d *Device) Writes() []Op {
	var out []Op
	for _, op := range d.Ops() {
		if !op.Read {
			out = append(out, op)
		}
	}
	return out
}

// ClearOps forgets the op log but keeps register contents.
func (d *Device) ClearOps() {
	d.mu.Lock()
	d.ops = nil
	d.mu.Unlock()
}

// WroteTo counts write ops whose payload covers reg.
func (d *Device) WroteTo(reg uint16) int {
	n := 0
	for _, op := range d.Writes() {
		if reg >= op.Reg && int(reg-op.Reg) < len(op.Data) {
			n++
		}
	}
	return n
}
