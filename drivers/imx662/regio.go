package imx662

import (
	"log/slog"

	"tinygo.org/x/drivers"
)

const defaultRetries = 10

// regIO frames register transfers for the sensor: a 16-bit big-endian
// sub-address followed by up to four value bytes, least significant first.
type regIO struct {
	bus     drivers.I2C
	addr    uint16
	retries int
	log     *slog.Logger

	w [6]byte
	r [4]byte
}

func (io *regIO) tx(op string, reg uint16, w, r []byte) error {
	var err error
	for attempt := 1; attempt <= io.retries; attempt++ {
		if err = io.bus.Tx(io.addr, w, r); err == nil {
			if attempt > 1 {
				io.log.Warn("register transfer recovered", "op", op, "reg", reg, "attempts", attempt)
			}
			return nil
		}
	}
	return &BusError{Op: op, Reg: reg, Attempts: io.retries, Err: err}
}

// write stores n (1..4) bytes of val at reg, little-endian.
func (io *regIO) write(reg uint16, n int, val uint32) error {
	io.w[0], io.w[1] = byte(reg>>8), byte(reg)
	for i := 0; i < n; i++ {
		io.w[2+i] = byte(val >> (8 * i))
	}
	return io.tx("write", reg, io.w[:2+n], nil)
}

// read fetches n (1..4) bytes at reg and assembles them big-endian.
func (io *regIO) read(reg uint16, n int) (uint32, error) {
	io.w[0], io.w[1] = byte(reg>>8), byte(reg)
	if err := io.tx("read", reg, io.w[:2], io.r[:n]); err != nil {
		return 0, err
	}
	var v uint32
	for i := 0; i < n; i++ {
		v = v<<8 | uint32(io.r[i])
	}
	return v, nil
}

// readLE reads a little-endian multi-byte register as a value.
func (io *regIO) readLE(reg uint16, n int) (uint32, error) {
	be, err := io.read(reg, n)
	if err != nil {
		return 0, err
	}
	var v uint32
	for i := 0; i < n; i++ {
		v = v<<8 | (be>>(8*i))&0xFF
	}
	return v, nil
}

type regByte struct {
	addr uint16
	val  byte
}

// writeTable writes t in order, merging runs of consecutive addresses into
// transfers of up to four bytes.
func (io *regIO) writeTable(t []regval) error {
	var bytes []regByte
	for _, e := range t {
		for i := uint8(0); i < e.width; i++ {
			bytes = append(bytes, regByte{e.addr + uint16(i), byte(e.val >> (8 * i))})
		}
	}
	for i := 0; i < len(bytes); {
		n := 1
		for n < 4 && i+n < len(bytes) && bytes[i+n].addr == bytes[i].addr+uint16(n) {
			n++
		}
		var v uint32
		for j := n - 1; j >= 0; j-- {
			v = v<<8 | uint32(bytes[i+j].val)
		}
		if err := io.write(bytes[i].addr, n, v); err != nil {
			return err
		}
		i += n
	}
	return nil
}

// held runs fn between REGHOLD assert and release. The release is always
// attempted; the first error wins.
func (io *regIO) held(fn func() error) error {
	if err := io.write(regHold, 1, holdAsserted); err != nil {
		return err
	}
	err := fn()
	if rerr := io.write(regHold, 1, holdReleased); err == nil {
		err = rerr
	}
	return err
}
