//go:build !rp2040 && !rp2350

package camera

import (
	"sync"

	"imx662-go/drivers/imx662"
	"imx662-go/x/i2csim"

	"tinygo.org/x/drivers"
)

// chipIDReg holds the chip id after reset.
const chipIDReg, chipIDValue = 0x30DC, 0x32

// SimPlatform backs each named bus with a simulated sensor register file.
type SimPlatform struct {
	mu    sync.Mutex
	buses map[string]*i2csim.Device
	pins  map[int]*SimPin
}

// NewSimPlatform creates one simulated sensor per bus id.
func NewSimPlatform(busIDs ...string) *SimPlatform {
	p := &SimPlatform{buses: map[string]*i2csim.Device{}, pins: map[int]*SimPin{}}
	for _, id := range busIDs {
		p.buses[id] = i2csim.New(imx662.Address, map[uint16]byte{chipIDReg: chipIDValue})
	}
	return p
}

func (p *SimPlatform) I2C(id string) (drivers.I2C, bool) {
	b, ok := p.Sim(id)
	if !ok {
		return nil, false
	}
	return b, true
}

// Sim exposes the register file behind a bus for inspection.
func (p *SimPlatform) Sim(id string) (*i2csim.Device, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.buses[id]
	return b, ok
}

// Pin returns a recording pin for GP0..GP28. Driving a pin high after it
// was low resets every simulated sensor, like releasing XCLR.
func (p *SimPlatform) Pin(n int) (Pin, bool) {
	if n < 0 || n > 28 {
		return nil, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	pin, ok := p.pins[n]
	if !ok {
		pin = &SimPin{onRise: p.resetAll}
		p.pins[n] = pin
	}
	return pin, true
}

func (p *SimPlatform) resetAll() {
	p.mu.Lock()
	buses := make([]*i2csim.Device, 0, len(p.buses))
	for _, b := range p.buses {
		buses = append(buses, b)
	}
	p.mu.Unlock()
	for _, b := range buses {
		b.Reset()
	}
}

// SimPin records its level.
type SimPin struct {
	mu     sync.Mutex
	level  bool
	rises  int
	onRise func()
}

func (s *SimPin) Set(high bool) {
	s.mu.Lock()
	rise := high && !s.level
	s.level = high
	if rise {
		s.rises++
	}
	s.mu.Unlock()
	if rise && s.onRise != nil {
		s.onRise()
	}
}

func (s *SimPin) Level() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

func (s *SimPin) Rises() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rises
}
