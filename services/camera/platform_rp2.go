//go:build rp2040 || rp2350

package camera

import (
	"machine"

	"tinygo.org/x/drivers"
)

// RP2Platform configures i2c0 and i2c1 with board-default pins at 400 kHz
// and maps pin numbers directly to GP numbering.
type RP2Platform struct {
	buses map[string]drivers.I2C
}

func NewRP2Platform() *RP2Platform {
	p := &RP2Platform{buses: map[string]drivers.I2C{}}

	b0 := machine.I2C0
	_ = b0.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.I2C0_SDA_PIN,
		SCL:       machine.I2C0_SCL_PIN,
	})
	p.buses["i2c0"] = b0

	b1 := machine.I2C1
	_ = b1.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.I2C1_SDA_PIN,
		SCL:       machine.I2C1_SCL_PIN,
	})
	p.buses["i2c1"] = b1
	return p
}

func (p *RP2Platform) I2C(id string) (drivers.I2C, bool) {
	b, ok := p.buses[id]
	return b, ok
}

func (p *RP2Platform) Pin(n int) (Pin, bool) {
	if n < 0 || n > 28 {
		return nil, false
	}
	pin := machine.Pin(n)
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return rp2Pin{pin}, true
}

type rp2Pin struct{ p machine.Pin }

func (r rp2Pin) Set(high bool) { r.p.Set(high) }
