package camera

import "tinygo.org/x/drivers"

// Pin is an output line such as a sensor reset.
type Pin interface {
	Set(high bool)
}

// Platform injects board resources by id.
type Platform interface {
	I2C(id string) (drivers.I2C, bool)
	Pin(n int) (Pin, bool)
}
