//go:build rp2040

package main

import (
	"machine"

	"touchcode-go/services/hal"

	"tinygo.org/x/drivers"
)

// TTY6955 tops out at 100 kHz.
const i2cFreq = 100_000

type rp2Buses map[string]drivers.I2C

func (f rp2Buses) ByID(id string) (drivers.I2C, bool) {
	b, ok := f[id]
	return b, ok
}

func platformBuses() hal.I2CBusFactory {
	machine.I2C0.Configure(machine.I2CConfig{
		Frequency: i2cFreq,
		SDA:       machine.GP4,
		SCL:       machine.GP5,
	})
	return rp2Buses{"i2c0": machine.I2C0}
}
