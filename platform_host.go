//go:build !rp2040

package main

import (
	"touchcode-go/services/hal"

	"tinygo.org/x/drivers"
)

type hostBuses struct{}

func (hostBuses) ByID(string) (drivers.I2C, bool) { return nil, false }

// No real buses on the host; use cmd/touchtest for a simulated panel.
func platformBuses() hal.I2CBusFactory { return hostBuses{} }
