// Package tty6955 provides a minimal TinyGo driver for the TTY6945/TTY6955
// capacitive touch controllers.
//
// Design notes (datasheet/vendor manual references):
// • I2C, 100 kHz max, 7-bit address 0x50; command-frame protocol, not
//   sub-address registers: a 4-byte init frame configures the part, 3-byte
//   0xC0/0xD0 frames set thresholds, and a plain 6-byte read returns status,
//   the 16-key bitmask and three 8-bit slider positions.
// • The two parts share the protocol and differ only in pad count. Up to 3
//   sliders can be declared, but the IC cannot track two sliders touched at
//   the same time.
// • Baseline tracking (auto-calibration) runs on-chip; after power-on it can
//   take ~2 s, during which reads return ErrNotCalibrated.
//
// Calibration procedure (vendor manual, condensed):
//  1. Start with CS = 33 nF for slider layouts, 10 nF for key-only layouts
//     (bigger is more sensitive).
//  2. If detection fires before the finger touches the surface, raise the
//     threshold; if a hard press is needed, lower it. For sliders, tune in
//     the less sensitive teeth area between pads.
//  3. If keys feel unresponsive, hold a finger still ~1 s: no detection means
//     sensitivity is too low (back to 2), detection means speed is too low.
//  4. Lower KAT from the default 4 to 3, or reduce the CS capacitor (which
//     also lowers sensitivity; back to 2 after a change).
package tty6955

import (
	"tinygo.org/x/drivers"
)

// ---------------- Types and configuration ----------------

// Thresholds is one low/medium/high sensitivity triple; each level is 4-bit.
type Thresholds struct {
	Low, Mid, High uint8
}

// Config describes the init frame. The zero value is usable: address 0x50,
// no sliders, dynamic threshold on, auto-reset off, KAT 4.
type Config struct {
	Address uint16 // 0 = AddressDefault

	// Number of pads grouped into each slider (0 = slider unused, max 15,
	// 16 in total across sliders and keys).
	Slider1Pads uint8
	Slider2Pads uint8
	Slider3Pads uint8

	SingleKeyMode      bool  // KOM: report at most one key at a time
	PowerSave          bool  // PSM
	NoDynamicThreshold bool  // clear DT (dynamic threshold is on by default)
	AutoReset          uint8 // AutoResetOff..AutoReset1min; zero value = off
	KAT                uint8 // 1..8 confirming readings; 0 = KATDefault

	// Keys overrides the scanned key count (speeds up reading).
	// 0 = all pads not used by sliders.
	Keys uint8
}

// Device represents a TTY6945/TTY6955 on an I2C bus.
type Device struct {
	bus  drivers.I2C
	addr uint16
	cfg  Config

	// Last output frame; valid after the first successful Update.
	frame     [frameLen]byte
	haveFrame bool

	// Write-only IC state cached for read-back.
	thresholds [MaxPads]Thresholds
	thrSet     uint16 // bitmask of pads with a cached triple
	sleep      Thresholds
	sleepSet   bool

	// Fixed buffers to avoid per-call heap allocations.
	w [4]byte
	r [frameLen]byte
}

// New constructs a Device with the supplied config. The I2C bus must already
// be configured; this does not touch the device.
func New(bus drivers.I2C, cfg Config) *Device {
	if cfg.Address == 0 {
		cfg.Address = AddressDefault
	}
	if cfg.KAT == 0 {
		cfg.KAT = KATDefault
	}
	return &Device{
		bus:  bus,
		addr: cfg.Address,
		cfg:  cfg,
	}
}

// Configure validates the config and writes the init frame. The IC starts a
// calibration pass afterwards; reads return ErrNotCalibrated until it is done.
func (d *Device) Configure() error {
	if err := d.cfg.Validate(); err != nil {
		return err
	}
	init := encodeInit(d.cfg)
	copy(d.w[:], init[:])
	return d.bus.Tx(d.addr, d.w[:4], nil)
}

// Config returns the active configuration (defaults applied).
func (d *Device) Config() Config { return d.cfg }

// ---------------- Output frame ----------------

// Update reads the 6-byte output frame into the device snapshot.
// A bus failure leaves the previous snapshot untouched. ErrNotCalibrated is
// returned while the IC reports invalid calibration; the raw frame is still
// stored so DebugString can show it during bring-up.
func (d *Device) Update() error {
	if err := d.bus.Tx(d.addr, nil, d.r[:frameLen]); err != nil {
		return err
	}
	copy(d.frame[:], d.r[:frameLen])
	if d.frame[0]&statusCalibrated == 0 {
		d.haveFrame = false
		return ErrNotCalibrated
	}
	d.haveFrame = true
	return nil
}

// ReadKeys performs a fresh frame read and returns the 16-key bitmask.
// Bit n corresponds to key n; pads consumed by sliders shift key numbering
// down (with a 3-pad slider on TP0..TP2, pin TP3 is key 0).
func (d *Device) ReadKeys() (uint16, error) {
	if err := d.Update(); err != nil {
		return 0, err
	}
	return d.Keys(), nil
}

// ReadSlider performs a fresh frame read and returns the 8-bit position of
// slider channel 0..2. The channel is validated before any bus transaction.
func (d *Device) ReadSlider(channel int) (uint8, error) {
	if channel < 0 || channel >= NumSliders {
		return 0, ErrInvalidChannel
	}
	if err := d.Update(); err != nil {
		return 0, err
	}
	return d.frame[3+channel], nil
}

// ---------------- Snapshot accessors (last Update) ----------------

// Keys returns the key bitmask from the last snapshot.
func (d *Device) Keys() uint16 {
	if !d.haveFrame {
		return 0
	}
	return uint16(d.frame[1]) | uint16(d.frame[2])<<8
}

// Key reports whether key n (0-based) was touched in the last snapshot.
func (d *Device) Key(n int) bool {
	if n < 0 || n >= MaxPads {
		return false
	}
	return d.Keys()>>uint(n)&1 == 1
}

// Slider returns the position of slider channel 0..2 from the last snapshot.
func (d *Device) Slider(channel int) (uint8, error) {
	if channel < 0 || channel >= NumSliders {
		return 0, ErrInvalidChannel
	}
	if !d.haveFrame {
		return 0, ErrNoSnapshot
	}
	return d.frame[3+channel], nil
}

// SliderTouched reports whether slider channel 0..2 was touched in the last
// snapshot (status byte bits 0..2).
func (d *Device) SliderTouched(channel int) (bool, error) {
	if channel < 0 || channel >= NumSliders {
		return false, ErrInvalidChannel
	}
	if !d.haveFrame {
		return false, ErrNoSnapshot
	}
	return d.frame[0]>>uint(channel)&1 == 1, nil
}

// Calibrated reports whether the last read frame carried a valid calibration.
func (d *Device) Calibrated() bool { return d.haveFrame }

// ResetOccurred reports the reset flag from the last read frame; it is set
// after power-on and cleared by any configuration write.
func (d *Device) ResetOccurred() bool {
	return d.frame[0]&statusReset != 0
}
