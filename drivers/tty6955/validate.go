package tty6955

import "errors"

var (
	// Sentinel errors (TinyGo-safe; no fmt)
	ErrInvalidChannel    = errors.New("tty6955: slider channel out of range")
	ErrInvalidPad        = errors.New("tty6955: pad index out of range")
	ErrInvalidThreshold  = errors.New("tty6955: threshold level exceeds 4 bits")
	ErrInvalidKAT        = errors.New("tty6955: KAT must be 1..8")
	ErrInvalidAutoReset  = errors.New("tty6955: auto-reset mode must be 0..3")
	ErrInvalidSliderPads = errors.New("tty6955: slider pad count exceeds 15")
	ErrTooManySliderPads = errors.New("tty6955: slider pads exceed 16 total")
	ErrInvalidKeyCount   = errors.New("tty6955: key count exceeds pad capacity")

	// ErrNotCalibrated is returned while the IC reports invalid calibration;
	// auto-calibration after power-on can take a couple of seconds.
	ErrNotCalibrated = errors.New("tty6955: calibration not valid yet")

	// ErrNoSnapshot is returned by snapshot accessors before the first
	// successful Update.
	ErrNoSnapshot = errors.New("tty6955: no output frame read yet")
)

// Validate checks the configuration against the documented field widths.
// It never touches the bus.
func (c Config) Validate() error {
	for _, pads := range [NumSliders]uint8{c.Slider1Pads, c.Slider2Pads, c.Slider3Pads} {
		if pads > 0x0F {
			return ErrInvalidSliderPads
		}
	}
	if int(c.Slider1Pads)+int(c.Slider2Pads)+int(c.Slider3Pads) > MaxPads {
		return ErrTooManySliderPads
	}
	if c.AutoReset > autoResetLimit {
		return ErrInvalidAutoReset
	}
	if c.KAT > 8 {
		return ErrInvalidKAT
	}
	if c.Keys > initKeysMask {
		return ErrInvalidKeyCount
	}
	return nil
}
