// Command frame and output frame constants.

package tty6955

const (
	// 7-bit I2C address. The part is limited to 100 kHz bus clock.
	AddressDefault = 0x50

	// Pad/slider capacity shared across the family.
	MaxPads    = 16
	NumSliders = 3

	// --- Init/configuration frame (4 bytes, no command prefix) ---

	// Byte 0: mode bits.
	initIICM = 0x80 // I2C mode + CT
	initKOM  = 0x20 // single-key output mode
	initAA   = 0x10 // auto-threshold adjust
	initPSM  = 0x08 // power save mode
	initDT   = 0x04 // dynamic threshold
	initART  = 0x03 // auto-reset time mask (bits 1:0)

	// Byte 1: (keys & 0x1F) << 3 | (KAT-1) & 0x07
	initKeysMask = 0x1F
	initKATMask  = 0x07

	// --- Command frames (3 bytes: command, M<<4|L, H) ---

	cmdCustomThreshold = 0xC0 // low nibble selects the pad
	cmdSleepThreshold  = 0xD0 // TPSLP sleep thresholds

	// --- Output frame (6 bytes, plain read) ---

	frameLen = 6

	// Byte 0: status.
	statusCalibrated = 0x80 // clear while auto-calibration is running
	statusReset      = 0x40 // set after reset until any configuration write
	statusSliderMask = 0x07 // bits 0..2: slider 1..3 touched

	// Bytes 1..2: 16-key bitmask, little-endian.
	// Bytes 3..5: slider 1..3 position, 0..255.
)

// Auto-reset time selections (init byte 0, bits 1:0).
const (
	AutoResetOff   = 0x00
	AutoReset15s   = 0x01 // power-on default
	AutoReset30s   = 0x02
	AutoReset1min  = 0x03
	autoResetLimit = AutoReset1min
)

// KATDefault is the number of consecutive confirming readings before a touch
// is reported; the vendor recommends 3 or 4.
const KATDefault = 4
