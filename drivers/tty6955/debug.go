package tty6955

// DebugString renders the last output frame as binary octets, for board
// bring-up. Reading it left to right: bit 7 of the first octet must be 1
// (calibration valid, anything else is noise), bit 6 is the reset flag,
// the low three bits are the slider-touched flags, the next two octets are
// the key bitmask, and the last three are the slider positions.
func (d *Device) DebugString() string {
	var buf [frameLen*9 - 1]byte
	n := 0
	for i, c := range d.frame {
		if i > 0 {
			buf[n] = ' '
			n++
		}
		for bit := 7; bit >= 0; bit-- {
			buf[n] = '0' + c>>uint(bit)&1
			n++
		}
	}
	return string(buf[:n])
}
