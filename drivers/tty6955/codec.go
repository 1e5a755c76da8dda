package tty6955

// encodeInit packs a validated Config into the 4-byte init frame.
func encodeInit(c Config) [4]byte {
	b0 := byte(initIICM | initAA)
	if c.SingleKeyMode {
		b0 |= initKOM
	}
	if c.PowerSave {
		b0 |= initPSM
	}
	if !c.NoDynamicThreshold {
		b0 |= initDT
	}
	b0 |= c.AutoReset & initART

	keys := c.Keys
	if keys == 0 {
		keys = MaxPads - c.sliderPads()
	}
	b1 := (keys&initKeysMask)<<3 | (c.KAT-1)&initKATMask

	b2 := c.Slider2Pads<<4 | c.Slider1Pads&0x0F
	b3 := c.Slider3Pads & 0x0F // key-off-num bits stay 0

	return [4]byte{b0, b1, b2, b3}
}

func (c Config) sliderPads() uint8 {
	return c.Slider1Pads + c.Slider2Pads + c.Slider3Pads
}

// encodeThresholds packs one 0xC0/0xD0 command frame. Levels are 4-bit;
// callers validate before encoding.
func encodeThresholds(cmd byte, t Thresholds) [3]byte {
	return [3]byte{
		cmd,
		(t.Mid&0x0F)<<4 | t.Low&0x0F,
		t.High & 0x0F,
	}
}
