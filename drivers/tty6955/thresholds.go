package tty6955

import "touchcode-go/x/mathx"

// The threshold and KAT registers are write-only on the IC; the driver caches
// the last accepted value of each so callers can read their own writes back.
// A failed bus transaction must leave the cache untouched.

// SetThresholds writes the custom low/medium/high threshold triple for one
// pad. Each level is 4-bit (0..15); arguments are validated before any bus
// transaction.
func (d *Device) SetThresholds(pad uint8, low, mid, high uint8) error {
	if pad >= MaxPads {
		return ErrInvalidPad
	}
	for _, v := range [3]uint8{low, mid, high} {
		if !mathx.Between(v, 0, 0x0F) {
			return ErrInvalidThreshold
		}
	}
	t := Thresholds{Low: low, Mid: mid, High: high}
	frame := encodeThresholds(cmdCustomThreshold|pad&0x0F, t)
	copy(d.w[:], frame[:])
	if err := d.bus.Tx(d.addr, d.w[:3], nil); err != nil {
		return err
	}
	d.thresholds[pad] = t
	d.thrSet |= 1 << pad
	return nil
}

// Thresholds returns the last triple accepted by SetThresholds for the pad,
// and whether one has been written since construction.
func (d *Device) Thresholds(pad uint8) (Thresholds, bool) {
	if pad >= MaxPads {
		return Thresholds{}, false
	}
	return d.thresholds[pad], d.thrSet&(1<<pad) != 0
}

// SetSleepThresholds writes the TPSLP sleep threshold triple.
func (d *Device) SetSleepThresholds(low, mid, high uint8) error {
	for _, v := range [3]uint8{low, mid, high} {
		if !mathx.Between(v, 0, 0x0F) {
			return ErrInvalidThreshold
		}
	}
	t := Thresholds{Low: low, Mid: mid, High: high}
	frame := encodeThresholds(cmdSleepThreshold, t)
	copy(d.w[:], frame[:])
	if err := d.bus.Tx(d.addr, d.w[:3], nil); err != nil {
		return err
	}
	d.sleep = t
	d.sleepSet = true
	return nil
}

// SleepThresholds returns the last triple accepted by SetSleepThresholds.
func (d *Device) SleepThresholds() (Thresholds, bool) {
	return d.sleep, d.sleepSet
}

// SetKAT changes the key activation time (1..8 confirming readings). KAT
// lives in the init word, so the whole init frame is re-sent; the cached
// config is only updated once the write succeeds.
func (d *Device) SetKAT(n uint8) error {
	if n < 1 || n > 8 {
		return ErrInvalidKAT
	}
	next := d.cfg
	next.KAT = n
	init := encodeInit(next)
	copy(d.w[:], init[:])
	if err := d.bus.Tx(d.addr, d.w[:4], nil); err != nil {
		return err
	}
	d.cfg = next
	return nil
}

// KAT returns the active key activation time.
func (d *Device) KAT() uint8 { return d.cfg.KAT }
