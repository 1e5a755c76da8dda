package tty6955

import (
	"errors"
	"testing"

	"tinygo.org/x/drivers"
)

// Compile-time check.
var _ drivers.I2C = (*fakeI2C)(nil)

// fakeI2C scripts a TTY6955: it records every write frame and serves a
// canned output frame on plain reads.
type fakeI2C struct {
	addr   uint16
	writes [][]byte
	frame  [frameLen]byte
	err    error // returned for every transaction when set
}

func (f *fakeI2C) Tx(addr uint16, w, r []byte) error {
	if f.err != nil {
		return f.err
	}
	f.addr = addr
	if len(w) > 0 {
		cp := make([]byte, len(w))
		copy(cp, w)
		f.writes = append(f.writes, cp)
	}
	if len(r) > 0 {
		copy(r, f.frame[:])
	}
	return nil
}

// calibrated frame with the given key mask and slider positions.
func outputFrame(status byte, keys uint16, s1, s2, s3 byte) [frameLen]byte {
	return [frameLen]byte{status, byte(keys), byte(keys >> 8), s1, s2, s3}
}

func TestConfigure_InitFrame(t *testing.T) {
	bus := &fakeI2C{}
	d := New(bus, Config{
		Slider1Pads: 3,
		AutoReset:   AutoReset15s,
		KAT:         4,
	})
	if err := d.Configure(); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if bus.addr != AddressDefault {
		t.Fatalf("address = %#x, want %#x", bus.addr, AddressDefault)
	}
	if len(bus.writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(bus.writes))
	}
	got := bus.writes[0]
	// IICM|CT + AA + DT + ART=1
	if got[0] != 0x80|0x10|0x04|0x01 {
		t.Errorf("init byte0 = %08b", got[0])
	}
	// 13 keys left, KAT 4 -> (13<<3)|3
	if got[1] != 13<<3|3 {
		t.Errorf("init byte1 = %08b", got[1])
	}
	if got[2] != 0x03 {
		t.Errorf("init byte2 = %08b, want slider1=3", got[2])
	}
	if got[3] != 0x00 {
		t.Errorf("init byte3 = %08b", got[3])
	}
}

func TestConfigure_RejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want error
	}{
		{"too many slider pads", Config{Slider1Pads: 9, Slider2Pads: 8}, ErrTooManySliderPads},
		{"slider nibble overflow", Config{Slider1Pads: 16}, ErrInvalidSliderPads},
		{"auto reset", Config{AutoReset: 4}, ErrInvalidAutoReset},
		{"kat", Config{KAT: 9}, ErrInvalidKAT},
		{"keys", Config{Keys: 32}, ErrInvalidKeyCount},
	}
	for _, tc := range cases {
		bus := &fakeI2C{}
		d := New(bus, tc.cfg)
		if err := d.Configure(); !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
		if len(bus.writes) != 0 {
			t.Errorf("%s: rejected config still reached the bus", tc.name)
		}
	}
}

func TestReadKeys_Bitmask(t *testing.T) {
	bus := &fakeI2C{frame: outputFrame(statusCalibrated, 0b00000101, 0, 0, 0)}
	d := New(bus, Config{})

	keys, err := d.ReadKeys()
	if err != nil {
		t.Fatalf("read keys: %v", err)
	}
	if keys != 0b00000101 {
		t.Fatalf("keys = %016b, want bits 0 and 2", keys)
	}
	for n, want := range map[int]bool{0: true, 1: false, 2: true, 15: false} {
		if d.Key(n) != want {
			t.Errorf("Key(%d) = %v, want %v", n, d.Key(n), want)
		}
	}
}

func TestReadKeys_16BitMask(t *testing.T) {
	bus := &fakeI2C{frame: outputFrame(statusCalibrated, 0x8001, 0, 0, 0)}
	d := New(bus, Config{})

	keys, err := d.ReadKeys()
	if err != nil {
		t.Fatalf("read keys: %v", err)
	}
	if keys != 0x8001 {
		t.Fatalf("keys = %#04x, want 0x8001 (little-endian frame order)", keys)
	}
}

func TestReadSlider(t *testing.T) {
	bus := &fakeI2C{frame: outputFrame(statusCalibrated|0x01, 0, 200, 17, 255)}
	d := New(bus, Config{Slider1Pads: 3})

	v, err := d.ReadSlider(0)
	if err != nil {
		t.Fatalf("read slider 0: %v", err)
	}
	if v != 200 {
		t.Fatalf("slider 0 = %d, want 200", v)
	}

	if v, _ := d.ReadSlider(2); v != 255 {
		t.Errorf("slider 2 = %d, want 255", v)
	}

	touched, err := d.SliderTouched(0)
	if err != nil || !touched {
		t.Errorf("SliderTouched(0) = %v, %v; want true", touched, err)
	}
	touched, err = d.SliderTouched(1)
	if err != nil || touched {
		t.Errorf("SliderTouched(1) = %v, %v; want false", touched, err)
	}
}

func TestReadSlider_ChannelValidation(t *testing.T) {
	bus := &fakeI2C{frame: outputFrame(statusCalibrated, 0, 0, 0, 0)}
	d := New(bus, Config{})

	for _, ch := range []int{-1, 3, 7} {
		if _, err := d.ReadSlider(ch); !errors.Is(err, ErrInvalidChannel) {
			t.Errorf("ReadSlider(%d) err = %v, want ErrInvalidChannel", ch, err)
		}
		if _, err := d.Slider(ch); !errors.Is(err, ErrInvalidChannel) {
			t.Errorf("Slider(%d) err = %v, want ErrInvalidChannel", ch, err)
		}
	}
	// Validation happens before any transaction.
	if len(bus.writes) != 0 || bus.addr != 0 {
		t.Fatal("out-of-range channel reached the bus")
	}
}

func TestUpdate_NotCalibrated(t *testing.T) {
	bus := &fakeI2C{frame: outputFrame(statusReset, 0x0004, 0, 0, 0)}
	d := New(bus, Config{})

	if err := d.Update(); !errors.Is(err, ErrNotCalibrated) {
		t.Fatalf("err = %v, want ErrNotCalibrated", err)
	}
	if d.Calibrated() {
		t.Fatal("Calibrated() = true after invalid frame")
	}
	if d.Keys() != 0 {
		t.Fatal("uncalibrated snapshot must not expose keys")
	}
	if !d.ResetOccurred() {
		t.Fatal("reset flag lost")
	}

	// IC finishes calibrating.
	bus.frame = outputFrame(statusCalibrated, 0x0004, 0, 0, 0)
	if err := d.Update(); err != nil {
		t.Fatalf("second update: %v", err)
	}
	if !d.Key(2) {
		t.Fatal("key 2 not reported after calibration")
	}
}

func TestSetThresholds_FrameAndReadBack(t *testing.T) {
	bus := &fakeI2C{}
	d := New(bus, Config{})

	if err := d.SetThresholds(1, 4, 0, 8); err != nil {
		t.Fatalf("set thresholds: %v", err)
	}
	got := bus.writes[0]
	if got[0] != 0xC1 {
		t.Errorf("command byte = %#x, want 0xC1", got[0])
	}
	if got[1] != 0x04 { // M<<4 | L
		t.Errorf("byte1 = %#x, want 0x04", got[1])
	}
	if got[2] != 0x08 {
		t.Errorf("byte2 = %#x, want 0x08", got[2])
	}

	thr, ok := d.Thresholds(1)
	if !ok || thr != (Thresholds{Low: 4, Mid: 0, High: 8}) {
		t.Fatalf("read-back = %+v, %v", thr, ok)
	}
	if _, ok := d.Thresholds(2); ok {
		t.Fatal("pad 2 reports thresholds that were never written")
	}
}

func TestSetThresholds_Validation(t *testing.T) {
	bus := &fakeI2C{}
	d := New(bus, Config{})

	if err := d.SetThresholds(16, 1, 1, 1); !errors.Is(err, ErrInvalidPad) {
		t.Errorf("pad 16: err = %v, want ErrInvalidPad", err)
	}
	if err := d.SetThresholds(0, 16, 1, 1); !errors.Is(err, ErrInvalidThreshold) {
		t.Errorf("level 16: err = %v, want ErrInvalidThreshold", err)
	}
	if len(bus.writes) != 0 {
		t.Fatal("rejected thresholds reached the bus")
	}
}

func TestBusNACK_LeavesStateUnchanged(t *testing.T) {
	nack := errors.New("i2c: NACK")
	bus := &fakeI2C{frame: outputFrame(statusCalibrated, 0x0001, 42, 0, 0)}
	d := New(bus, Config{})

	if err := d.SetThresholds(3, 2, 5, 9); err != nil {
		t.Fatalf("seed thresholds: %v", err)
	}
	if err := d.Update(); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	bus.err = nack
	if err := d.SetThresholds(3, 1, 1, 1); !errors.Is(err, nack) {
		t.Fatalf("threshold write err = %v, want the bus error", err)
	}
	if err := d.SetKAT(3); !errors.Is(err, nack) {
		t.Fatalf("kat write err = %v, want the bus error", err)
	}
	if _, err := d.ReadKeys(); !errors.Is(err, nack) {
		t.Fatalf("read err = %v, want the bus error", err)
	}

	// Prior state survives the failed transactions.
	if thr, ok := d.Thresholds(3); !ok || thr != (Thresholds{Low: 2, Mid: 5, High: 9}) {
		t.Fatalf("threshold cache clobbered: %+v, %v", thr, ok)
	}
	if d.KAT() != KATDefault {
		t.Fatalf("KAT = %d, want default %d", d.KAT(), KATDefault)
	}
	if d.Keys() != 0x0001 {
		t.Fatalf("snapshot clobbered: keys = %#x", d.Keys())
	}
	if v, _ := d.Slider(0); v != 42 {
		t.Fatalf("snapshot clobbered: slider = %d", v)
	}
}

func TestSetKAT_RewritesInitFrame(t *testing.T) {
	bus := &fakeI2C{}
	d := New(bus, Config{Slider1Pads: 3, KAT: 4})
	if err := d.Configure(); err != nil {
		t.Fatalf("configure: %v", err)
	}

	if err := d.SetKAT(3); err != nil {
		t.Fatalf("set kat: %v", err)
	}
	if d.KAT() != 3 {
		t.Fatalf("KAT = %d, want 3", d.KAT())
	}
	got := bus.writes[len(bus.writes)-1]
	if len(got) != 4 {
		t.Fatalf("KAT change wrote %d bytes, want full init frame", len(got))
	}
	if got[1]&initKATMask != 2 { // KAT-1
		t.Errorf("init byte1 = %08b, want KAT field 2", got[1])
	}

	if err := d.SetKAT(0); !errors.Is(err, ErrInvalidKAT) {
		t.Errorf("SetKAT(0) err = %v, want ErrInvalidKAT", err)
	}
	if err := d.SetKAT(9); !errors.Is(err, ErrInvalidKAT) {
		t.Errorf("SetKAT(9) err = %v, want ErrInvalidKAT", err)
	}
}

func TestSetSleepThresholds(t *testing.T) {
	bus := &fakeI2C{}
	d := New(bus, Config{})

	if err := d.SetSleepThresholds(1, 2, 3); err != nil {
		t.Fatalf("set sleep thresholds: %v", err)
	}
	got := bus.writes[0]
	if got[0] != 0xD0 || got[1] != 0x21 || got[2] != 0x03 {
		t.Fatalf("sleep frame = %#x %#x %#x", got[0], got[1], got[2])
	}
	if thr, ok := d.SleepThresholds(); !ok || thr != (Thresholds{1, 2, 3}) {
		t.Fatalf("sleep read-back = %+v, %v", thr, ok)
	}
}

func TestDebugString(t *testing.T) {
	bus := &fakeI2C{frame: outputFrame(0b10000001, 0x0005, 200, 0, 0)}
	d := New(bus, Config{Slider1Pads: 3})
	if err := d.Update(); err != nil {
		t.Fatalf("update: %v", err)
	}
	want := "10000001 00000101 00000000 11001000 00000000 00000000"
	if got := d.DebugString(); got != want {
		t.Fatalf("DebugString:\n got %q\nwant %q", got, want)
	}
}
