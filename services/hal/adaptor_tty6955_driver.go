// services/hal/adaptor_tty6955_driver.go
package hal

import (
	"context"
	"time"

	"touchcode-go/drivers/tty6955"
	"touchcode-go/errcode"
	"touchcode-go/types"
	"touchcode-go/x/mathx"

	"tinygo.org/x/drivers"
)

var (
	kindTouchKeys = string(types.KindTouchKeys)
	kindSlider    = string(types.KindSlider)
)

type touchAdaptor struct {
	id         string
	dev        *tty6955.Device
	configured bool
	keys       int   // effective scanned key count
	sliders    []int // configured slider channels, 0-based
}

func NewTouchAdaptor(id string, bus drivers.I2C, cfg tty6955.Config) Adaptor {
	a := &touchAdaptor{
		id:  id,
		dev: tty6955.New(bus, cfg),
	}
	sliderPads := 0
	for ch, pads := range []uint8{cfg.Slider1Pads, cfg.Slider2Pads, cfg.Slider3Pads} {
		if pads > 0 {
			a.sliders = append(a.sliders, ch)
		}
		sliderPads += int(pads)
	}
	a.keys = int(cfg.Keys)
	if a.keys == 0 {
		a.keys = tty6955.MaxPads - sliderPads
	}
	return a
}

func (a *touchAdaptor) ID() string { return a.id }

func (a *touchAdaptor) Capabilities() []CapInfo {
	caps := []CapInfo{
		{Kind: kindTouchKeys, Info: map[string]any{
			"keys": a.keys, "schema_version": 1, "driver": "tty6955",
		}},
	}
	if len(a.sliders) > 0 {
		caps = append(caps, CapInfo{Kind: kindSlider, Info: map[string]any{
			"channels": a.sliders, "resolution": 256, "schema_version": 1, "driver": "tty6955",
		}})
	}
	return caps
}

// Trigger writes the init frame on first use; the IC samples continuously,
// so there is nothing to kick off per cycle.
func (a *touchAdaptor) Trigger(ctx context.Context) (time.Duration, error) {
	if !a.configured {
		if err := a.dev.Configure(); err != nil {
			return 0, a.wrap("configure", err)
		}
		a.configured = true
		// Auto-calibration runs after the init frame; give it a head start
		// before the first Collect instead of burning retries.
		return 100 * time.Millisecond, nil
	}
	return 0, nil
}

func (a *touchAdaptor) Collect(ctx context.Context) (Sample, error) {
	if err := a.dev.Update(); err != nil {
		if err == tty6955.ErrNotCalibrated {
			return nil, ErrNotReady
		}
		return nil, a.wrap("update", err)
	}
	ts := time.Now().UnixMilli()
	mask := a.dev.Keys()
	pressed := make([]bool, a.keys)
	for i := range pressed {
		pressed[i] = mask&(1<<i) != 0
	}
	s := Sample{
		{Kind: kindTouchKeys, Payload: map[string]any{
			"mask": int(mask), "keys": pressed, "ts_ms": ts,
		}, TsMs: ts},
	}
	for _, ch := range a.sliders {
		pos, err := a.dev.Slider(ch)
		if err != nil {
			continue
		}
		touched, _ := a.dev.SliderTouched(ch)
		s = append(s, Reading{
			Kind: kindSlider,
			Payload: map[string]any{
				"channel":  ch,
				"touched":  touched,
				"position": int(pos),
				"percent":  int(mathx.MapU16(uint16(pos), 0, 255, 0, 100)),
				"ts_ms":    ts,
			},
			TsMs: ts,
		})
	}
	return s, nil
}

// Control passes calibration writes through to the driver.
func (a *touchAdaptor) Control(kind, method string, payload any) (any, error) {
	switch method {
	case "set_thresholds":
		var p struct {
			Pad  int `json:"pad"`
			Low  int `json:"low"`
			Mid  int `json:"mid"`
			High int `json:"high"`
		}
		if err := decodeJSON(payload, &p); err != nil {
			return nil, &errcode.E{C: errcode.InvalidPayload, Op: "set_thresholds", Err: err}
		}
		pad, ok1 := u8(p.Pad)
		low, ok2 := u8(p.Low)
		mid, ok3 := u8(p.Mid)
		high, ok4 := u8(p.High)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return nil, &errcode.E{C: errcode.InvalidParams, Op: "set_thresholds", Msg: "value out of range"}
		}
		if err := a.dev.SetThresholds(pad, low, mid, high); err != nil {
			return nil, a.wrap("set_thresholds", err)
		}
		return map[string]any{"pad": p.Pad}, nil

	case "get_thresholds":
		var p struct {
			Pad int `json:"pad"`
		}
		if err := decodeJSON(payload, &p); err != nil {
			return nil, &errcode.E{C: errcode.InvalidPayload, Op: "get_thresholds", Err: err}
		}
		pad, okPad := u8(p.Pad)
		if !okPad {
			return nil, &errcode.E{C: errcode.InvalidParams, Op: "get_thresholds", Msg: "pad out of range"}
		}
		thr, ok := a.dev.Thresholds(pad)
		if !ok {
			return nil, &errcode.E{C: errcode.InvalidParams, Op: "get_thresholds", Msg: "no thresholds written for pad"}
		}
		return map[string]any{"pad": p.Pad, "low": int(thr.Low), "mid": int(thr.Mid), "high": int(thr.High)}, nil

	case "set_sleep_thresholds":
		var p struct {
			Low  int `json:"low"`
			Mid  int `json:"mid"`
			High int `json:"high"`
		}
		if err := decodeJSON(payload, &p); err != nil {
			return nil, &errcode.E{C: errcode.InvalidPayload, Op: "set_sleep_thresholds", Err: err}
		}
		low, ok1 := u8(p.Low)
		mid, ok2 := u8(p.Mid)
		high, ok3 := u8(p.High)
		if !ok1 || !ok2 || !ok3 {
			return nil, &errcode.E{C: errcode.InvalidParams, Op: "set_sleep_thresholds", Msg: "value out of range"}
		}
		if err := a.dev.SetSleepThresholds(low, mid, high); err != nil {
			return nil, a.wrap("set_sleep_thresholds", err)
		}
		return map[string]any{}, nil

	case "set_kat":
		var p struct {
			KAT int `json:"kat"`
		}
		if err := decodeJSON(payload, &p); err != nil {
			return nil, &errcode.E{C: errcode.InvalidPayload, Op: "set_kat", Err: err}
		}
		kat, ok := u8(p.KAT)
		if !ok {
			return nil, &errcode.E{C: errcode.InvalidParams, Op: "set_kat", Msg: "value out of range"}
		}
		if err := a.dev.SetKAT(kat); err != nil {
			return nil, a.wrap("set_kat", err)
		}
		return map[string]any{"kat": p.KAT}, nil
	}
	return nil, ErrUnsupported
}

func (a *touchAdaptor) wrap(op string, err error) error {
	return &errcode.E{C: errcode.MapDriverErr(err), Op: op, Err: err}
}

func u8(v int) (uint8, bool) {
	if v < 0 || v > 0xFF {
		return 0, false
	}
	return uint8(v), true
}
