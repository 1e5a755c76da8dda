// services/hal/builder_tty6955.go
package hal

import (
	"time"

	"touchcode-go/drivers/tty6955"
	"touchcode-go/errcode"
	"touchcode-go/x/mathx"
)

type tty6955Builder struct{}

func init() { RegisterBuilder("tty6955", tty6955Builder{}) }

func (tty6955Builder) Build(in BuildInput) (BuildOutput, error) {
	if in.BusRef.Type != "i2c" || in.BusRef.ID == "" {
		return BuildOutput{}, &errcode.E{C: errcode.UnknownBus, Op: "build", Msg: "tty6955 requires an i2c bus_ref"}
	}
	i2c, ok := in.Buses.ByID(in.BusRef.ID)
	if !ok {
		return BuildOutput{}, &errcode.E{C: errcode.UnknownBus, Op: "build", Msg: in.BusRef.ID}
	}

	var p TouchParams
	if err := decodeJSON(in.ParamsJSON, &p); err != nil {
		return BuildOutput{}, &errcode.E{C: errcode.InvalidPayload, Op: "build", Err: err}
	}
	ar, ok := parseAutoReset(p.AutoReset)
	if !ok {
		return BuildOutput{}, &errcode.E{C: errcode.InvalidParams, Op: "build", Msg: "auto_reset: " + p.AutoReset}
	}
	cfg := tty6955.Config{
		Address:            uint16(p.Addr),
		Slider1Pads:        uint8(p.Slider1Pads),
		Slider2Pads:        uint8(p.Slider2Pads),
		Slider3Pads:        uint8(p.Slider3Pads),
		SingleKeyMode:      p.SingleKey,
		PowerSave:          p.PowerSave,
		NoDynamicThreshold: p.NoDynThresh,
		AutoReset:          ar,
		KAT:                uint8(p.KAT),
		Keys:               uint8(p.Keys),
	}
	// Fail at build time, not on the first worker cycle.
	if err := cfg.Validate(); err != nil {
		return BuildOutput{}, &errcode.E{C: errcode.MapDriverErr(err), Op: "build", Err: err}
	}

	period := p.PeriodMS
	if period == 0 {
		period = 200
	}
	period = mathx.Clamp(period, 50, 3_600_000)

	return BuildOutput{
		Adaptor:     NewTouchAdaptor(in.DeviceID, i2c, cfg),
		BusID:       in.BusRef.ID,
		SampleEvery: time.Duration(period) * time.Millisecond,
	}, nil
}

func parseAutoReset(s string) (uint8, bool) {
	switch s {
	case "", "15s":
		return tty6955.AutoReset15s, true
	case "off":
		return tty6955.AutoResetOff, true
	case "30s":
		return tty6955.AutoReset30s, true
	case "1min":
		return tty6955.AutoReset1min, true
	}
	return 0, false
}
