package hal

// Minimal JSON config structures.

type HALConfig struct {
	Version int      `json:"version"`
	Buses   []BusCfg `json:"buses"`
	Devices []DevCfg `json:"devices"`
}

type BusCfg struct {
	ID     string   `json:"id"`   // "i2c0"
	Type   string   `json:"type"` // "i2c"
	Impl   string   `json:"impl"` // e.g. "tinygo" (informational)
	Pins   []PinCfg `json:"pins"` // wiring is applied by the platform factory
	Params struct {
		FreqHz int `json:"freq_hz"` // TTY6955 tops out at 100 kHz
	} `json:"params"`
}

type PinCfg struct {
	Name   string `json:"name"`
	Signal string `json:"signal"`
}

type DevCfg struct {
	ID     string    `json:"id"`   // "touch0"
	Type   string    `json:"type"` // "tty6955"
	BusRef DevBusRef `json:"bus_ref"`
	Params any       `json:"params,omitempty"` // device-specific shape; may be a map or struct
}

type DevBusRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// TouchParams is the params shape for "tty6955" devices.
type TouchParams struct {
	Addr        int    `json:"addr,omitempty"` // 0 = default 0x50
	Slider1Pads int    `json:"slider1_pads,omitempty"`
	Slider2Pads int    `json:"slider2_pads,omitempty"`
	Slider3Pads int    `json:"slider3_pads,omitempty"`
	SingleKey   bool   `json:"single_key,omitempty"`
	PowerSave   bool   `json:"power_save,omitempty"`
	NoDynThresh bool   `json:"no_dynamic_threshold,omitempty"`
	AutoReset   string `json:"auto_reset,omitempty"` // "off","15s","30s","1min"
	KAT         int    `json:"kat,omitempty"`        // 1..8; 0 = default 4
	Keys        int    `json:"keys,omitempty"`       // scanned key count override
	PeriodMS    int    `json:"period_ms,omitempty"`  // sampling period
}
