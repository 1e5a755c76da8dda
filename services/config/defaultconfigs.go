package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Populate embeddedConfigs at build time (e.g. via code generation) or
// manually during development.
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

// Three-pad slider on pads 0..2, remaining 13 pads as keys.
const cfgTouchPanel = `{
  "hal": {
      "version": 1,
      "buses": [
          {"id": "i2c0", "type": "i2c", "params": {"freq_hz": 100000}}
      ],
      "devices": [
          {
              "id": "touch0",
              "type": "tty6955",
              "bus_ref": {"id": "i2c0", "type": "i2c"},
              "params": {
                  "slider1_pads": 3,
                  "kat": 4,
                  "auto_reset": "15s",
                  "period_ms": 100
              }
          }
      ]
  },
  "bridge": {
      "transport": {
          "type": "uart",
          "uart": {"port": 0, "baud": 115200, "rx_pin": 1, "tx_pin": 0}
      },
      "forward": [
          ["hal", "capability", "#"],
          ["system", "heartbeat"]
      ],
      "ping_interval_s": 5
  },
  "heartbeat": {
      "interval": 2
  }
}`

var embeddedConfigs = map[string][]byte{
	"touchpanel": []byte(cfgTouchPanel),
}
