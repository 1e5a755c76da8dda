// cmd/touchtest/main.go
//
// Host-runnable smoke test: a simulated TTY6955 behind the full service
// stack. Prints every hal/# message so the capability topics can be
// eyeballed without hardware.
package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"touchcode-go/bus"
	"touchcode-go/services/hal"

	"tinygo.org/x/drivers"
)

// simTouch emulates the IC: it swallows command frames and serves output
// frames with a sweeping slider and a walking key bit. Calibration reads as
// in-progress for a short window after the init frame, like the real part.
type simTouch struct {
	mu           sync.Mutex
	configuredAt time.Time
	n            int
}

const calibrationTime = 300 * time.Millisecond

func (s *simTouch) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(w) > 0 {
		fmt.Printf("[sim] <- frame %02X\n", w)
		if len(w) == 4 {
			s.configuredAt = time.Now()
		}
		return nil
	}
	if len(r) >= 6 {
		status := byte(0)
		if !s.configuredAt.IsZero() && time.Since(s.configuredAt) > calibrationTime {
			status = 0x80 | 0x01 // calibrated, slider 1 touched
		}
		s.n++
		keys := uint16(1) << (s.n % 13)
		r[0] = status
		r[1] = byte(keys)
		r[2] = byte(keys >> 8)
		r[3] = byte((s.n * 16) % 256) // slider sweep
		r[4] = 0
		r[5] = 0
	}
	return nil
}

type simBuses map[string]drivers.I2C

func (f simBuses) ByID(id string) (drivers.I2C, bool) {
	b, ok := f[id]
	return b, ok
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b := bus.NewBus(16)
	go hal.Run(ctx, b.NewConnection("hal"), simBuses{"i2c0": &simTouch{}})

	ui := b.NewConnection("ui")
	mon := ui.Subscribe(bus.T("hal", "#"))
	go func() {
		for m := range mon.Channel() {
			fmt.Printf("[mon] %-45s %v\n", topicString(m.Topic), m.Payload)
		}
	}()

	cfg := hal.HALConfig{
		Version: 1,
		Buses:   []hal.BusCfg{{ID: "i2c0", Type: "i2c"}},
		Devices: []hal.DevCfg{{
			ID:     "touch0",
			Type:   "tty6955",
			BusRef: hal.DevBusRef{ID: "i2c0", Type: "i2c"},
			Params: hal.TouchParams{Slider1Pads: 3, PeriodMS: 200},
		}},
	}
	ui.Publish(ui.NewMessage(bus.T("config", "hal"), cfg, true))

	// Give the device a couple of sampling cycles, then poke the controls.
	time.Sleep(1500 * time.Millisecond)

	set := bus.T("hal", "capability", "touch_keys", 0, "control", "set_thresholds")
	if reply, err := ui.RequestWait(ctx, ui.NewMessage(set,
		map[string]any{"pad": 1, "low": 4, "mid": 6, "high": 8}, false)); err != nil {
		fmt.Println("[main] set_thresholds:", err)
	} else {
		fmt.Println("[main] set_thresholds reply:", reply.Payload)
	}

	get := bus.T("hal", "capability", "touch_keys", 0, "control", "get_thresholds")
	if reply, err := ui.RequestWait(ctx, ui.NewMessage(get,
		map[string]any{"pad": 1}, false)); err != nil {
		fmt.Println("[main] get_thresholds:", err)
	} else {
		fmt.Println("[main] get_thresholds reply:", reply.Payload)
	}

	<-ctx.Done()
}

func topicString(t bus.Topic) string {
	var sb strings.Builder
	for i := 0; i < t.Len(); i++ {
		if i > 0 {
			sb.WriteByte('/')
		}
		fmt.Fprintf(&sb, "%v", t.At(i))
	}
	return sb.String()
}
