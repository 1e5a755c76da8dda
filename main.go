package main

import (
	"context"
	"time"

	"touchcode-go/bus"
	"touchcode-go/services/bridge"
	"touchcode-go/services/config"
	"touchcode-go/services/hal"
	"touchcode-go/services/heartbeat"
)

const deviceID = "touchpanel"

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("boot", deviceID)

	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, deviceID)
	b := bus.NewBus(8)

	go hal.Run(ctx, b.NewConnection("hal"), platformBuses())
	go bridge.Start(ctx, b.NewConnection("bridge"))

	var hb heartbeat.Service
	_ = hb.Start(ctx, b.NewConnection("heartbeat"))

	// Config last, so every service already holds its config subscription.
	config.NewConfigService().Start(ctx, b.NewConnection("config"))

	select {}
}
