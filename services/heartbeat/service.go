package heartbeat

import (
	"context"
	"time"

	"touchcode-go/bus"
)

var (
	topicConfigHeartbeat = bus.Topic{"config", "heartbeat"}
	topicHeartbeat       = bus.Topic{"system", "heartbeat"}
)

type Service struct{}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	start := time.Now()
	var seq uint32

	tick := time.NewTicker(1 * time.Second)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Publish(conn.NewMessage(topicHeartbeat, nil, true))
			return
		case t := <-tick.C:
			seq++
			conn.Publish(conn.NewMessage(topicHeartbeat, map[string]any{
				"seq":       int(seq),
				"uptime_ms": int(time.Since(start) / time.Millisecond),
				"ts_ms":     t.UnixMilli(),
			}, true))
		case msg := <-cfgSub.Channel():
			if iv, ok := intervalSeconds(msg.Payload); ok && iv > 0 {
				tick.Reset(time.Duration(iv) * time.Second)
			}
		}
	}
}

// intervalSeconds digs the interval out of a config payload; the decoder may
// hand numbers back as int, int64 or float64 depending on the source.
func intervalSeconds(p any) (int, bool) {
	m, ok := p.(map[string]any)
	if !ok {
		return 0, false
	}
	switch v := m["interval"].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
