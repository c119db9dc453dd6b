package events

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Bus fans room events across processes over redis pub/sub. No
// in-process state is authoritative; every instance sees the same
// stream.
type Bus struct {
	rdb *redis.Client
	log *zap.SugaredLogger
}

func NewBus(rdb *redis.Client, log *zap.SugaredLogger) *Bus {
	return &Bus{rdb: rdb, log: log}
}

func (b *Bus) Publish(ctx context.Context, roomID uint, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, RoomChannel(roomID), payload).Err()
}

// Subscription is a live room-channel subscription. Close it when the
// last local consumer goes away.
type Subscription struct {
	C     <-chan Event
	close func() error
}

func (s *Subscription) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// NewSubscription wraps an event stream with a close hook. The bus
// uses it internally; in-memory event sources can use it too.
func NewSubscription(ch <-chan Event, close func() error) *Subscription {
	return &Subscription{C: ch, close: close}
}

// Subscribe opens a room-channel subscription. Malformed payloads are
// logged and skipped. The returned channel closes when the
// subscription is closed.
func (b *Bus) Subscribe(ctx context.Context, roomID uint) *Subscription {
	pubsub := b.rdb.Subscribe(ctx, RoomChannel(roomID))
	out := make(chan Event, 32)

	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warnw("dropping malformed event", "channel", msg.Channel, "error", err)
				continue
			}
			out <- ev
		}
	}()

	return NewSubscription(out, pubsub.Close)
}
