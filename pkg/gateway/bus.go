package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/voxora/voxora/internal/telemetry"
)

// BusCapacity is the buffered capacity of the dispatcher's inbound
// channel; per-session subscriber channels use subscriberCapacity.
const BusCapacity = 4096

// subscriberCapacity is the per-session channel capacity. A session
// slower than this drops events and must RESUME to catch up.
const subscriberCapacity = 64

// BroadcastPayload is an event dispatched to every subscribed session.
type BroadcastPayload struct {
	CommunityID string
	EventName   string
	Data        json.RawMessage
}

type subscriber struct {
	ch     chan BroadcastPayload
	lagged uint64
}

// Bus fans dispatched events out to subscribed gateway sessions. Go has
// no native multi-consumer broadcast channel, so Bus reproduces the
// same capacity-4096, drop-to-slow-receiver semantics with an explicit
// dispatcher goroutine and per-session subscriber channels.
type Bus struct {
	logger      *slog.Logger
	in          chan BroadcastPayload
	subscribers sync.Map // sessionID string -> *subscriber
}

// NewBus starts the dispatcher goroutine and returns the bus.
func NewBus(logger *slog.Logger) *Bus {
	b := &Bus{logger: logger, in: make(chan BroadcastPayload, BusCapacity)}
	go b.run()
	return b
}

// Dispatch enqueues a payload for delivery to every subscribed session.
func (b *Bus) Dispatch(payload BroadcastPayload) {
	b.in <- payload
}

// Subscribe registers sessionID for delivery and returns its receive
// channel. Call Unsubscribe when the session disconnects.
func (b *Bus) Subscribe(sessionID string) <-chan BroadcastPayload {
	sub := &subscriber{ch: make(chan BroadcastPayload, subscriberCapacity)}
	b.subscribers.Store(sessionID, sub)
	return sub.ch
}

// Unsubscribe removes sessionID from delivery. The channel is never
// closed here: the dispatcher's Range may have already captured this
// subscriber and be about to send to it, so closing would race a
// concurrent broadcast and panic. The channel is simply abandoned —
// its consumer has already stopped reading via its own deferred
// Unsubscribe — and reclaimed by the garbage collector once the
// dispatcher's reference to it is gone.
func (b *Bus) Unsubscribe(sessionID string) {
	b.subscribers.LoadAndDelete(sessionID)
}

func (b *Bus) run() {
	for payload := range b.in {
		b.subscribers.Range(func(key, value any) bool {
			sub := value.(*subscriber)
			select {
			case sub.ch <- payload:
			default:
				sub.lagged++
				telemetry.GatewayLaggedTotal.Inc()
				b.logger.Warn("gateway session lagged behind broadcast",
					slog.String("session_id", key.(string)),
					slog.Uint64("lagged_total", sub.lagged),
				)
			}
			return true
		})
	}
}
