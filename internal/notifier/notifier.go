// Package notifier fans bidding outcomes out to external systems
// (email/webhook gateways, downstream settlement services) that live
// outside the hub's live-subscriber websocket fan-out (§4.9).
package notifier

import "context"

// Event is one outcome worth telling the outside world about.
type Event struct {
	Kind      string // bid_placed, outbid, lot_closed
	AuctionID string
	LotID     string
	BidderID  string
	Payload   []byte // JSON
}

// Notifier publishes Events to external systems. Callers publish after
// their transaction has committed and log a returned error rather than
// failing the operation. AMQPNotifier publishes synchronously on the
// caller's goroutine and does not queue or retry; Noop returns at once.
type Notifier interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Noop discards every event. Used in tests and when AMQP_URL is unset.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
