package notifier

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kartnagrale/auctionhouse/internal/logger"
)

// AMQPNotifier publishes Events to a topic exchange so settlement,
// email and webhook consumers can each bind their own queue without
// the engine knowing about any of them. Grounded on the go.mod
// manifest entry for github.com/rabbitmq/amqp091-go found in the
// example pack (no concrete usage file); the wiring below follows the
// library's own documented publish pattern.
type AMQPNotifier struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// NewAMQPNotifier dials url and declares a durable topic exchange.
func NewAMQPNotifier(url, exchange string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPNotifier{conn: conn, ch: ch, exchange: exchange}, nil
}

// Publish routes the event by kind with routing key "auction.<kind>"
// (e.g. "auction.lot_closed", "auction.outbid").
func (n *AMQPNotifier) Publish(ctx context.Context, e Event) error {
	routingKey := "auction." + e.Kind
	err := n.ch.PublishWithContext(ctx, n.exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        e.Payload,
	})
	if err != nil {
		logger.Log.Warn().Err(err).Str("routing_key", routingKey).Msg("amqp publish failed")
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close tears down the channel and connection.
func (n *AMQPNotifier) Close() error {
	n.ch.Close()
	return n.conn.Close()
}
