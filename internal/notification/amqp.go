package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"fxsignal/internal/strategy"
)

// amqpChannel is the subset of *amqp.Channel the notifier uses.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes signals as persistent JSON messages to a durable
// queue on the default exchange.
type AMQPNotifier struct {
	ch    amqpChannel
	queue string
	conn  *amqp.Connection
}

// DialAMQP connects to a broker and declares queue.
func DialAMQP(url, queue string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp: open channel: %w", err)
	}
	n, err := NewAMQPNotifier(ch, queue)
	if err != nil {
		conn.Close()
		return nil, err
	}
	n.conn = conn
	log.Printf("[amqp] publishing signals to queue %s", queue)
	return n, nil
}

// NewAMQPNotifier declares queue on ch.
func NewAMQPNotifier(ch amqpChannel, queue string) (*AMQPNotifier, error) {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("amqp: declare queue %s: %w", queue, err)
	}
	return &AMQPNotifier{ch: ch, queue: queue}, nil
}

func (n *AMQPNotifier) Name() string { return "amqp" }

func (n *AMQPNotifier) Notify(ctx context.Context, sig *strategy.Signal) error {
	body, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("amqp: marshal: %w", err)
	}
	err = n.ch.PublishWithContext(ctx, "", n.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    sig.Time,
		Type:         "signal." + sig.Strategy,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("amqp: publish to %s: %w", n.queue, err)
	}
	return nil
}

// Close closes the broker connection opened by DialAMQP.
func (n *AMQPNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}
