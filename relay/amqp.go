// Package relay forwards engine events to a RabbitMQ fanout exchange so that
// out-of-process views (kitchen displays, the waiter app) can follow them.
// Forwarding is best effort, like every other bus subscriber.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"restaurant-order-engine/apperror"
	"restaurant-order-engine/events"
)

const Exchange = "restaurant_events"

const publishTimeout = 5 * time.Second

// Publisher is satisfied by *amqp.Channel.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Subscriber is the part of the event bus the relay needs.
type Subscriber interface {
	Subscribe(topic string, buffer int) *events.Subscription
}

type Relay struct {
	pub    Publisher
	log    *zap.Logger
	buffer int
	topics []string
}

func New(pub Publisher, log *zap.Logger, buffer int) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{pub: pub, log: log, buffer: buffer, topics: []string{events.TopicMenu, events.TopicOrders}}
}

// Dial connects to RabbitMQ and declares the fanout exchange.
func Dial(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, apperror.Wrap(apperror.Unavailable, err, "dial rabbitmq")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, apperror.Wrap(apperror.Unavailable, err, "open channel")
	}
	if err := ch.ExchangeDeclare(Exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", Exchange, err)
	}
	return conn, ch, nil
}

// Run forwards events until ctx is done. Subscriptions dropped for overflow
// are reopened.
func (r *Relay) Run(ctx context.Context, bus Subscriber) error {
	merged := make(chan events.Event)
	for _, topic := range r.topics {
		go r.pump(ctx, bus, topic, merged)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-merged:
			if err := r.Forward(ctx, e); err != nil {
				r.log.Error("relay publish failed", zap.Uint64("seq", e.Seq), zap.String("type", string(e.Type)), zap.Error(err))
			}
		}
	}
}

func (r *Relay) pump(ctx context.Context, bus Subscriber, topic string, out chan<- events.Event) {
	for ctx.Err() == nil {
		sub := bus.Subscribe(topic, r.buffer)
		r.drain(ctx, sub, out)
		sub.Close()
		if err := sub.Err(); err != nil {
			r.log.Warn("relay dropped from topic, resubscribing", zap.String("topic", topic), zap.Error(err))
		}
	}
}

func (r *Relay) drain(ctx context.Context, sub *events.Subscription, out chan<- events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.Events():
			if !ok {
				return
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Forward publishes one event, routed by its type.
func (r *Relay) Forward(ctx context.Context, e events.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event %d: %w", e.Seq, err)
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = r.pub.PublishWithContext(ctx, Exchange, string(e.Type), false, false, amqp.Publishing{
		ContentType:   "application/json",
		Body:          body,
		MessageId:     strconv.FormatUint(e.Seq, 10),
		CorrelationId: e.Key,
		Timestamp:     e.At,
		Headers: amqp.Table{
			"x-source": "restaurant-order-engine",
		},
	})
	if err != nil {
		return apperror.Wrap(apperror.Unavailable, err, "publish "+string(e.Type))
	}
	return nil
}
