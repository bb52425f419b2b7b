// Package events fans committed catalog and order changes out to live
// subscribers. Delivery is best effort: there is no replay, and a subscriber
// whose queue fills up is disconnected instead of slowing the publisher.
// Events published in sequence for one entity reach each subscriber in that
// sequence.
package events

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"restaurant-order-engine/models"
)

type Type string

const (
	MenuCreated  Type = "menu_created"
	MenuUpdated  Type = "menu_updated"
	MenuDeleted  Type = "menu_deleted"
	OrderCreated Type = "order_created"
	OrderUpdated Type = "order_updated"
	OrderPaid    Type = "order_paid"
)

const (
	TopicMenu   = "menu"
	TopicOrders = "orders"

	orderTopicPrefix = "order:"
)

// DefaultBuffer is the queue length used when Subscribe is given none.
const DefaultBuffer = 64

// ErrSubscriberOverflow is reported by Subscription.Err when the subscriber
// was dropped for falling behind.
var ErrSubscriberOverflow = errors.New("events: subscriber queue overflow")

// OrderTopic is the per-order topic for id.
func OrderTopic(id uint) string {
	return orderTopicPrefix + strconv.FormatUint(uint64(id), 10)
}

// ValidTopic reports whether topic is menu, orders or order:<id>.
func ValidTopic(topic string) bool {
	switch topic {
	case TopicMenu, TopicOrders:
		return true
	}
	id, ok := strings.CutPrefix(topic, orderTopicPrefix)
	if !ok || id == "" {
		return false
	}
	_, err := strconv.ParseUint(id, 10, 64)
	return err == nil
}

// Change describes the status move an order event records.
type Change struct {
	From models.OrderStatus `json:"from"`
	To   models.OrderStatus `json:"to"`
}

type Event struct {
	Seq     uint64      `json:"seq"`
	Type    Type        `json:"type"`
	Key     string      `json:"key"`
	Actor   models.Role `json:"actor,omitempty"`
	Change  *Change     `json:"change,omitempty"`
	Payload any         `json:"payload"`
	At      time.Time   `json:"at"`

	// Topics the event is delivered on.
	Topics []string `json:"-"`
}

type Bus struct {
	mu   sync.Mutex
	seq  uint64
	subs map[string]map[*Subscription]struct{}
	now  func() time.Time
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[*Subscription]struct{}), now: time.Now}
}

// Subscribe registers for topic. The subscription sees events published
// after this call returns.
func (b *Bus) Subscribe(topic string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	s := &Subscription{topic: topic, ch: make(chan Event, buffer), bus: b}
	b.mu.Lock()
	set, ok := b.subs[topic]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[topic] = set
	}
	set[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Publish stamps e with the next sequence number and enqueues it for every
// subscriber of its topics. It never blocks on a subscriber.
func (b *Bus) Publish(e Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	e.Seq = b.seq
	if e.At.IsZero() {
		e.At = b.now().UTC()
	}
	for _, topic := range e.Topics {
		for s := range b.subs[topic] {
			select {
			case s.ch <- e:
			default:
				s.err = ErrSubscriberOverflow
				b.removeLocked(s)
			}
		}
	}
	return e
}

// Subscribers reports how many live subscriptions topic has.
func (b *Bus) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}

func (b *Bus) removeLocked(s *Subscription) {
	set := b.subs[s.topic]
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(b.subs, s.topic)
	}
	close(s.ch)
}

type Subscription struct {
	topic string
	ch    chan Event
	bus   *Bus
	err   error
}

func (s *Subscription) Topic() string { return s.topic }

// Events is closed when the subscription ends, either by Close or by overflow.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	s.bus.removeLocked(s)
	s.bus.mu.Unlock()
}

// Err returns why the subscription ended, nil if it is live or was closed
// by its owner.
func (s *Subscription) Err() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	return s.err
}
