package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-order-engine/apperror"
	"restaurant-order-engine/engine"
	"restaurant-order-engine/events"
	"restaurant-order-engine/models"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (f *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakePublisher) messages() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.sent...)
}

func TestRelay_Forward(t *testing.T) {
	pub := &fakePublisher{}
	r := New(pub, nil, 8)
	at := time.Date(2025, 4, 4, 9, 0, 0, 0, time.UTC)

	err := r.Forward(context.Background(), events.Event{
		Seq:     12,
		Type:    events.OrderUpdated,
		Key:     "order:5",
		Actor:   models.RoleCook,
		Change:  &events.Change{From: models.StatusPending, To: models.StatusPreparing},
		Payload: models.Order{ID: 5, Status: models.StatusPreparing, TotalAmount: decimal.RequireFromString("8.25")},
		At:      at,
	})
	require.NoError(t, err)

	sent := pub.messages()
	require.Len(t, sent, 1)
	p := sent[0]
	assert.Equal(t, Exchange, p.exchange)
	assert.Equal(t, "order_updated", p.key)
	assert.Equal(t, "application/json", p.msg.ContentType)
	assert.Equal(t, "12", p.msg.MessageId)
	assert.Equal(t, "order:5", p.msg.CorrelationId)
	assert.Equal(t, at, p.msg.Timestamp)
	assert.Equal(t, "restaurant-order-engine", p.msg.Headers["x-source"])

	var body map[string]any
	require.NoError(t, json.Unmarshal(p.msg.Body, &body))
	assert.Equal(t, "order_updated", body["type"])
	assert.Equal(t, float64(12), body["seq"])
	assert.Equal(t, map[string]any{"from": "Pending", "to": "Preparing"}, body["change"])
	assert.Equal(t, 8.25, body["payload"].(map[string]any)["total_amount"])
}

func TestRelay_ForwardErrorIsUnavailable(t *testing.T) {
	r := New(&fakePublisher{err: errors.New("channel closed")}, nil, 8)
	err := r.Forward(context.Background(), events.Event{Seq: 1, Type: events.MenuCreated})
	require.Error(t, err)
	assert.Equal(t, apperror.Unavailable, apperror.KindOf(err))
	assert.Contains(t, err.Error(), "channel closed")
}

func TestRelay_RunForwardsEngineEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := engine.New()
	pub := &fakePublisher{}
	r := New(pub, nil, 8)
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, eng.Bus()) }()

	require.Eventually(t, func() bool {
		return eng.Bus().Subscribers(events.TopicMenu) == 1 && eng.Bus().Subscribers(events.TopicOrders) == 1
	}, time.Second, 5*time.Millisecond)

	m, err := eng.CreateMenu(models.RoleAdmin, engine.MenuInput{Name: "Curry", Price: decimal.NewFromInt(10)})
	require.NoError(t, err)
	o, err := eng.CreateOrder(models.RoleWaiter, engine.OrderInput{Items: []engine.OrderLine{{MenuID: m.ID, Quantity: 2}}})
	require.NoError(t, err)
	_, err = eng.AdvanceOrder(models.RoleCook, o.ID, models.StatusPreparing)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(pub.messages()) == 3 }, time.Second, 5*time.Millisecond)

	var orderKeys []string
	for _, p := range pub.messages() {
		if p.msg.CorrelationId == events.OrderTopic(o.ID) {
			orderKeys = append(orderKeys, p.key)
		}
	}
	assert.Equal(t, []string{"order_created", "order_updated"}, orderKeys)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
