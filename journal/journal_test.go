package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"restaurant-order-engine/config"
	"restaurant-order-engine/engine"
	"restaurant-order-engine/events"
	"restaurant-order-engine/models"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.OpenDB(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func orderEvent(seq uint64, typ events.Type, status models.OrderStatus, change *events.Change) events.Event {
	return events.Event{
		Seq:     seq,
		Type:    typ,
		Key:     events.OrderTopic(3),
		Actor:   models.RoleCook,
		Change:  change,
		Payload: models.Order{ID: 3, Status: status, TotalAmount: decimal.NewFromInt(9)},
		At:      time.Date(2025, 2, 2, 10, 0, int(seq), 0, time.UTC),
	}
}

func TestRecorder_RecordAndHistory(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder(openDB(t), nil, 8)

	require.NoError(t, r.Record(ctx, orderEvent(1, events.OrderCreated, models.StatusPending, nil)))
	require.NoError(t, r.Record(ctx, orderEvent(2, events.OrderUpdated, models.StatusPreparing,
		&events.Change{From: models.StatusPending, To: models.StatusPreparing})))
	require.NoError(t, r.Record(ctx, events.Event{
		Seq:     3,
		Type:    events.MenuCreated,
		Key:     "menu:1",
		Actor:   models.RoleAdmin,
		Payload: models.MenuItem{ID: 1, Name: "Burger", Price: decimal.NewFromInt(5)},
		At:      time.Now().UTC(),
	}))

	history, err := r.History(ctx, 3)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.OrderStatus(""), history[0].FromStatus)
	assert.Equal(t, models.StatusPending, history[0].ToStatus)
	assert.Equal(t, models.StatusPending, history[1].FromStatus)
	assert.Equal(t, models.StatusPreparing, history[1].ToStatus)
	assert.Equal(t, models.RoleCook, history[1].ChangedBy)
	assert.Equal(t, uint64(2), history[1].EventSeq)

	menu, err := r.Events(ctx, "menu:1")
	require.NoError(t, err)
	require.Len(t, menu, 1)
	assert.Equal(t, string(events.MenuCreated), menu[0].Type)
	assert.Contains(t, menu[0].Payload, `"name":"Burger"`)
	assert.Contains(t, menu[0].Payload, `"price":5`)
}

func TestRecorder_RecordIsIdempotentPerSeq(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder(openDB(t), nil, 8)
	e := orderEvent(1, events.OrderCreated, models.StatusPending, nil)

	require.NoError(t, r.Record(ctx, e))
	require.NoError(t, r.Record(ctx, e))

	history, err := r.History(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	recs, err := r.Events(ctx, events.OrderTopic(3))
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestRecorder_RunFollowsEngine(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := engine.New()
	r := NewRecorder(openDB(t), nil, 16)
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, eng.Bus()) }()

	require.Eventually(t, func() bool {
		return eng.Bus().Subscribers(events.TopicOrders) == 1 && eng.Bus().Subscribers(events.TopicMenu) == 1
	}, time.Second, 5*time.Millisecond)

	m, err := eng.CreateMenu(models.RoleAdmin, engine.MenuInput{Name: "Ramen", Price: decimal.RequireFromString("13.5")})
	require.NoError(t, err)
	o, err := eng.CreateOrder(models.RoleWaiter, engine.OrderInput{Items: []engine.OrderLine{{MenuID: m.ID, Quantity: 1}}})
	require.NoError(t, err)
	for _, st := range []models.OrderStatus{models.StatusPreparing, models.StatusReady} {
		_, err = eng.AdvanceOrder(models.RoleCook, o.ID, st)
		require.NoError(t, err)
	}
	_, err = eng.ApplyPayment(models.RoleCashier, o.ID)
	require.NoError(t, err)

	var history []models.OrderStatusHistory
	require.Eventually(t, func() bool {
		history, err = r.History(context.Background(), o.ID)
		return err == nil && len(history) == 4
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, models.StatusPending, history[0].ToStatus)
	assert.Equal(t, models.StatusPreparing, history[1].ToStatus)
	assert.Equal(t, models.StatusReady, history[2].ToStatus)
	assert.True(t, history[3].IsPaid)
	assert.Equal(t, models.RoleCashier, history[3].ChangedBy)
	for i := 1; i < len(history); i++ {
		assert.Greater(t, history[i].EventSeq, history[i-1].EventSeq)
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("recorder did not stop")
	}
}
