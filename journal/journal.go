// Package journal keeps an audit trail of committed engine events in SQLite.
// It is a bus subscriber like any other transport: if it falls behind it is
// dropped, logs the gap and subscribes again.
package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"restaurant-order-engine/events"
	"restaurant-order-engine/models"
)

// Subscriber is the part of the event bus the journal needs.
type Subscriber interface {
	Subscribe(topic string, buffer int) *events.Subscription
}

type Recorder struct {
	db     *gorm.DB
	log    *zap.Logger
	buffer int
}

func NewRecorder(db *gorm.DB, log *zap.Logger, buffer int) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{db: db, log: log, buffer: buffer}
}

// Run records menu and order events until ctx is done.
func (r *Recorder) Run(ctx context.Context, bus Subscriber) error {
	menu := bus.Subscribe(events.TopicMenu, r.buffer)
	orders := bus.Subscribe(events.TopicOrders, r.buffer)
	defer func() {
		menu.Close()
		orders.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-menu.Events():
			if !ok {
				r.log.Warn("journal dropped from topic, resubscribing",
					zap.String("topic", events.TopicMenu), zap.Error(menu.Err()))
				menu = bus.Subscribe(events.TopicMenu, r.buffer)
				continue
			}
			r.record(ctx, e)
		case e, ok := <-orders.Events():
			if !ok {
				r.log.Warn("journal dropped from topic, resubscribing",
					zap.String("topic", events.TopicOrders), zap.Error(orders.Err()))
				orders = bus.Subscribe(events.TopicOrders, r.buffer)
				continue
			}
			r.record(ctx, e)
		}
	}
}

func (r *Recorder) record(ctx context.Context, e events.Event) {
	if err := r.Record(ctx, e); err != nil {
		r.log.Error("journal write failed", zap.Uint64("seq", e.Seq), zap.String("type", string(e.Type)), zap.Error(err))
	}
}

// Record persists one event. Re-recording the same sequence number is a no-op.
func (r *Recorder) Record(ctx context.Context, e events.Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := models.EventRecord{
			Seq:       e.Seq,
			Type:      string(e.Type),
			EntityKey: e.Key,
			Actor:     e.Actor,
			Payload:   string(payload),
			CreatedAt: e.At,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error; err != nil {
			return fmt.Errorf("insert event: %w", err)
		}

		h, ok := historyRow(e)
		if !ok {
			return nil
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&h).Error; err != nil {
			return fmt.Errorf("insert status history: %w", err)
		}
		return nil
	})
}

func historyRow(e events.Event) (models.OrderStatusHistory, bool) {
	o, ok := e.Payload.(models.Order)
	if !ok {
		return models.OrderStatusHistory{}, false
	}
	h := models.OrderStatusHistory{
		OrderID:   o.ID,
		EventSeq:  e.Seq,
		ToStatus:  o.Status,
		IsPaid:    o.IsPaid,
		ChangedBy: e.Actor,
		CreatedAt: e.At,
	}
	switch e.Type {
	case events.OrderCreated:
	case events.OrderUpdated, events.OrderPaid:
		if e.Change != nil {
			h.FromStatus = e.Change.From
		}
	default:
		return models.OrderStatusHistory{}, false
	}
	return h, true
}

// History returns the status trail of an order, oldest first.
func (r *Recorder) History(ctx context.Context, orderID uint) ([]models.OrderStatusHistory, error) {
	var rows []models.OrderStatusHistory
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("event_seq asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load history for order %d: %w", orderID, err)
	}
	return rows, nil
}

// Events returns recorded events for an entity key ("menu:3", "order:7"),
// oldest first.
func (r *Recorder) Events(ctx context.Context, key string) ([]models.EventRecord, error) {
	var rows []models.EventRecord
	err := r.db.WithContext(ctx).
		Where("entity_key = ?", key).
		Order("seq asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load events for %s: %w", key, err)
	}
	return rows, nil
}
