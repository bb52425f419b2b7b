// Package engine is the coordination façade over the catalog, the order
// store, the status state machine and the event bus. Transports call only
// this package.
//
// Every mutation runs inside its entity's critical section: read, validate,
// commit, then enqueue the event. Enqueueing never blocks, so the section
// stays short, and since an entity has one writer at a time its events are
// published in commit order.
package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"restaurant-order-engine/apperror"
	"restaurant-order-engine/catalog"
	"restaurant-order-engine/events"
	"restaurant-order-engine/models"
	"restaurant-order-engine/orders"
	"restaurant-order-engine/statemachine"
)

type MenuInput struct {
	Name     string          `json:"name" validate:"required,max=100"`
	Price    decimal.Decimal `json:"price"`
	ImageURL *string         `json:"image_url" validate:"omitempty,max=255"`
}

type MenuPatch struct {
	Name     *string          `json:"name" validate:"omitempty,max=100"`
	Price    *decimal.Decimal `json:"price"`
	ImageURL *string          `json:"image_url" validate:"omitempty,max=255"`
}

type OrderLine struct {
	MenuID   uint `json:"menu_id" validate:"required"`
	Quantity int  `json:"quantity" validate:"gt=0"`
}

type OrderInput struct {
	SeatNumber *string     `json:"seat_number" validate:"omitempty,max=20"`
	Items      []OrderLine `json:"items" validate:"required,min=1,dive"`
}

// Payment is the result of a successful ApplyPayment.
type Payment struct {
	OrderID   uint            `json:"order_id"`
	TotalPaid decimal.Decimal `json:"total_paid"`
	Order     models.Order    `json:"order"`
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

type Engine struct {
	catalog  *catalog.Store
	orders   *orders.Store
	bus      *events.Bus
	locks    keyedMutex
	validate *validator.Validate
	log      *zap.Logger
	now      func() time.Time
}

func New(opts ...Option) *Engine {
	e := &Engine{
		catalog:  catalog.NewStore(),
		orders:   orders.NewStore(),
		bus:      events.NewBus(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Bus exposes the event bus for in-process subscribers such as the journal.
func (e *Engine) Bus() *events.Bus { return e.bus }

// ── Catalog ─────────────────────────────────────────────────────────────────

func (e *Engine) ListMenu() []models.MenuItem {
	return e.catalog.List()
}

func (e *Engine) GetMenu(id uint) (models.MenuItem, error) {
	return e.catalog.Get(id)
}

func (e *Engine) CreateMenu(actor models.Role, in MenuInput) (models.MenuItem, error) {
	if err := requireRole(actor, "create menu item", models.RoleAdmin); err != nil {
		return models.MenuItem{}, err
	}
	if err := e.check(in); err != nil {
		return models.MenuItem{}, err
	}

	id := e.catalog.NextID()
	unlock := e.locks.Lock(menuKey(id))
	defer unlock()
	item, err := e.catalog.Create(id, in.Name, in.Price, in.ImageURL)
	if err != nil {
		return models.MenuItem{}, err
	}
	e.publishMenu(events.MenuCreated, actor, item.ID, item)
	e.log.Info("menu item created", zap.Uint("menu_id", item.ID), zap.String("name", item.Name))
	return item, nil
}

func (e *Engine) UpdateMenu(actor models.Role, id uint, p MenuPatch) (models.MenuItem, error) {
	if err := requireRole(actor, "update menu item", models.RoleAdmin); err != nil {
		return models.MenuItem{}, err
	}
	if err := e.check(p); err != nil {
		return models.MenuItem{}, err
	}
	patch := catalog.Patch{Name: p.Name, Price: p.Price, ImageURL: p.ImageURL}
	if patch.Empty() {
		return models.MenuItem{}, apperror.Validationf("nothing to update: supply name, price or image_url")
	}

	unlock := e.locks.Lock(menuKey(id))
	defer unlock()
	item, err := e.catalog.Update(id, patch)
	if err != nil {
		return models.MenuItem{}, err
	}
	e.publishMenu(events.MenuUpdated, actor, item.ID, item)
	e.log.Info("menu item updated", zap.Uint("menu_id", item.ID))
	return item, nil
}

// DeleteMenu removes a menu item. Orders that reference it keep their
// snapshots.
func (e *Engine) DeleteMenu(actor models.Role, id uint) error {
	if err := requireRole(actor, "delete menu item", models.RoleAdmin); err != nil {
		return err
	}
	unlock := e.locks.Lock(menuKey(id))
	defer unlock()
	if _, err := e.catalog.Delete(id); err != nil {
		return err
	}
	e.publishMenu(events.MenuDeleted, actor, id, models.MenuDeleted{ID: id})
	e.log.Info("menu item deleted", zap.Uint("menu_id", id))
	return nil
}

// ── Orders ──────────────────────────────────────────────────────────────────

func (e *Engine) CreateOrder(actor models.Role, in OrderInput) (models.Order, error) {
	if err := requireRole(actor, "create order", models.RoleWaiter, models.RoleAdmin); err != nil {
		return models.Order{}, err
	}
	if err := e.check(in); err != nil {
		return models.Order{}, err
	}

	lines := make([]orders.Line, 0, len(in.Items))
	for _, it := range in.Items {
		menu, err := e.catalog.Get(it.MenuID)
		if err != nil {
			return models.Order{}, err
		}
		lines = append(lines, orders.Line{Menu: menu, Quantity: it.Quantity})
	}

	id := e.orders.NextID()
	unlock := e.locks.Lock(orderKey(id))
	defer unlock()
	order, err := e.orders.Create(id, in.SeatNumber, lines)
	if err != nil {
		return models.Order{}, err
	}
	e.publishOrder(events.OrderCreated, actor, order, nil)
	e.log.Info("order created",
		zap.Uint("order_id", order.ID),
		zap.Stringp("seat_number", order.SeatNumber),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)))
	return order, nil
}

func (e *Engine) GetOrder(actor models.Role, id uint) (models.Order, error) {
	if err := requireRole(actor, "read orders", models.StaffRoles...); err != nil {
		return models.Order{}, err
	}
	return e.orders.Get(id)
}

func (e *Engine) ListOrders(actor models.Role, f orders.Filter) ([]models.Order, error) {
	if err := requireRole(actor, "read orders", models.StaffRoles...); err != nil {
		return nil, err
	}
	return e.orders.List(f), nil
}

// AdvanceOrder moves an order to target if the state machine allows it for
// actor.
func (e *Engine) AdvanceOrder(actor models.Role, id uint, target models.OrderStatus) (models.Order, error) {
	if !actor.Valid() {
		return models.Order{}, apperror.Forbiddenf("unknown role %q", actor)
	}
	unlock := e.locks.Lock(orderKey(id))
	defer unlock()

	cur, err := e.orders.Get(id)
	if err != nil {
		return models.Order{}, err
	}
	next, err := statemachine.Advance(cur, target, actor)
	if err != nil {
		e.log.Debug("order transition rejected",
			zap.Uint("order_id", id), zap.String("from", string(cur.Status)),
			zap.String("to", string(target)), zap.String("actor", string(actor)), zap.Error(err))
		return models.Order{}, err
	}
	committed, err := e.orders.Swap(cur, next)
	if err != nil {
		return models.Order{}, err
	}
	e.publishOrder(events.OrderUpdated, actor, committed, &events.Change{From: cur.Status, To: committed.Status})
	e.log.Info("order status changed",
		zap.Uint("order_id", id), zap.String("from", string(cur.Status)),
		zap.String("to", string(committed.Status)), zap.String("actor", string(actor)))
	return committed, nil
}

// ApplyPayment marks a Ready order paid. Concurrent calls for one order are
// serialized; only the first can succeed.
func (e *Engine) ApplyPayment(actor models.Role, id uint) (Payment, error) {
	unlock := e.locks.Lock(orderKey(id))
	defer unlock()

	cur, err := e.orders.Get(id)
	if err != nil {
		return Payment{}, err
	}
	next, total, err := statemachine.ApplyPayment(cur, actor, e.now())
	if err != nil {
		e.log.Debug("payment rejected", zap.Uint("order_id", id), zap.String("actor", string(actor)), zap.Error(err))
		return Payment{}, err
	}
	committed, err := e.orders.Swap(cur, next)
	if err != nil {
		return Payment{}, err
	}
	e.publishOrder(events.OrderPaid, actor, committed, &events.Change{From: cur.Status, To: committed.Status})
	e.log.Info("order paid",
		zap.Uint("order_id", id), zap.String("total_paid", total.StringFixed(2)), zap.String("actor", string(actor)))
	return Payment{OrderID: id, TotalPaid: total, Order: committed}, nil
}

// ── Subscriptions ───────────────────────────────────────────────────────────

// Subscribe opens a live stream on topic ("menu", "orders" or "order:<id>").
// There is no replay: callers reconcile with ListMenu or ListOrders. The menu
// stream is open to anyone, like ListMenu; order streams need a staff role,
// like ListOrders. An anonymous caller passes the empty role.
func (e *Engine) Subscribe(actor models.Role, topic string, buffer int) (*events.Subscription, error) {
	if !events.ValidTopic(topic) {
		return nil, apperror.Validationf("unknown topic %q", topic)
	}
	if topic != events.TopicMenu {
		if err := requireRole(actor, "subscribe to "+topic, models.StaffRoles...); err != nil {
			return nil, err
		}
	}
	return e.bus.Subscribe(topic, buffer), nil
}

func (e *Engine) publishMenu(t events.Type, actor models.Role, id uint, payload any) {
	e.bus.Publish(events.Event{
		Type:    t,
		Key:     menuKey(id),
		Actor:   actor,
		Payload: payload,
		Topics:  []string{events.TopicMenu},
	})
}

func (e *Engine) publishOrder(t events.Type, actor models.Role, o models.Order, change *events.Change) {
	e.bus.Publish(events.Event{
		Type:    t,
		Key:     orderKey(o.ID),
		Actor:   actor,
		Change:  change,
		Payload: o,
		Topics:  []string{events.TopicOrders, events.OrderTopic(o.ID)},
	})
}

// check runs struct validation and reports failures as Validation errors.
func (e *Engine) check(v any) error {
	err := e.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Wrap(apperror.Validation, err, "invalid input")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return apperror.Validationf("invalid input: %s", strings.Join(msgs, "; "))
}

func requireRole(actor models.Role, op string, allowed ...models.Role) error {
	if actor.In(allowed...) {
		return nil
	}
	return apperror.Forbiddenf("role %q may not %s", actor, op)
}

func menuKey(id uint) string  { return "menu:" + strconv.FormatUint(uint64(id), 10) }
func orderKey(id uint) string { return events.OrderTopic(id) }
