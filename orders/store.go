// Package orders owns placed orders and their snapshotted items.
//
// Status and payment are never set directly: callers compute the next value
// with the statemachine package and commit it with Swap, which only succeeds
// against the version it was computed from.
package orders

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"restaurant-order-engine/apperror"
	"restaurant-order-engine/models"
)

// Line is one requested menu item with the catalog record as it was at
// order time.
type Line struct {
	Menu     models.MenuItem
	Quantity int
}

// Filter narrows List. Zero value matches every order.
type Filter struct {
	SeatNumber *string
	Statuses   []models.OrderStatus
	Paid       *bool
}

func (f Filter) match(o models.Order) bool {
	if f.SeatNumber != nil {
		if o.SeatNumber == nil || *o.SeatNumber != *f.SeatNumber {
			return false
		}
	}
	if f.Paid != nil && o.IsPaid != *f.Paid {
		return false
	}
	if len(f.Statuses) > 0 {
		for _, st := range f.Statuses {
			if o.Status == st {
				return true
			}
		}
		return false
	}
	return true
}

type Store struct {
	mu      sync.RWMutex
	orders  map[uint]models.Order
	seq     atomic.Uint64
	itemSeq uint
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{orders: make(map[uint]models.Order), now: time.Now}
}

// NextID reserves an id for a later Create.
func (s *Store) NextID() uint {
	return uint(s.seq.Add(1))
}

// Create places a Pending, unpaid order. Subtotals and the total are computed
// here from the snapshotted unit prices.
func (s *Store) Create(id uint, seat *string, lines []Line) (models.Order, error) {
	if len(lines) == 0 {
		return models.Order{}, apperror.Validationf("order must contain at least one item")
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return models.Order{}, apperror.Validationf("quantity for menu item %d must be > 0", l.Menu.ID)
		}
		if l.Menu.Price.IsNegative() {
			return models.Order{}, apperror.Validationf("menu item %d has a negative price", l.Menu.ID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[id]; exists || id == 0 {
		return models.Order{}, apperror.Conflictf("order id %d is not available", id)
	}
	now := s.now().UTC()
	order := models.Order{
		ID:          id,
		SeatNumber:  normalizeSeat(seat),
		Status:      models.StatusPending,
		TotalAmount: decimal.Zero,
		Items:       make([]models.OrderItem, 0, len(lines)),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, l := range lines {
		s.itemSeq++
		menu := l.Menu.Clone()
		subtotal := menu.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		order.Items = append(order.Items, models.OrderItem{
			ID:           s.itemSeq,
			OrderID:      order.ID,
			MenuID:       menu.ID,
			MenuName:     menu.Name,
			MenuPrice:    menu.Price,
			MenuImageURL: menu.ImageURL,
			Quantity:     l.Quantity,
			Subtotal:     subtotal,
		})
		order.TotalAmount = order.TotalAmount.Add(subtotal)
	}
	s.orders[order.ID] = order
	return order.Clone(), nil
}

func (s *Store) Get(id uint) (models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return models.Order{}, apperror.NotFoundf("order %d not found", id)
	}
	return o.Clone(), nil
}

// List returns matching orders, newest first.
func (s *Store) List(f Filter) []models.Order {
	s.mu.RLock()
	out := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if f.match(o) {
			out = append(out, o.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Swap commits next in place of expected if the stored order still carries
// expected's version. The committed order gets the next version.
func (s *Store) Swap(expected, next models.Order) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.orders[expected.ID]
	if !ok {
		return models.Order{}, apperror.NotFoundf("order %d not found", expected.ID)
	}
	if cur.Version != expected.Version {
		return models.Order{}, apperror.Conflictf("order %d changed concurrently (version %d, expected %d)",
			cur.ID, cur.Version, expected.Version)
	}
	if err := checkTransition(cur, next); err != nil {
		return models.Order{}, err
	}
	next = next.Clone()
	next.Version = cur.Version + 1
	next.UpdatedAt = s.now().UTC()
	s.orders[cur.ID] = next
	return next.Clone(), nil
}

// checkTransition guards the invariants that hold for any committed change,
// independent of who computed it.
func checkTransition(cur, next models.Order) error {
	switch {
	case next.ID != cur.ID:
		return apperror.Validationf("order id cannot change")
	case cur.Terminal():
		return apperror.Conflictf("order %d is final (status %s, paid %t)", cur.ID, cur.Status, cur.IsPaid)
	case cur.IsPaid && !next.IsPaid:
		return apperror.Conflictf("order %d payment cannot be reverted", cur.ID)
	case next.IsPaid && next.Status != models.StatusReady:
		return apperror.Conflictf("order %d cannot be paid in status %s", cur.ID, next.Status)
	case next.Status == models.StatusPending && cur.Status != models.StatusPending:
		return apperror.Conflictf("order %d cannot return to %s", cur.ID, models.StatusPending)
	}
	total := decimal.Zero
	for _, it := range next.Items {
		if it.Quantity <= 0 || it.Subtotal.IsNegative() {
			return apperror.Validationf("order %d has an invalid item %d", cur.ID, it.ID)
		}
		total = total.Add(it.Subtotal)
	}
	if !total.Equal(next.TotalAmount) {
		return apperror.Validationf("order %d total %s does not match items %s", cur.ID, next.TotalAmount, total)
	}
	return nil
}

func normalizeSeat(seat *string) *string {
	if seat == nil {
		return nil
	}
	v := strings.TrimSpace(*seat)
	if v == "" {
		return nil
	}
	return &v
}
