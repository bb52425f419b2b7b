// Package catalog owns the restaurant's menu items.
package catalog

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

// Patch carries the fields of an update; nil fields are left unchanged.
// A non-nil ImageURL pointing at "" clears the image.
type Patch struct {
	Name     *string
	Price    *decimal.Decimal
	ImageURL *string
}

func (p Patch) Empty() bool {
	return p.Name == nil && p.Price == nil && p.ImageURL == nil
}

// Store holds menu items as immutable values; every write replaces the record.
type Store struct {
	mu    sync.RWMutex
	items map[uint]models.MenuItem
	seq   atomic.Uint64
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{items: make(map[uint]models.MenuItem), now: time.Now}
}

// NextID reserves an id for a later Create. Ids rejected by validation are
// not reused.
func (s *Store) NextID() uint {
	return uint(s.seq.Add(1))
}

func (s *Store) Create(id uint, name string, price decimal.Decimal, imageURL *string) (models.MenuItem, error) {
	name, err := validName(name)
	if err != nil {
		return models.MenuItem{}, err
	}
	price, err = validPrice(price)
	if err != nil {
		return models.MenuItem{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[id]; exists || id == 0 {
		return models.MenuItem{}, apperror.Conflictf("menu item id %d is not available", id)
	}
	now := s.now().UTC()
	item := models.MenuItem{
		ID:        id,
		Name:      name,
		Price:     price,
		ImageURL:  normalizeURL(imageURL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.items[item.ID] = item
	return item.Clone(), nil
}

func (s *Store) Update(id uint, p Patch) (models.MenuItem, error) {
	var (
		name  string
		price decimal.Decimal
		err   error
	)
	if p.Name != nil {
		if name, err = validName(*p.Name); err != nil {
			return models.MenuItem{}, err
		}
	}
	if p.Price != nil {
		if price, err = validPrice(*p.Price); err != nil {
			return models.MenuItem{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return models.MenuItem{}, apperror.NotFoundf("menu item %d not found", id)
	}
	item = item.Clone()
	if p.Name != nil {
		item.Name = name
	}
	if p.Price != nil {
		item.Price = price
	}
	if p.ImageURL != nil {
		item.ImageURL = normalizeURL(p.ImageURL)
	}
	item.UpdatedAt = s.now().UTC()
	s.items[id] = item
	return item.Clone(), nil
}

// Delete removes the item and returns the removed record. Orders keep their
// snapshots, so no reference check is made.
func (s *Store) Delete(id uint) (models.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return models.MenuItem{}, apperror.NotFoundf("menu item %d not found", id)
	}
	delete(s.items, id)
	return item, nil
}

func (s *Store) Get(id uint) (models.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return models.MenuItem{}, apperror.NotFoundf("menu item %d not found", id)
	}
	return item.Clone(), nil
}

// List returns every item ordered by id.
func (s *Store) List() []models.MenuItem {
	s.mu.RLock()
	out := make([]models.MenuItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item.Clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperror.Validationf("name is required")
	}
	return name, nil
}

// MaxPrice is the largest price a menu item may carry.
var MaxPrice = decimal.NewFromInt(1_000_000)

const (
	maxPriceScale  = 8
	maxPriceDigits = 16
)

// validPrice rejects negatives and out-of-range values and fixes the price to
// two decimal places. The shape of the number is checked before anything
// rescales it, so an input like 1e30000000 never expands.
func validPrice(price decimal.Decimal) (decimal.Decimal, error) {
	if price.IsNegative() {
		return decimal.Decimal{}, apperror.Validationf("price must be >= 0")
	}
	exp := price.Exponent()
	if exp > 6 || exp < -maxPriceScale || price.NumDigits() > maxPriceDigits {
		return decimal.Decimal{}, apperror.Validationf("price must be at most %s with up to %d decimal places",
			MaxPrice.String(), maxPriceScale)
	}
	if price.GreaterThan(MaxPrice) {
		return decimal.Decimal{}, apperror.Validationf("price must be at most %s, got %s", MaxPrice.String(), price.String())
	}
	return price.Round(2), nil
}

func normalizeURL(u *string) *string {
	if u == nil {
		return nil
	}
	v := strings.TrimSpace(*u)
	if v == "" {
		return nil
	}
	return &v
}
