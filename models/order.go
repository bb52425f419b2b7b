package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Clients read amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// OrderStatus is the preparation stage of an order
type OrderStatus string

const (
	StatusPending   OrderStatus = "Pending"
	StatusPreparing OrderStatus = "Preparing"
	StatusReady     OrderStatus = "Ready"
	StatusCancelled OrderStatus = "Cancelled"
)

// ParseOrderStatus accepts only the closed set of known stages.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case StatusPending, StatusPreparing, StatusReady, StatusCancelled:
		return st, true
	}
	return "", false
}

type Order struct {
	ID          uint            `json:"id"`
	SeatNumber  *string         `json:"seat_number"`
	Status      OrderStatus     `json:"status"`
	IsPaid      bool            `json:"is_paid"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItem     `json:"items"`
	Version     uint64          `json:"version"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Terminal reports whether no further status or payment change is allowed.
func (o Order) Terminal() bool {
	return o.IsPaid || o.Status == StatusCancelled
}

// Clone returns a copy that shares no mutable memory with o.
func (o Order) Clone() Order {
	c := o
	c.Items = append([]OrderItem(nil), o.Items...)
	for i := range c.Items {
		if u := c.Items[i].MenuImageURL; u != nil {
			img := *u
			c.Items[i].MenuImageURL = &img
		}
	}
	if o.SeatNumber != nil {
		seat := *o.SeatNumber
		c.SeatNumber = &seat
	}
	if o.PaidAt != nil {
		at := *o.PaidAt
		c.PaidAt = &at
	}
	return c
}

// OrderItem snapshots the menu item's display fields at order time, so later
// catalog edits or deletes never change a placed order.
type OrderItem struct {
	ID           uint            `json:"id"`
	OrderID      uint            `json:"order_id"`
	MenuID       uint            `json:"menu_id"`
	MenuName     string          `json:"menu_name"`
	MenuPrice    decimal.Decimal `json:"menu_price"`
	MenuImageURL *string         `json:"menu_image_url"`
	Quantity     int             `json:"quantity"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// OrderStatusHistory is the journal's audit row for every status or payment change
type OrderStatusHistory struct {
	ID         uint        `json:"id" gorm:"primaryKey"`
	OrderID    uint        `json:"order_id" gorm:"not null;index"`
	EventSeq   uint64      `json:"event_seq" gorm:"uniqueIndex"`
	FromStatus OrderStatus `json:"from_status"`
	ToStatus   OrderStatus `json:"to_status" gorm:"not null"`
	IsPaid     bool        `json:"is_paid"`
	ChangedBy  Role        `json:"changed_by"`
	CreatedAt  time.Time   `json:"created_at"`
}

// EventRecord is one published bus event as persisted by the journal
type EventRecord struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Seq       uint64    `json:"seq" gorm:"uniqueIndex"`
	Type      string    `json:"type" gorm:"not null;index"`
	EntityKey string    `json:"key" gorm:"not null;index"`
	Actor     Role      `json:"actor"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}
