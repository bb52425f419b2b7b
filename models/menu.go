package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type MenuItem struct {
	ID        uint            `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  *string         `json:"image_url"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (m MenuItem) Clone() MenuItem {
	c := m
	if m.ImageURL != nil {
		u := *m.ImageURL
		c.ImageURL = &u
	}
	return c
}

// MenuDeleted is the payload of a menu_deleted event
type MenuDeleted struct {
	ID uint `json:"id"`
}
