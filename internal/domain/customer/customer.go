package customer

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-pricing/internal/domain/pricing"
)

// ErrNotFound is returned when a requested customer does not exist.
var ErrNotFound = errors.New("customer not found")

// Customer is a registered buyer.
type Customer struct {
	ID     string
	Name   string
	Member bool
}

// Guest is the purchaser used when a quote names no customer.
var Guest = pricing.User{ID: "", Name: "guest", Member: false}

// User returns the pricing view of the customer.
func (c *Customer) User() pricing.User {
	return pricing.User{ID: c.ID, Name: c.Name, Member: c.Member}
}

// Repository provides customer lookup.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Customer, error)
}
