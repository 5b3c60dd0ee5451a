package repositories

import (
	"context"
	"time"

	"storefront/internal/models"
)

const (
	// KeyCart is the cart store key: cart:{cart_id} -> JSON cart
	KeyCart = "cart:%s"
)

// CartRepository defines the interface for the volatile cart store.
type CartRepository interface {
	// Get returns nil, nil when the cart does not exist or has expired.
	Get(ctx context.Context, id string) (*models.Cart, error)
	// Set stores the whole cart, last writer wins.
	Set(ctx context.Context, cart *models.Cart, ttl time.Duration) error
	// Delete reports whether a cart was removed.
	Delete(ctx context.Context, id string) (bool, error)
}
