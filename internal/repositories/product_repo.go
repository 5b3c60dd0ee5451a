package repositories

import (
	"context"

	"storefront/internal/models"
)

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error

	// GetForUpdate loads a product with its translations and takes a row
	// lock for the rest of the enclosing transaction.
	GetForUpdate(ctx context.Context, id string) (*models.Product, error)
	// DecrementStock subtracts qty only while enough stock remains.
	// Returns ErrInsufficientStock when it does not.
	DecrementStock(ctx context.Context, id string, qty int) error
	IncrementStock(ctx context.Context, id string, qty int) error
}
