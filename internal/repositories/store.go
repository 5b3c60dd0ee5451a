package repositories

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories that take part in order placement so they
// can share a single database transaction.
type Store interface {
	Products() ProductRepository
	Orders() OrderRepository
	DeliveryMethods() DeliveryMethodRepository

	// WithinTransaction runs fn against a transaction-scoped Store. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithinTransaction(ctx context.Context, fn func(tx Store) error) error
}

// GORMStore is the GORM implementation of Store.
type GORMStore struct {
	db *gorm.DB
}

// NewGORMStore creates a new instance of GORMStore.
func NewGORMStore(db *gorm.DB) *GORMStore {
	return &GORMStore{db: db}
}

func (s *GORMStore) Products() ProductRepository {
	return NewGORMProductRepository(s.db)
}

func (s *GORMStore) Orders() OrderRepository {
	return NewGORMOrderRepository(s.db)
}

func (s *GORMStore) DeliveryMethods() DeliveryMethodRepository {
	return NewGORMDeliveryMethodRepository(s.db)
}

func (s *GORMStore) WithinTransaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GORMStore{db: tx})
	})
}
