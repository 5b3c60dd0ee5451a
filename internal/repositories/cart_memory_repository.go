package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"storefront/internal/models"
)

type memoryCartEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCartRepository is an in-process CartRepository for local development
// and tests. Carts are stored encoded so callers never share slices.
type MemoryCartRepository struct {
	carts map[string]memoryCartEntry
	mu    sync.RWMutex
	now   func() time.Time
}

// NewMemoryCartRepository creates a new in-memory cart store.
func NewMemoryCartRepository() *MemoryCartRepository {
	return &MemoryCartRepository{
		carts: make(map[string]memoryCartEntry),
		now:   time.Now,
	}
}

func (r *MemoryCartRepository) Get(_ context.Context, id string) (*models.Cart, error) {
	r.mu.RLock()
	entry, ok := r.carts[id]
	r.mu.RUnlock()
	if !ok || (!entry.expiresAt.IsZero() && !r.now().Before(entry.expiresAt)) {
		return nil, nil
	}

	var cart models.Cart
	if err := json.Unmarshal(entry.data, &cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart %s: %w", id, err)
	}
	return &cart, nil
}

func (r *MemoryCartRepository) Set(_ context.Context, cart *models.Cart, ttl time.Duration) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart %s: %w", cart.ID, err)
	}

	entry := memoryCartEntry{data: data}
	if ttl > 0 {
		entry.expiresAt = r.now().Add(ttl)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[cart.ID] = entry
	return nil
}

func (r *MemoryCartRepository) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.carts[id]
	if !ok {
		return false, nil
	}
	delete(r.carts, id)
	return entry.expiresAt.IsZero() || r.now().Before(entry.expiresAt), nil
}
