package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"storefront/internal/models"
)

// DeliveryMethodRepository defines the interface for delivery method data access.
type DeliveryMethodRepository interface {
	GetAll(ctx context.Context) ([]models.DeliveryMethod, error)
	GetByID(ctx context.Context, id int) (*models.DeliveryMethod, error)
	Create(ctx context.Context, method *models.DeliveryMethod) error
}

// GORMDeliveryMethodRepository is a GORM implementation of DeliveryMethodRepository.
type GORMDeliveryMethodRepository struct {
	db *gorm.DB
}

func NewGORMDeliveryMethodRepository(db *gorm.DB) *GORMDeliveryMethodRepository {
	return &GORMDeliveryMethodRepository{db: db}
}

// GetAll lists delivery methods by descending cost.
func (r *GORMDeliveryMethodRepository) GetAll(ctx context.Context) ([]models.DeliveryMethod, error) {
	var methods []models.DeliveryMethod
	if err := r.db.WithContext(ctx).Order("cost DESC").Order("id").Find(&methods).Error; err != nil {
		return nil, fmt.Errorf("failed to get delivery methods: %w", err)
	}
	return methods, nil
}

func (r *GORMDeliveryMethodRepository) GetByID(ctx context.Context, id int) (*models.DeliveryMethod, error) {
	var method models.DeliveryMethod
	if err := r.db.WithContext(ctx).First(&method, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("delivery method %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get delivery method %d: %w", id, err)
	}
	return &method, nil
}

func (r *GORMDeliveryMethodRepository) Create(ctx context.Context, method *models.DeliveryMethod) error {
	if err := r.db.WithContext(ctx).Create(method).Error; err != nil {
		return fmt.Errorf("failed to create delivery method: %w", err)
	}
	return nil
}
