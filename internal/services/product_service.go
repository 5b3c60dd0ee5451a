package services

import (
	"context"
	"errors"

	"storefront/internal/domain"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

// ProductService handles business logic related to products.
type ProductService struct {
	repo   repositories.ProductRepository
	limits OrderLimits
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository, limits OrderLimits) *ProductService {
	return &ProductService{
		repo:   repo,
		limits: limits,
	}
}

// GetAllProducts retrieves all products.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, domain.Internal(err, "product.list", "failed to load products")
	}
	return products, nil
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, productError(err, "product.get", id)
	}
	return product, nil
}

// CreateProduct creates a new product.
func (s *ProductService) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.Price.IsNegative() {
		return domain.Invalid("product.create", "price must not be negative")
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return domain.Internal(err, "product.create", "failed to save product")
	}
	return nil
}

// UpdateProduct updates an existing product.
func (s *ProductService) UpdateProduct(ctx context.Context, product *models.Product) error {
	if product.Price.IsNegative() {
		return domain.Invalid("product.update", "price must not be negative")
	}
	if err := s.repo.Update(ctx, product); err != nil {
		return productError(err, "product.update", product.ID)
	}
	return nil
}

// DeleteProduct soft-deletes a product by its ID.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return productError(err, "product.delete", id)
	}
	return nil
}

// GetMaxOrderQuantity returns how many units of the product one order may
// take at the current stock level.
func (s *ProductService) GetMaxOrderQuantity(ctx context.Context, id string) (int, error) {
	product, err := s.GetProductByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return s.MaxOrderQuantity(product), nil
}

// MaxOrderQuantity applies the order limits to an already loaded product.
func (s *ProductService) MaxOrderQuantity(product *models.Product) int {
	return s.limits.MaxFor(product.UnitsInStock)
}

func productError(err error, op, id string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return domain.NotFound(op, "product", id)
	}
	return domain.Internal(err, op, "failed to access product")
}
