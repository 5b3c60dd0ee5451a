package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"storefront/internal/domain"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/telemetry"
)

// CartUpdateResult reports whether a cart mutation was applied.
type CartUpdateResult struct {
	Updated bool   `json:"updated"`
	Message string `json:"message"`
}

// CartService manages shopping carts held in the cart store.
type CartService struct {
	carts    repositories.CartRepository
	products *ProductService
	ttl      time.Duration
	metrics  *telemetry.OrderMetrics
	log      *slog.Logger
}

// NewCartService creates a new CartService.
func NewCartService(
	carts repositories.CartRepository,
	products *ProductService,
	ttl time.Duration,
	metrics *telemetry.OrderMetrics,
	log *slog.Logger,
) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		ttl:      ttl,
		metrics:  metrics,
		log:      log,
	}
}

// GetCart returns the cart or a not-found error.
func (s *CartService) GetCart(ctx context.Context, cartID string) (*models.Cart, error) {
	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, domain.Internal(err, "cart.get", "failed to read cart")
	}
	if cart == nil {
		return nil, domain.NotFound("cart.get", "cart", cartID)
	}
	return cart, nil
}

// AddToCart adds one unit of the product, creating the cart on first use.
// Existing lines grow by one up to the product's max order quantity.
func (s *CartService) AddToCart(ctx context.Context, cartID, productID string) (*CartUpdateResult, error) {
	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, domain.Internal(err, "cart.add", "failed to read cart")
	}
	if cart == nil {
		cart = models.NewCart(cartID)
	}

	product, err := s.products.GetProductByID(ctx, productID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return &CartUpdateResult{Message: "Product not found"}, nil
		}
		return nil, err
	}
	if product.UnitsInStock == 0 {
		return &CartUpdateResult{Message: fmt.Sprintf("Product %s is out of stock", productID)}, nil
	}

	var message string
	if line := cart.Line(productID); line != nil {
		maxQty := s.products.MaxOrderQuantity(product)
		line.Quantity = min(line.Quantity+1, maxQty)
		message = fmt.Sprintf("Quantity of product %s is now %d", productID, line.Quantity)
	} else {
		cart.Items = append(cart.Items, models.CartLine{
			ProductID:         product.ID,
			ProductName:       product.Name,
			ProductPictureURL: product.PictureURL,
			UnitPrice:         product.Price,
			Quantity:          1,
			NameTranslations:  product.NameTranslations(),
		})
		message = fmt.Sprintf("Product %s added to cart", productID)
	}

	if err := s.carts.Set(ctx, cart, s.ttl); err != nil {
		s.log.Error("failed to save cart", "cart_id", cartID, "error", err)
		return &CartUpdateResult{Message: fmt.Sprintf("Failed to add product %s to cart", productID)}, nil
	}
	s.metrics.CartUpdates.WithLabelValues("add").Inc()
	return &CartUpdateResult{Updated: true, Message: message}, nil
}

// RemoveFromCart drops the product's line from the cart.
func (s *CartService) RemoveFromCart(ctx context.Context, cartID, productID string) (*CartUpdateResult, error) {
	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, domain.Internal(err, "cart.remove", "failed to read cart")
	}
	if cart == nil {
		return &CartUpdateResult{Message: fmt.Sprintf("Cart %s was not found", cartID)}, nil
	}
	if !cart.RemoveLine(productID) {
		return &CartUpdateResult{Message: fmt.Sprintf("Product %s is not in the cart", productID)}, nil
	}

	if err := s.carts.Set(ctx, cart, s.ttl); err != nil {
		s.log.Error("failed to save cart", "cart_id", cartID, "error", err)
		return &CartUpdateResult{Message: fmt.Sprintf("Failed to remove product %s from cart", productID)}, nil
	}
	s.metrics.CartUpdates.WithLabelValues("remove").Inc()
	return &CartUpdateResult{Updated: true, Message: fmt.Sprintf("Product %s removed from cart", productID)}, nil
}

// UpdateQuantity sets a line's quantity, clamped to the max order quantity.
func (s *CartService) UpdateQuantity(ctx context.Context, cartID, productID string, quantity int) (*CartUpdateResult, error) {
	if quantity <= 0 {
		return &CartUpdateResult{Message: fmt.Sprintf("Quantity must be greater than zero, got %d", quantity)}, nil
	}

	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, domain.Internal(err, "cart.update_quantity", "failed to read cart")
	}
	if cart == nil {
		return &CartUpdateResult{Message: fmt.Sprintf("Cart %s was not found", cartID)}, nil
	}
	line := cart.Line(productID)
	if line == nil {
		return &CartUpdateResult{Message: fmt.Sprintf("Product %s is not in the cart", productID)}, nil
	}

	maxQty, err := s.products.GetMaxOrderQuantity(ctx, productID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return &CartUpdateResult{Message: "Product not found"}, nil
		}
		return nil, err
	}
	if maxQty == 0 {
		return &CartUpdateResult{Message: fmt.Sprintf("Product %s is out of stock", productID)}, nil
	}
	line.Quantity = min(quantity, maxQty)

	if err := s.carts.Set(ctx, cart, s.ttl); err != nil {
		s.log.Error("failed to save cart", "cart_id", cartID, "error", err)
		return &CartUpdateResult{Message: fmt.Sprintf("Failed to update quantity of product %s in cart %s", productID, cartID)}, nil
	}
	s.metrics.CartUpdates.WithLabelValues("update_quantity").Inc()
	return &CartUpdateResult{
		Updated: true,
		Message: fmt.Sprintf("Quantity of product %s set to %d", productID, line.Quantity),
	}, nil
}

// DeleteCart removes the cart and reports whether it existed.
func (s *CartService) DeleteCart(ctx context.Context, cartID string) (bool, error) {
	deleted, err := s.carts.Delete(ctx, cartID)
	if err != nil {
		return false, domain.Internal(err, "cart.delete", "failed to delete cart")
	}
	if deleted {
		s.metrics.CartUpdates.WithLabelValues("delete").Inc()
	}
	return deleted, nil
}
