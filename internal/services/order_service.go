package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/telemetry"
	"storefront/pkg/events"
)

const (
	opCreateOrder = "order.create"
	opCancelOrder = "order.cancel"
)

// OrderServiceConfig holds the settings the order workflow reads.
type OrderServiceConfig struct {
	Limits   OrderLimits
	BaseURL  string // prefix for snapshot picture URLs
	Producer string // name stamped on published events
}

// OrderService places and cancels orders, reserving and releasing stock.
type OrderService struct {
	store     repositories.Store
	carts     repositories.CartRepository
	publisher events.Publisher
	cfg       OrderServiceConfig
	metrics   *telemetry.OrderMetrics
	log       *slog.Logger
	now       func() time.Time
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	store repositories.Store,
	carts repositories.CartRepository,
	publisher events.Publisher,
	cfg OrderServiceConfig,
	metrics *telemetry.OrderMetrics,
	log *slog.Logger,
) *OrderService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if cfg.Producer == "" {
		cfg.Producer = "storefront-api"
	}
	return &OrderService{
		store:     store,
		carts:     carts,
		publisher: publisher,
		cfg:       cfg,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
	}
}

// CreateOrderInput is what the customer submits at checkout.
type CreateOrderInput struct {
	CartID           string                 `json:"cartId" validate:"required"`
	DeliveryMethodID int                    `json:"deliveryMethodId" validate:"required,gt=0"`
	ShippingAddress  models.ShippingAddress `json:"shippingAddress" validate:"required"`
	PaymentMethod    models.PaymentMethod   `json:"paymentMethod" validate:"required,oneof=CashOnDelivery Card"`
}

// CreateOrderResult reports the outcome of a placement. Business-rule
// rejections come back here with Success false; store faults are errors.
type CreateOrderResult struct {
	Success bool          `json:"success"`
	OrderID string        `json:"orderId,omitempty"`
	Message string        `json:"message"`
	Reason  domain.Reason `json:"reason,omitempty"`
}

// CancelOrderResult reports the outcome of a cancellation.
type CancelOrderResult struct {
	Success           bool          `json:"success"`
	Message           string        `json:"message"`
	Reason            domain.Reason `json:"reason,omitempty"`
	CheckoutSessionID string        `json:"checkoutSessionId,omitempty"`
}

// CreateOrder turns the cart into an order. Stock for every line is
// decremented and the order inserted in one transaction; the cart is
// deleted only after the commit.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput, userID string) (*CreateOrderResult, error) {
	if !input.PaymentMethod.Valid() {
		return nil, domain.Invalid(opCreateOrder, fmt.Sprintf("unsupported payment method %q", input.PaymentMethod))
	}

	cart, err := s.carts.Get(ctx, input.CartID)
	if err != nil {
		return nil, s.storeFault(opCreateOrder, err, "failed to read cart")
	}
	if cart == nil {
		return s.rejectCreate(domain.Rejected(domain.ReasonCartNotFound, opCreateOrder, "Cart %s was not found", input.CartID))
	}
	lines := cart.MergedLines()
	if len(lines) == 0 {
		return s.rejectCreate(domain.Rejected(domain.ReasonCartEmpty, opCreateOrder, "Cart %s is empty", input.CartID))
	}

	var order *models.Order
	start := s.now()
	err = s.store.WithinTransaction(ctx, func(tx repositories.Store) error {
		var err error
		order, err = s.reserve(ctx, tx, input, userID, lines)
		return err
	})
	s.metrics.ReservationSeconds.Observe(s.now().Sub(start).Seconds())
	if err != nil {
		if domain.ErrorReason(err) != "" {
			return s.rejectCreate(err)
		}
		return nil, s.storeFault(opCreateOrder, err, "failed to place order")
	}

	s.metrics.OrdersCreated.Inc()
	s.metrics.OrderValue.Observe(order.SubTotal.InexactFloat64())
	s.metrics.OrderItemCount.Observe(float64(len(order.Items)))
	s.log.Info("order created",
		"order_id", order.ID,
		"user_id", userID,
		"items", len(order.Items),
		"sub_total", order.SubTotal.StringFixed(2),
	)

	s.clearCart(ctx, cart.ID, order.ID)
	s.publish(ctx, events.EventOrderCreated, order.ID, orderCreatedPayload(order))

	return &CreateOrderResult{
		Success: true,
		OrderID: order.ID,
		Message: "Order created successfully",
	}, nil
}

// reserve runs inside the transaction. Any returned error rolls it back.
func (s *OrderService) reserve(
	ctx context.Context,
	tx repositories.Store,
	input CreateOrderInput,
	userID string,
	lines []models.CartLine,
) (*models.Order, error) {
	method, err := tx.DeliveryMethods().GetByID(ctx, input.DeliveryMethodID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, domain.Rejected(domain.ReasonDeliveryUnavailable, opCreateOrder,
				"Delivery method %d is not available", input.DeliveryMethodID)
		}
		return nil, err
	}

	subTotal := decimal.Zero
	items := make([]models.OrderItem, 0, len(lines))

	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, domain.Rejected(domain.ReasonInvalidQuantity, opCreateOrder,
				"Quantity for %s must be at least 1", line.ProductName)
		}

		product, err := tx.Products().GetForUpdate(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, domain.Rejected(domain.ReasonProductNotFound, opCreateOrder,
					"Product %s is no longer available", displayName(line.ProductName, line.ProductID))
			}
			return nil, err
		}

		// Recomputed from the locked row, never from what the cart saw.
		maxQty := s.cfg.Limits.MaxFor(product.UnitsInStock)
		if maxQty == 0 {
			return nil, domain.Rejected(domain.ReasonOutOfStock, opCreateOrder,
				"Product %s is out of stock", product.Name)
		}
		if line.Quantity > maxQty {
			return nil, domain.Rejected(domain.ReasonQuantityExceedsLimit, opCreateOrder,
				"You can order at most %d of %s, but %d were requested", maxQty, product.Name, line.Quantity)
		}

		if err := tx.Products().DecrementStock(ctx, product.ID, line.Quantity); err != nil {
			if errors.Is(err, repositories.ErrInsufficientStock) {
				return nil, domain.Rejected(domain.ReasonInsufficientStock, opCreateOrder,
					"Not enough stock left for %s to fulfil %d", product.Name, line.Quantity)
			}
			return nil, err
		}

		subTotal = subTotal.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		items = append(items, models.OrderItem{
			Product: models.ProductItem{
				ID:               product.ID,
				Name:             product.Name,
				PictureURL:       s.pictureURL(product.PictureURL),
				NameTranslations: product.NameTranslations(),
			},
			UnitPrice: product.Price,
			Quantity:  line.Quantity,
		})
	}

	order := &models.Order{
		UserID:           userID,
		DeliveryMethodID: method.ID,
		ShippingAddress:  input.ShippingAddress,
		PaymentMethod:    input.PaymentMethod,
		SubTotal:         subTotal,
		Items:            items,
		OrderStatus:      models.OrderStatusPending,
		PaymentStatus:    models.PaymentStatusPending,
		OrderDate:        s.now().UTC(),
	}
	if err := tx.Orders().Create(ctx, order); err != nil {
		return nil, err
	}
	order.DeliveryMethod = method
	return order, nil
}

// CancelOrder restores the stock reserved by the order and marks it
// cancelled. An empty ownerID skips the ownership check.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, ownerID string) (*CancelOrderResult, error) {
	var cancelled *models.Order

	err := s.store.WithinTransaction(ctx, func(tx repositories.Store) error {
		order, err := tx.Orders().GetByIDForUpdate(ctx, orderID, ownerID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return domain.Rejected(domain.ReasonNotCancellable, opCancelOrder, "Order %s was not found", orderID)
			}
			return err
		}
		if !order.OrderStatus.Cancellable() {
			return domain.Rejected(domain.ReasonNotCancellable, opCancelOrder,
				"Order %s cannot be cancelled because it is %s", orderID, order.OrderStatus)
		}

		// Fails closed: one missing product aborts the whole restoration.
		for _, item := range order.Items {
			if _, err := tx.Products().GetForUpdate(ctx, item.Product.ID); err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					return domain.Rejected(domain.ReasonProductLinkMissing, opCancelOrder,
						"Product %s from order %s no longer exists, stock could not be restored",
						displayName(item.Product.Name, item.Product.ID), orderID)
				}
				return err
			}
			if err := tx.Products().IncrementStock(ctx, item.Product.ID, item.Quantity); err != nil {
				return err
			}
		}

		if err := tx.Orders().SetStatuses(ctx, order.ID, models.OrderStatusCancelled, models.PaymentStatusFailed); err != nil {
			return err
		}
		order.OrderStatus = models.OrderStatusCancelled
		order.PaymentStatus = models.PaymentStatusFailed
		cancelled = order
		return nil
	})
	if err != nil {
		if reason := domain.ErrorReason(err); reason != "" {
			s.metrics.CancelRejections.WithLabelValues(string(reason)).Inc()
			s.log.Info("order cancellation rejected", "order_id", orderID, "reason", reason)
			return &CancelOrderResult{
				Success: false,
				Message: domain.ErrorMessage(err),
				Reason:  reason,
			}, nil
		}
		return nil, s.storeFault(opCancelOrder, err, "failed to cancel order")
	}

	s.metrics.OrdersCancelled.Inc()
	s.log.Info("order cancelled", "order_id", cancelled.ID, "items", len(cancelled.Items))
	s.publish(ctx, events.EventOrderCancelled, cancelled.ID, orderCancelledPayload(cancelled))

	return &CancelOrderResult{
		Success:           true,
		Message:           "Order cancelled successfully",
		CheckoutSessionID: cancelled.CheckoutSessionID,
	}, nil
}

func (s *OrderService) rejectCreate(err error) (*CreateOrderResult, error) {
	reason := domain.ErrorReason(err)
	s.metrics.OrderRejections.WithLabelValues(string(reason)).Inc()
	s.log.Info("order rejected", "reason", reason, "error", err)
	return &CreateOrderResult{
		Success: false,
		Message: domain.ErrorMessage(err),
		Reason:  reason,
	}, nil
}

// storeFault classifies an unexpected store error as transient or internal.
func (s *OrderService) storeFault(op string, err error, message string) error {
	var fault error
	if repositories.IsTransient(err) {
		fault = domain.Transient(err, op, "The store is busy, please retry")
	} else {
		fault = domain.Internal(err, op, message)
	}
	s.metrics.StoreFaults.WithLabelValues(op, domain.ErrorCode(fault)).Inc()
	s.log.Error(message, "op", op, "code", domain.ErrorCode(fault), "error", err)
	return fault
}

// clearCart deletes the source cart. The order is already committed, so a
// failure here is only logged and counted.
func (s *OrderService) clearCart(ctx context.Context, cartID, orderID string) {
	if _, err := s.carts.Delete(ctx, cartID); err != nil {
		s.metrics.CartCleanupFailures.Inc()
		s.log.Warn("failed to delete cart after order commit",
			"cart_id", cartID, "order_id", orderID, "error", err)
	}
}

func (s *OrderService) publish(ctx context.Context, eventType, orderID string, payload any) {
	env, err := events.New(eventType, s.cfg.Producer, orderID, payload)
	if err == nil {
		err = s.publisher.Publish(ctx, env)
	}
	if err != nil {
		s.metrics.EventPublishFailed.WithLabelValues(eventType).Inc()
		s.log.Warn("failed to publish order event", "event_type", eventType, "order_id", orderID, "error", err)
	}
}

func (s *OrderService) pictureURL(path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func displayName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}

func orderCreatedPayload(o *models.Order) events.OrderCreatedPayload {
	items := make([]events.ItemQty, len(o.Items))
	for i, item := range o.Items {
		items[i] = events.ItemQty{ProductID: item.Product.ID, Qty: item.Quantity}
	}
	return events.OrderCreatedPayload{
		OrderID:       o.ID,
		UserID:        o.UserID,
		PaymentMethod: string(o.PaymentMethod),
		SubTotal:      o.SubTotal.StringFixed(2),
		Items:         items,
	}
}

func orderCancelledPayload(o *models.Order) events.OrderCancelledPayload {
	restock := make([]events.ItemQty, len(o.Items))
	for i, item := range o.Items {
		restock[i] = events.ItemQty{ProductID: item.Product.ID, Qty: item.Quantity}
	}
	return events.OrderCancelledPayload{
		OrderID: o.ID,
		UserID:  o.UserID,
		Restock: restock,
	}
}
