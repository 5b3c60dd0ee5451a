package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

const (
	opGetOrder            = "order.get"
	opListOrders          = "order.list"
	opUpdateOrderStatus   = "order.update_status"
	opUpdatePaymentStatus = "order.update_payment_status"
	opSalesReport         = "order.sales"
	opRevenue             = "order.revenue"
)

// SalesPage is one page of the per-product sales report.
type SalesPage struct {
	Items    []repositories.ProductSales `json:"items"`
	Total    int64                       `json:"total"`
	Page     int                         `json:"page"`
	PageSize int                         `json:"pageSize"`
}

// OrderPage is one page of an order listing.
type OrderPage struct {
	Items    []models.Order `json:"items"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
}

// GetOrder returns a single order. An empty ownerID skips the ownership check.
func (s *OrderService) GetOrder(ctx context.Context, orderID, ownerID string) (*models.Order, error) {
	order, err := s.store.Orders().GetByID(ctx, orderID, ownerID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, domain.NotFound(opGetOrder, "order", orderID)
		}
		return nil, s.storeFault(opGetOrder, err, "failed to load order")
	}
	return order, nil
}

// ListOrders returns the requested page and the total match count.
func (s *OrderService) ListOrders(ctx context.Context, filter repositories.OrderFilter) (*OrderPage, error) {
	if filter.OrderStatus != "" && !filter.OrderStatus.Valid() {
		return nil, domain.Invalid(opListOrders, fmt.Sprintf("unknown order status %q", filter.OrderStatus))
	}
	if filter.PaymentStatus != "" && !filter.PaymentStatus.Valid() {
		return nil, domain.Invalid(opListOrders, fmt.Sprintf("unknown payment status %q", filter.PaymentStatus))
	}
	if filter.PaymentMethod != "" && !filter.PaymentMethod.Valid() {
		return nil, domain.Invalid(opListOrders, fmt.Sprintf("unknown payment method %q", filter.PaymentMethod))
	}
	filter.Normalize()

	orders, err := s.store.Orders().List(ctx, filter)
	if err != nil {
		return nil, s.storeFault(opListOrders, err, "failed to list orders")
	}
	total, err := s.store.Orders().Count(ctx, filter)
	if err != nil {
		return nil, s.storeFault(opListOrders, err, "failed to count orders")
	}
	return &OrderPage{Items: orders, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

// CountOrders returns how many orders match the filter.
func (s *OrderService) CountOrders(ctx context.Context, filter repositories.OrderFilter) (int64, error) {
	count, err := s.store.Orders().Count(ctx, filter)
	if err != nil {
		return 0, s.storeFault(opListOrders, err, "failed to count orders")
	}
	return count, nil
}

// StatusUpdate reports an applied order status change. CheckoutSessionID is
// set when a cancellation leaves a payment session that should be expired.
type StatusUpdate struct {
	OrderID           string             `json:"orderId"`
	Status            models.OrderStatus `json:"status"`
	CheckoutSessionID string             `json:"-"`
}

// UpdateOrderStatus moves an order along its lifecycle. Cancelling goes
// through CancelOrder so the reserved stock is released.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) (*StatusUpdate, error) {
	if !status.Valid() {
		return nil, domain.Invalid(opUpdateOrderStatus, fmt.Sprintf("unknown order status %q", status))
	}

	if status == models.OrderStatusCancelled {
		order, err := s.GetOrder(ctx, orderID, "")
		if err != nil {
			return nil, err
		}
		if order.OrderStatus == status {
			return nil, domain.Rejected(domain.ReasonStatusUnchanged, opUpdateOrderStatus,
				"Order %s is already %s", orderID, status)
		}
		result, err := s.CancelOrder(ctx, orderID, "")
		if err != nil {
			return nil, err
		}
		if !result.Success {
			return nil, domain.Rejected(result.Reason, opUpdateOrderStatus, "%s", result.Message)
		}
		s.metrics.StatusTransitions.WithLabelValues("order", string(status)).Inc()
		return &StatusUpdate{OrderID: orderID, Status: status, CheckoutSessionID: result.CheckoutSessionID}, nil
	}

	err := s.store.WithinTransaction(ctx, func(tx repositories.Store) error {
		order, err := tx.Orders().GetByIDForUpdate(ctx, orderID, "")
		if err != nil {
			return err
		}
		if order.OrderStatus == status {
			return domain.Rejected(domain.ReasonStatusUnchanged, opUpdateOrderStatus,
				"Order %s is already %s", orderID, status)
		}
		if !order.OrderStatus.CanTransition(status) {
			return domain.Rejected(domain.ReasonInvalidStatusTransition, opUpdateOrderStatus,
				"Order %s cannot move from %s to %s", orderID, order.OrderStatus, status)
		}
		return tx.Orders().UpdateStatus(ctx, orderID, status)
	})
	if err := s.adminError(opUpdateOrderStatus, orderID, err); err != nil {
		return nil, err
	}

	s.metrics.StatusTransitions.WithLabelValues("order", string(status)).Inc()
	s.log.Info("order status updated", "order_id", orderID, "status", status)
	return &StatusUpdate{OrderID: orderID, Status: status}, nil
}

// UpdatePaymentStatus records the payment outcome of an order.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, orderID string, status models.PaymentStatus) error {
	if !status.Valid() {
		return domain.Invalid(opUpdatePaymentStatus, fmt.Sprintf("unknown payment status %q", status))
	}

	err := s.store.WithinTransaction(ctx, func(tx repositories.Store) error {
		order, err := tx.Orders().GetByIDForUpdate(ctx, orderID, "")
		if err != nil {
			return err
		}
		if order.PaymentStatus == status {
			return domain.Rejected(domain.ReasonStatusUnchanged, opUpdatePaymentStatus,
				"Payment status of order %s is already %s", orderID, status)
		}
		if !order.PaymentStatus.CanTransition(status) {
			return domain.Rejected(domain.ReasonInvalidStatusTransition, opUpdatePaymentStatus,
				"Payment status of order %s cannot move from %s to %s", orderID, order.PaymentStatus, status)
		}
		return tx.Orders().UpdatePaymentStatus(ctx, orderID, status)
	})
	if err := s.adminError(opUpdatePaymentStatus, orderID, err); err != nil {
		return err
	}

	s.metrics.StatusTransitions.WithLabelValues("payment", string(status)).Inc()
	s.log.Info("payment status updated", "order_id", orderID, "status", status)
	return nil
}

func (s *OrderService) adminError(op, orderID string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repositories.ErrNotFound) {
		return domain.NotFound(op, "order", orderID)
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return s.storeFault(op, err, "failed to update order")
}

// CountByOrderStatus returns dashboard counts keyed by order status.
func (s *OrderService) CountByOrderStatus(ctx context.Context) (map[models.OrderStatus]int64, error) {
	counts, err := s.store.Orders().CountByOrderStatus(ctx)
	if err != nil {
		return nil, s.storeFault(opListOrders, err, "failed to count orders")
	}
	return counts, nil
}

// CountByPaymentStatus returns dashboard counts keyed by payment status.
func (s *OrderService) CountByPaymentStatus(ctx context.Context) (map[models.PaymentStatus]int64, error) {
	counts, err := s.store.Orders().CountByPaymentStatus(ctx)
	if err != nil {
		return nil, s.storeFault(opListOrders, err, "failed to count orders")
	}
	return counts, nil
}

// GetDeliveryMethods lists the delivery options offered at checkout.
func (s *OrderService) GetDeliveryMethods(ctx context.Context) ([]models.DeliveryMethod, error) {
	methods, err := s.store.DeliveryMethods().GetAll(ctx)
	if err != nil {
		return nil, s.storeFault("delivery_method.list", err, "failed to load delivery methods")
	}
	return methods, nil
}

// SalesByProduct reports units sold and sales per product over delivered,
// paid orders.
func (s *OrderService) SalesByProduct(ctx context.Context, filter repositories.SalesFilter) (*SalesPage, error) {
	if filter.SortBy != "" && filter.SortBy != repositories.SortByUnitsSold && filter.SortBy != repositories.SortByTotalSales {
		return nil, domain.Invalid(opSalesReport, fmt.Sprintf("cannot sort sales by %q", filter.SortBy))
	}
	filter.Normalize()

	rows, total, err := s.store.Orders().SalesByProduct(ctx, filter)
	if err != nil {
		return nil, s.storeFault(opSalesReport, err, "failed to build sales report")
	}
	return &SalesPage{Items: rows, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

// Revenue sums delivered, paid order totals including delivery.
func (s *OrderService) Revenue(ctx context.Context, filter repositories.RevenueFilter) (decimal.Decimal, error) {
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return decimal.Zero, domain.Invalid(opRevenue, "endDate must not be before startDate")
	}
	revenue, err := s.store.Orders().Revenue(ctx, filter)
	if err != nil {
		return decimal.Zero, s.storeFault(opRevenue, err, "failed to sum revenue")
	}
	return revenue, nil
}
