package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"storefront/internal/billing"
	"storefront/internal/domain"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/telemetry"
)

const (
	opCheckout         = "checkout.create"
	opRetrieveCheckout = "checkout.get"
	opExpireCheckout   = "checkout.expire"
)

// CheckoutConfig holds the redirect targets and currency for sessions.
type CheckoutConfig struct {
	SuccessURL string
	CancelURL  string
	Currency   string
}

// CheckoutResult is returned to the client so it can redirect to payment.
type CheckoutResult struct {
	OrderID   string `json:"orderId"`
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// CheckoutService opens hosted payment sessions for card orders.
type CheckoutService struct {
	store    repositories.Store
	provider billing.CheckoutProvider
	cfg      CheckoutConfig
	metrics  *telemetry.OrderMetrics
	log      *slog.Logger
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(
	store repositories.Store,
	provider billing.CheckoutProvider,
	cfg CheckoutConfig,
	metrics *telemetry.OrderMetrics,
	log *slog.Logger,
) *CheckoutService {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	return &CheckoutService{
		store:    store,
		provider: provider,
		cfg:      cfg,
		metrics:  metrics,
		log:      log,
	}
}

// Checkout creates a session for a pending, unpaid card order and records
// its id on the order. The order is locked and checked again before the id
// is written; a session opened for an order that changed meanwhile is expired.
func (s *CheckoutService) Checkout(ctx context.Context, orderID, userID string) (*CheckoutResult, error) {
	order, err := s.loadOrder(ctx, opCheckout, orderID, userID)
	if err != nil {
		return nil, err
	}
	if err := checkoutable(order); err != nil {
		return nil, err
	}

	session, err := s.provider.CreateSession(ctx, billing.CreateSessionParams{
		OrderID:    order.ID,
		UserID:     order.UserID,
		Currency:   s.cfg.Currency,
		Items:      checkoutLineItems(order),
		SuccessURL: s.cfg.SuccessURL,
		CancelURL:  s.cfg.CancelURL,
	})
	if err != nil {
		s.metrics.CheckoutSessions.WithLabelValues("create", "error").Inc()
		return nil, s.providerFault(opCheckout, err)
	}

	err = s.store.WithinTransaction(ctx, func(tx repositories.Store) error {
		current, err := tx.Orders().GetByIDForUpdate(ctx, order.ID, userID)
		if err != nil {
			return err
		}
		if err := checkoutable(current); err != nil {
			return err
		}
		return tx.Orders().SetCheckoutSession(ctx, order.ID, session.ID)
	})
	if err != nil {
		s.metrics.CheckoutSessions.WithLabelValues("create", "error").Inc()
		s.ExpireSession(ctx, session.ID)
		if domain.ErrorReason(err) != "" {
			s.log.Info("checkout session discarded", "order_id", order.ID, "session_id", session.ID, "reason", domain.ErrorReason(err))
			return nil, err
		}
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, domain.NotFound(opCheckout, "order", orderID)
		}
		s.log.Error("failed to record checkout session", "order_id", order.ID, "session_id", session.ID, "error", err)
		return nil, domain.Internal(err, opCheckout, "failed to record checkout session")
	}

	s.metrics.CheckoutSessions.WithLabelValues("create", "ok").Inc()
	s.log.Info("checkout session created", "order_id", order.ID, "session_id", session.ID)
	return &CheckoutResult{OrderID: order.ID, SessionID: session.ID, URL: session.URL}, nil
}

// checkoutable accepts only pending, unpaid card orders.
func checkoutable(order *models.Order) error {
	if order.PaymentMethod != models.PaymentMethodCard {
		return domain.Rejected(domain.ReasonNotCheckoutable, opCheckout,
			"Order %s is paid by %s and needs no checkout", order.ID, order.PaymentMethod)
	}
	if order.OrderStatus != models.OrderStatusPending || order.PaymentStatus != models.PaymentStatusPending {
		return domain.Rejected(domain.ReasonNotCheckoutable, opCheckout,
			"Order %s is %s/%s and cannot be paid", order.ID, order.OrderStatus, order.PaymentStatus)
	}
	return nil
}

// RetrieveCheckout returns the provider's view of the order's session.
func (s *CheckoutService) RetrieveCheckout(ctx context.Context, orderID, userID string) (*billing.Session, error) {
	order, err := s.loadOrder(ctx, opRetrieveCheckout, orderID, userID)
	if err != nil {
		return nil, err
	}
	if order.CheckoutSessionID == "" {
		return nil, domain.Errorf(domain.ENOTFOUND, opRetrieveCheckout, "order %s has no checkout session", orderID)
	}

	session, err := s.provider.GetSession(ctx, order.CheckoutSessionID)
	if err != nil {
		return nil, s.providerFault(opRetrieveCheckout, err)
	}
	return session, nil
}

// ExpireSession closes a session after its order was cancelled. It reports
// the outcome instead of failing, since the cancellation already committed.
func (s *CheckoutService) ExpireSession(ctx context.Context, sessionID string) (bool, string) {
	if sessionID == "" {
		return false, "Order has no checkout session"
	}
	if _, err := s.provider.ExpireSession(ctx, sessionID); err != nil {
		s.metrics.CheckoutSessions.WithLabelValues("expire", "error").Inc()
		s.log.Warn("failed to expire checkout session", "op", opExpireCheckout, "session_id", sessionID, "error", err)
		return false, fmt.Sprintf("Checkout session %s could not be expired", sessionID)
	}
	s.metrics.CheckoutSessions.WithLabelValues("expire", "ok").Inc()
	return true, fmt.Sprintf("Checkout session %s expired", sessionID)
}

func (s *CheckoutService) loadOrder(ctx context.Context, op, orderID, userID string) (*models.Order, error) {
	order, err := s.store.Orders().GetByID(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, domain.NotFound(op, "order", orderID)
		}
		return nil, domain.Internal(err, op, "failed to load order")
	}
	return order, nil
}

func (s *CheckoutService) providerFault(op string, err error) error {
	switch {
	case errors.Is(err, billing.ErrSessionNotFound):
		return domain.Errorf(domain.ENOTFOUND, op, "checkout session not found")
	case errors.Is(err, billing.ErrNotConfigured):
		return domain.WrapError(err, domain.EINTERNAL, op, "checkout is not available")
	default:
		return domain.Transient(err, op, "The payment provider is unavailable, please retry")
	}
}

// checkoutLineItems prices each snapshot line plus the delivery charge.
func checkoutLineItems(order *models.Order) []billing.LineItem {
	items := make([]billing.LineItem, 0, len(order.Items)+1)
	for _, item := range order.Items {
		items = append(items, billing.LineItem{
			Name:        item.Product.Name,
			ImageURL:    item.Product.PictureURL,
			AmountCents: billing.ToCents(item.UnitPrice),
			Quantity:    int64(item.Quantity),
		})
	}
	if dm := order.DeliveryMethod; dm != nil && dm.Cost.IsPositive() {
		items = append(items, billing.LineItem{
			Name:        "Delivery: " + dm.ShortName,
			AmountCents: billing.ToCents(dm.Cost),
			Quantity:    1,
		})
	}
	return items
}
