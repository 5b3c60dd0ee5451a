package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"storefront/internal/middleware"
	"storefront/internal/services"
)

// CheckoutHandler handles hosted payment sessions for orders.
type CheckoutHandler struct {
	service *services.CheckoutService
	log     *slog.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(service *services.CheckoutService, log *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{service: service, log: log}
}

// RegisterRoutes registers the checkout routes.
func (h *CheckoutHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	checkoutRoutes := router.Group("/checkout", auth)
	checkoutRoutes.Post("/:orderId", h.HandleCheckout)
	checkoutRoutes.Get("/:orderId", h.HandleRetrieveCheckout)
}

// HandleCheckout opens a payment session for the caller's order.
func (h *CheckoutHandler) HandleCheckout(c *fiber.Ctx) error {
	result, err := h.service.Checkout(c.UserContext(), c.Params("orderId"), middleware.OwnerScope(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// HandleRetrieveCheckout returns the state of the order's payment session.
func (h *CheckoutHandler) HandleRetrieveCheckout(c *fiber.Ctx) error {
	session, err := h.service.RetrieveCheckout(c.UserContext(), c.Params("orderId"), middleware.OwnerScope(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(fiber.Map{
		"sessionId":     session.ID,
		"url":           session.URL,
		"status":        session.Status,
		"paymentStatus": session.PaymentStatus,
		"amountTotal":   session.AmountTotal,
		"currency":      session.Currency,
		"expiresAt":     session.ExpiresAt,
	})
}
