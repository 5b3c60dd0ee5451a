package handlers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	checkout *services.CheckoutService
	validate *validator.Validate
	log      *slog.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, checkout *services.CheckoutService, log *slog.Logger) *OrderHandler {
	return &OrderHandler{
		service:  service,
		checkout: checkout,
		validate: validator.New(),
		log:      log,
	}
}

// RegisterRoutes registers the order routes with the Fiber app. Every route
// needs a token; the dashboard and status routes need an admin.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	orderRoutes := router.Group("/orders", auth)
	admin := middleware.RequireAdmin()

	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/delivery-methods", h.HandleGetDeliveryMethods)
	orderRoutes.Get("/count", admin, h.HandleCountOrders)
	orderRoutes.Get("/order-status-count", admin, h.HandleOrderStatusCount)
	orderRoutes.Get("/payment-status-count", admin, h.HandlePaymentStatusCount)
	orderRoutes.Get("/sales", admin, h.HandleSalesByProduct)
	orderRoutes.Get("/sales/total", admin, h.HandleRevenue)
	orderRoutes.Put("/order-status", admin, h.HandleUpdateOrderStatus)
	orderRoutes.Put("/payment-status", admin, h.HandleUpdatePaymentStatus)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Delete("/:id", h.HandleCancelOrder)
}

// HandleCreateOrder turns the caller's cart into an order.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var input services.CreateOrderInput
	if err := c.BodyParser(&input); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(input); err != nil {
		return validationFailed(c, err)
	}

	result, err := h.service.CreateOrder(c.UserContext(), input, middleware.UserID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	if !result.Success {
		return c.Status(statusFor(result.Reason.Code())).JSON(result)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// CancelOrderResponse adds the checkout session outcome to the cancellation.
type CancelOrderResponse struct {
	services.CancelOrderResult
	SessionExpired *bool  `json:"sessionExpired,omitempty"`
	ExpireMessage  string `json:"expireMessage,omitempty"`
}

// HandleCancelOrder cancels an order and expires its checkout session.
// Expiry failures are reported but leave the cancellation in place.
func (h *OrderHandler) HandleCancelOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")
	result, err := h.service.CancelOrder(c.UserContext(), orderID, middleware.OwnerScope(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	if !result.Success {
		return c.Status(statusFor(result.Reason.Code())).JSON(result)
	}

	resp := CancelOrderResponse{CancelOrderResult: *result}
	if result.CheckoutSessionID != "" {
		expired, message := h.checkout.ExpireSession(c.UserContext(), result.CheckoutSessionID)
		resp.SessionExpired = &expired
		resp.ExpireMessage = message
	}
	return c.JSON(resp)
}

// HandleGetOrders lists orders. Customers only ever see their own.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	filter, err := orderFilterFromQuery(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	if !middleware.IsAdmin(c) {
		filter.UserID = middleware.UserID(c)
	}

	page, err := h.service.ListOrders(c.UserContext(), filter)
	if err != nil {
		return writeError(c, h.log, err)
	}

	locale := requestLocale(c)
	items := make([]OrderResponse, len(page.Items))
	for i := range page.Items {
		items[i] = toOrderResponse(&page.Items[i], locale)
	}
	return c.JSON(fiber.Map{
		"items":    items,
		"total":    page.Total,
		"page":     page.Page,
		"pageSize": page.PageSize,
	})
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(c.UserContext(), c.Params("id"), middleware.OwnerScope(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(toOrderResponse(order, requestLocale(c)))
}

// HandleGetDeliveryMethods lists the delivery options.
func (h *OrderHandler) HandleGetDeliveryMethods(c *fiber.Ctx) error {
	methods, err := h.service.GetDeliveryMethods(c.UserContext())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(methods)
}

// HandleCountOrders counts orders matching the query filters.
func (h *OrderHandler) HandleCountOrders(c *fiber.Ctx) error {
	filter, err := orderFilterFromQuery(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	count, err := h.service.CountOrders(c.UserContext(), filter)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"count": count})
}

// HandleOrderStatusCount returns order counts grouped by status.
func (h *OrderHandler) HandleOrderStatusCount(c *fiber.Ctx) error {
	counts, err := h.service.CountByOrderStatus(c.UserContext())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(counts)
}

// HandlePaymentStatusCount returns order counts grouped by payment status.
func (h *OrderHandler) HandlePaymentStatusCount(c *fiber.Ctx) error {
	counts, err := h.service.CountByPaymentStatus(c.UserContext())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(counts)
}

// UpdateOrderStatusRequest moves an order to a new status.
type UpdateOrderStatusRequest struct {
	OrderID string             `json:"orderId" validate:"required"`
	Status  models.OrderStatus `json:"status" validate:"required"`
}

// UpdateOrderStatusResponse reports the new status and, after a
// cancellation, what happened to the order's checkout session.
type UpdateOrderStatusResponse struct {
	Message        string `json:"message"`
	SessionExpired *bool  `json:"sessionExpired,omitempty"`
	ExpireMessage  string `json:"expireMessage,omitempty"`
}

// HandleUpdateOrderStatus updates the status of an existing order. A
// cancelled order's checkout session is expired the same way a customer
// cancellation does it.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	var req UpdateOrderStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	update, err := h.service.UpdateOrderStatus(c.UserContext(), req.OrderID, req.Status)
	if err != nil {
		return writeError(c, h.log, err)
	}

	resp := UpdateOrderStatusResponse{
		Message: fmt.Sprintf("Order %s status updated to %s", update.OrderID, update.Status),
	}
	if update.CheckoutSessionID != "" {
		expired, message := h.checkout.ExpireSession(c.UserContext(), update.CheckoutSessionID)
		resp.SessionExpired = &expired
		resp.ExpireMessage = message
	}
	return c.JSON(resp)
}

// UpdatePaymentStatusRequest records a payment outcome.
type UpdatePaymentStatusRequest struct {
	OrderID string               `json:"orderId" validate:"required"`
	Status  models.PaymentStatus `json:"status" validate:"required"`
}

// HandleUpdatePaymentStatus updates the payment status of an existing order.
func (h *OrderHandler) HandleUpdatePaymentStatus(c *fiber.Ctx) error {
	var req UpdatePaymentStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	if err := h.service.UpdatePaymentStatus(c.UserContext(), req.OrderID, req.Status); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Order %s payment status updated to %s", req.OrderID, req.Status),
	})
}

// HandleSalesByProduct returns units sold and sales per product for
// delivered, paid orders.
func (h *OrderHandler) HandleSalesByProduct(c *fiber.Ctx) error {
	filter := repositories.SalesFilter{
		SortBy:   c.Query("sortBy"),
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("pageSize", repositories.DefaultPageSize),
	}
	switch dir := c.Query("sortDir", "desc"); dir {
	case "asc":
		filter.Ascending = true
	case "desc":
	default:
		return writeError(c, h.log, domain.Invalid("order.sales", fmt.Sprintf("sortDir must be asc or desc, got %q", dir)))
	}

	page, err := h.service.SalesByProduct(c.UserContext(), filter)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(page)
}

// HandleRevenue sums delivered, paid orders, optionally for one customer
// and date range.
func (h *OrderHandler) HandleRevenue(c *fiber.Ctx) error {
	filter := repositories.RevenueFilter{UserID: c.Query("userId")}
	for _, bound := range []struct {
		key  string
		dest **time.Time
	}{{"startDate", &filter.StartDate}, {"endDate", &filter.EndDate}} {
		raw := c.Query(bound.key)
		if raw == "" {
			continue
		}
		t, err := parseDate(raw)
		if err != nil {
			return writeError(c, h.log, domain.Invalid("order.revenue", fmt.Sprintf("%s must be a date (YYYY-MM-DD or RFC 3339)", bound.key)))
		}
		*bound.dest = &t
	}

	revenue, err := h.service.Revenue(c.UserContext(), filter)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"revenue": revenue})
}

// orderFilterFromQuery reads the listing filters from the query string.
func orderFilterFromQuery(c *fiber.Ctx) (repositories.OrderFilter, error) {
	const op = "order.list"
	filter := repositories.OrderFilter{
		OrderID:       c.Query("orderId"),
		UserID:        c.Query("userId"),
		OrderStatus:   models.OrderStatus(c.Query("orderStatus")),
		PaymentStatus: models.PaymentStatus(c.Query("paymentStatus")),
		PaymentMethod: models.PaymentMethod(c.Query("paymentMethod")),
		Search:        c.Query("search"),
		SortBy:        c.Query("sortBy"),
		SortDesc:      c.QueryBool("sortDesc", false),
		Page:          c.QueryInt("page", 1),
		PageSize:      c.QueryInt("pageSize", repositories.DefaultPageSize),
	}

	for _, bound := range []struct {
		key  string
		dest **decimal.Decimal
	}{{"minSubTotal", &filter.MinSubTotal}, {"maxSubTotal", &filter.MaxSubTotal}} {
		raw := c.Query(bound.key)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return filter, domain.Invalid(op, fmt.Sprintf("%s must be a number", bound.key))
		}
		*bound.dest = &d
	}

	for _, bound := range []struct {
		key  string
		dest **time.Time
	}{{"startDate", &filter.StartDate}, {"endDate", &filter.EndDate}} {
		raw := c.Query(bound.key)
		if raw == "" {
			continue
		}
		t, err := parseDate(raw)
		if err != nil {
			return filter, domain.Invalid(op, fmt.Sprintf("%s must be a date (YYYY-MM-DD or RFC 3339)", bound.key))
		}
		*bound.dest = &t
	}

	if filter.SortBy != "" && filter.SortBy != repositories.SortByOrderDate && filter.SortBy != repositories.SortBySubTotal {
		return filter, domain.Invalid(op, fmt.Sprintf("cannot sort by %q", filter.SortBy))
	}
	return filter, nil
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}
