package handlers

import (
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"storefront/internal/services"
)

// CartHandler handles HTTP requests for shopping carts.
type CartHandler struct {
	service  *services.CartService
	validate *validator.Validate
	log      *slog.Logger
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(service *services.CartService, log *slog.Logger) *CartHandler {
	return &CartHandler{
		service:  service,
		validate: validator.New(),
		log:      log,
	}
}

// RegisterRoutes registers the cart routes. Carts are addressed by id and
// need no login until checkout.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cartRoutes := router.Group("/cart")
	cartRoutes.Post("/add-to-cart", h.HandleAddToCart)
	cartRoutes.Delete("/remove-from-cart", h.HandleRemoveFromCart)
	cartRoutes.Put("/update-quantity", h.HandleUpdateQuantity)
	cartRoutes.Get("/:id", h.HandleGetCart)
	cartRoutes.Delete("/:id", h.HandleDeleteCart)
}

// CartItemRequest addresses one product in one cart.
type CartItemRequest struct {
	CartID    string `json:"cartId" validate:"required,max=64"`
	ProductID string `json:"productId" validate:"required"`
}

// UpdateQuantityRequest sets the quantity of a cart line.
type UpdateQuantityRequest struct {
	CartID    string `json:"cartId" validate:"required,max=64"`
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity"`
}

// HandleGetCart returns a cart.
func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	cart, err := h.service.GetCart(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(cart)
}

// HandleAddToCart adds one unit of a product.
func (h *CartHandler) HandleAddToCart(c *fiber.Ctx) error {
	var req CartItemRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	result, err := h.service.AddToCart(c.UserContext(), req.CartID, req.ProductID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return cartResult(c, result)
}

// HandleRemoveFromCart drops a product from the cart.
func (h *CartHandler) HandleRemoveFromCart(c *fiber.Ctx) error {
	var req CartItemRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	result, err := h.service.RemoveFromCart(c.UserContext(), req.CartID, req.ProductID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return cartResult(c, result)
}

// HandleUpdateQuantity sets a cart line's quantity.
func (h *CartHandler) HandleUpdateQuantity(c *fiber.Ctx) error {
	var req UpdateQuantityRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	result, err := h.service.UpdateQuantity(c.UserContext(), req.CartID, req.ProductID, req.Quantity)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return cartResult(c, result)
}

// HandleDeleteCart removes a cart.
func (h *CartHandler) HandleDeleteCart(c *fiber.Ctx) error {
	cartID := c.Params("id")
	deleted, err := h.service.DeleteCart(c.UserContext(), cartID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"deleted": false,
			"message": "Cart " + cartID + " was not found",
		})
	}
	return c.JSON(fiber.Map{
		"deleted": true,
		"message": "Cart " + cartID + " deleted",
	})
}

func cartResult(c *fiber.Ctx, result *services.CartUpdateResult) error {
	if !result.Updated {
		return c.Status(fiber.StatusBadRequest).JSON(result)
	}
	return c.JSON(result)
}
