package handlers

import (
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"
)

// ProductHandler handles HTTP requests for the product catalog.
type ProductHandler struct {
	service  *services.ProductService
	validate *validator.Validate
	log      *slog.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService, log *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: validator.New(),
		log:      log,
	}
}

// RegisterRoutes registers the product routes. Reads are public; writes need
// an admin token.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Get("/:id", h.HandleGetProductByID)
	productRoutes.Get("/:id/max-order-quantity", h.HandleGetMaxOrderQuantity)

	admin := middleware.RequireAdmin()
	productRoutes.Post("/", auth, admin, h.HandleCreateProduct)
	productRoutes.Put("/:id", auth, admin, h.HandleUpdateProduct)
	productRoutes.Delete("/:id", auth, admin, h.HandleDeleteProduct)
}

// HandleGetProducts retrieves all products.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	products, err := h.service.GetAllProducts(c.UserContext())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(products)
}

// HandleGetProductByID retrieves a single product by its ID.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	product, err := h.service.GetProductByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(product)
}

// HandleGetMaxOrderQuantity reports how many units one order may take.
func (h *ProductHandler) HandleGetMaxOrderQuantity(c *fiber.Ctx) error {
	productID := c.Params("id")
	maxQty, err := h.service.GetMaxOrderQuantity(c.UserContext(), productID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(fiber.Map{
		"productId":        productID,
		"maxOrderQuantity": maxQty,
	})
}

// HandleCreateProduct creates a new product.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var product models.Product
	if err := c.BodyParser(&product); err != nil {
		return invalidBody(c, err)
	}
	product.ID = ""
	if err := h.validate.Struct(product); err != nil {
		return validationFailed(c, err)
	}

	if err := h.service.CreateProduct(c.UserContext(), &product); err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleUpdateProduct replaces an existing product's fields.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	var product models.Product
	if err := c.BodyParser(&product); err != nil {
		return invalidBody(c, err)
	}
	product.ID = c.Params("id")
	if err := h.validate.Struct(product); err != nil {
		return validationFailed(c, err)
	}

	if err := h.service.UpdateProduct(c.UserContext(), &product); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(product)
}

// HandleDeleteProduct soft-deletes a product.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	if err := h.service.DeleteProduct(c.UserContext(), c.Params("id")); err != nil {
		return writeError(c, h.log, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
