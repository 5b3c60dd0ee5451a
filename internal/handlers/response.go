package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"storefront/internal/domain"
)

// statusFor maps an application error code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case domain.ENOTFOUND:
		return fiber.StatusNotFound
	case domain.EINVALID:
		return fiber.StatusBadRequest
	case domain.ECONFLICT:
		return fiber.StatusConflict
	case domain.ETRANSIENT:
		return fiber.StatusServiceUnavailable
	case domain.EUNAUTHORIZED:
		return fiber.StatusUnauthorized
	case domain.EFORBIDDEN:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError renders err as JSON. Internal details never reach the client.
func writeError(c *fiber.Ctx, log *slog.Logger, err error) error {
	code := domain.ErrorCode(err)
	status := statusFor(code)
	if status >= fiber.StatusInternalServerError {
		log.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"op", domain.ErrorOp(err),
			"code", code,
			"error", err,
		)
	}

	body := fiber.Map{
		"message": domain.ErrorMessage(err),
		"code":    code,
	}
	if reason := domain.ErrorReason(err); reason != "" {
		body["reason"] = reason
	}
	if status == fiber.StatusServiceUnavailable {
		c.Set(fiber.HeaderRetryAfter, "1")
	}
	return c.Status(status).JSON(body)
}

func invalidBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
		"error":   err.Error(),
	})
}

// validationFailed lists the failing field tags the way clients already parse them.
func validationFailed(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return invalidBody(c, err)
	}
	errorMessages := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}

// requestLocale picks the primary language of the first Accept-Language entry.
func requestLocale(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAcceptLanguage)
	if header == "" {
		return ""
	}
	first := strings.TrimSpace(strings.Split(header, ",")[0])
	first = strings.Split(first, ";")[0]
	if first == "*" {
		return ""
	}
	return strings.ToLower(strings.Split(first, "-")[0])
}
