package handler

import (
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/voucherly/voucher-engine/internal/service"
	"github.com/voucherly/voucher-engine/internal/vcode"
)

// formatValidationError converts validator errors into stable, user-facing
// messages keyed by the JSON field name.
func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			field := snakeCase(fe.Field())
			switch fe.Tag() {
			case "required":
				return "invalid request: " + field + " is required"
			case "notblank":
				return "invalid request: " + field + " cannot be whitespace only"
			case "max":
				return "invalid request: " + field + " exceeds maximum length of " + fe.Param()
			case "gte":
				return "invalid request: " + field + " must be at least " + fe.Param()
			case "lte":
				return "invalid request: " + field + " must be at most " + fe.Param()
			case "oneof":
				return "invalid request: " + field + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
			case "datetime":
				return "invalid request: " + field + " must be a date in YYYY-MM-DD format"
			case "email":
				return "invalid request: " + field + " must be a valid email address"
			default:
				return "invalid request: " + field + " is invalid"
			}
		}
	}
	return "invalid request"
}

// snakeCase converts a Go struct field name to its JSON form.
func snakeCase(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(r))
		} else {
			sb.WriteRune(r)
		}
	}
	// Collapse the ID/IDs acronyms split by the naive walk above.
	out := strings.ReplaceAll(sb.String(), "i_ds", "ids")
	return strings.ReplaceAll(out, "i_d", "id")
}

// respondServiceError maps service-layer failures onto HTTP responses.
// Business rejections keep their stable kind so clients can branch without
// parsing messages; infrastructure failures become an opaque 500 and are
// never disguised as a rejection.
func respondServiceError(c *fiber.Ctx, err error) error {
	var rej *service.Rejection
	if errors.As(err, &rej) {
		status := fiber.StatusBadRequest
		if rej.Kind == service.RejectInvalidCode {
			status = fiber.StatusNotFound
		}
		return c.Status(status).JSON(fiber.Map{
			"error": rej.Message,
			"kind":  string(rej.Kind),
		})
	}

	switch {
	case errors.Is(err, service.ErrVoucherNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "voucher not found"})
	case errors.Is(err, service.ErrVoucherExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "voucher already exists with this code"})
	case errors.Is(err, service.ErrInvalidRequest):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	case errors.Is(err, vcode.ErrSpaceExhausted),
		errors.Is(err, vcode.ErrLengthOutOfRange),
		errors.Is(err, vcode.ErrCountOutOfRange):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	log.Error().
		Err(err).
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Msg("request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}
