package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/voucherly/voucher-engine/internal/identity"
	"github.com/voucherly/voucher-engine/internal/model"
)

// RedeemServiceInterface defines the interface for validation and redemption
// business logic.
type RedeemServiceInterface interface {
	Validate(ctx context.Context, p identity.Principal, req *model.ValidateVoucherRequest) (*model.Quote, error)
	Redeem(ctx context.Context, p identity.Principal, code string, req *model.RedeemVoucherRequest, ipAddress, userAgent string) (*model.RedeemResponse, error)
	ListRedemptions(ctx context.Context, p identity.Principal, code string, query model.ListQuery) (*model.RedemptionListResponse, error)
}

// RedeemHandler handles HTTP requests for voucher validation and redemption.
type RedeemHandler struct {
	service   RedeemServiceInterface
	validator *validator.Validate
}

// NewRedeemHandler creates a new RedeemHandler with the given service and validator.
func NewRedeemHandler(svc RedeemServiceInterface, v *validator.Validate) *RedeemHandler {
	return &RedeemHandler{service: svc, validator: v}
}

// ValidateVoucher handles POST /api/vouchers/validate: a dry run of the
// redemption checks without committing anything.
func (h *RedeemHandler) ValidateVoucher(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "organization id required"})
	}

	var req model.ValidateVoucherRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	quote, err := h.service.Validate(c.Context(), p, &req)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(quote)
}

// RedeemVoucher handles POST /api/vouchers/:code/redeem.
func (h *RedeemHandler) RedeemVoucher(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "organization id required"})
	}

	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: code is required"})
	}

	var req model.RedeemVoucherRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	resp, err := h.service.Redeem(c.Context(), p, code, &req, c.IP(), c.Get(fiber.HeaderUserAgent))
	if err != nil {
		return respondServiceError(c, err)
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("organization_id", p.OrganizationID.String()).
		Str("voucher_code", code).
		Str("user_email", req.UserEmail).
		Int64("discount", resp.Discount).
		Msg("voucher redeemed")

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// ListRedemptions handles GET /api/vouchers/:code/redemptions.
func (h *RedeemHandler) ListRedemptions(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "organization id required"})
	}

	code := c.Params("code")
	query := model.ListQuery{
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", 10),
	}

	resp, err := h.service.ListRedemptions(c.Context(), p, code, query)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(resp)
}
