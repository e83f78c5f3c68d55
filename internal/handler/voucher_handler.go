package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/voucherly/voucher-engine/internal/identity"
	"github.com/voucherly/voucher-engine/internal/model"
)

// VoucherServiceInterface defines the interface for voucher issuance and CRUD
// business logic.
type VoucherServiceInterface interface {
	Create(ctx context.Context, p identity.Principal, req *model.CreateVoucherRequest) (*model.Voucher, error)
	CreateBulk(ctx context.Context, p identity.Principal, req *model.BulkVoucherRequest) ([]model.Voucher, error)
	GetByCode(ctx context.Context, p identity.Principal, code string) (*model.Voucher, error)
	List(ctx context.Context, p identity.Principal, query model.ListQuery) (*model.VoucherListResponse, error)
	Update(ctx context.Context, p identity.Principal, code string, req *model.UpdateVoucherRequest) (*model.Voucher, error)
	Delete(ctx context.Context, p identity.Principal, code string) error
	Stats(ctx context.Context, p identity.Principal) (*model.VoucherStats, error)
}

// VoucherHandler handles HTTP requests for voucher issuance and CRUD.
type VoucherHandler struct {
	service   VoucherServiceInterface
	validator *validator.Validate
}

// NewVoucherHandler creates a new VoucherHandler with the given service and validator.
func NewVoucherHandler(svc VoucherServiceInterface, v *validator.Validate) *VoucherHandler {
	return &VoucherHandler{service: svc, validator: v}
}

// principal pulls the gateway identity from locals; the identity middleware
// guarantees it on every /api route.
func principal(c *fiber.Ctx) (identity.Principal, bool) {
	return identity.FromContext(c)
}

// CreateVoucher handles POST /api/vouchers.
func (h *VoucherHandler) CreateVoucher(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "organization id required"})
	}

	var req model.CreateVoucherRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	voucher, err := h.service.Create(c.Context(), p, &req)
	if err != nil {
		return respondServiceError(c, err)
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("organization_id", p.OrganizationID.String()).
		Str("voucher_code", voucher.Code).
		Msg("voucher created")

	return c.Status(fiber.StatusCreated).JSON(voucher)
}

// CreateBulk handles POST /api/vouchers/bulk.
func (h *VoucherHandler) CreateBulk(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "organization id required"})
	}

	var req model.BulkVoucherRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	vouchers, err := h.service.CreateBulk(c.Context(), p, &req)
	if err != nil {
		return respondServiceError(c, err)
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("organization_id", p.OrganizationID.String()).
		Int("count", len(vouchers)).
		Msg("bulk vouchers issued")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": vouchers})
}

// GetStats handles GET /api/vouchers/stats.
func (h *VoucherHandler) GetStats(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "organization id required"})
	}

	stats, err := h.service.Stats(c.Context(), p)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(stats)
}

// GetVoucher handles GET /api/vouchers/:code.
func (h *VoucherHandler) GetVoucher(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "organization id required"})
	}

	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: code is required"})
	}

	voucher, err := h.service.GetByCode(c.Context(), p, code)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(voucher)
}

// ListVouchers handles GET /api/vouchers.
func (h *VoucherHandler) ListVouchers(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "organization id required"})
	}

	query := model.ListQuery{
		Page:         c.QueryInt("page", 1),
		Limit:        c.QueryInt("limit", 10),
		Search:       c.Query("search"),
		OrderBy:      c.Query("orderBy", "ASC"),
		OrderByField: c.Query("orderByField", "name"),
	}

	resp, err := h.service.List(c.Context(), p, query)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(resp)
}

// UpdateVoucher handles PATCH /api/vouchers/:code.
func (h *VoucherHandler) UpdateVoucher(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "organization id required"})
	}

	code := c.Params("code")
	var req model.UpdateVoucherRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	voucher, err := h.service.Update(c.Context(), p, code, &req)
	if err != nil {
		return respondServiceError(c, err)
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("organization_id", p.OrganizationID.String()).
		Str("voucher_code", voucher.Code).
		Msg("voucher updated")

	return c.JSON(voucher)
}

// DeleteVoucher handles DELETE /api/vouchers/:code.
func (h *VoucherHandler) DeleteVoucher(c *fiber.Ctx) error {
	p, ok := principal(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "organization id required"})
	}

	code := c.Params("code")
	if err := h.service.Delete(c.Context(), p, code); err != nil {
		return respondServiceError(c, err)
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("organization_id", p.OrganizationID.String()).
		Str("voucher_code", code).
		Msg("voucher deleted")

	return c.JSON(fiber.Map{"message": "voucher deleted"})
}
