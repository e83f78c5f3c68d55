package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voucherly/voucher-engine/internal/identity"
	"github.com/voucherly/voucher-engine/internal/model"
	"github.com/voucherly/voucher-engine/internal/notify"
	"github.com/voucherly/voucher-engine/internal/vcode"
	"github.com/voucherly/voucher-engine/pkg/clock"
	"github.com/voucherly/voucher-engine/pkg/database"
)

// defaultCodeLength is the random-part length used when a request leaves it unset.
const defaultCodeLength = 8

// insertCodeRetries bounds regenerate-and-retry cycles when a generated code
// loses the uniqueness race at insert time. The generator's own collision
// avoidance makes more than one round rare.
const insertCodeRetries = 5

// VoucherRepositoryInterface defines the interface for voucher data access.
type VoucherRepositoryInterface interface {
	Insert(ctx context.Context, q database.TxQuerier, voucher *model.Voucher) error
	GetByCode(ctx context.Context, orgID uuid.UUID, code string) (*model.Voucher, error)
	GetByCodeForUpdate(ctx context.Context, tx database.TxQuerier, orgID uuid.UUID, code string) (*model.Voucher, error)
	List(ctx context.Context, orgID uuid.UUID, query model.ListQuery) ([]model.Voucher, int64, error)
	Update(ctx context.Context, voucher *model.Voucher) error
	Delete(ctx context.Context, orgID uuid.UUID, code string) (bool, error)
	CommitRedemption(ctx context.Context, tx database.TxQuerier, voucherID uuid.UUID, at time.Time) (bool, error)
	Stats(ctx context.Context, orgID uuid.UUID, today, horizon time.Time) (*model.VoucherStats, error)
}

// RedemptionRepositoryInterface defines the interface for redemption data access.
type RedemptionRepositoryInterface interface {
	Insert(ctx context.Context, tx database.TxQuerier, redemption *model.Redemption) error
	ExistsCompleted(ctx context.Context, q database.TxQuerier, voucherID, orgID uuid.UUID, email string) (bool, error)
	ListByVoucher(ctx context.Context, voucherID uuid.UUID, query model.ListQuery) ([]model.Redemption, int64, error)
	CountByOrganization(ctx context.Context, orgID uuid.UUID) (int64, error)
}

// TxBeginner defines the interface for beginning transactions.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// VoucherService provides business logic for voucher issuance, validation and
// redemption.
type VoucherService struct {
	pool           TxBeginner
	voucherRepo    VoucherRepositoryInterface
	redemptionRepo RedemptionRepositoryInterface
	notifier       notify.Dispatcher
	clk            clock.Clock
}

// NewVoucherService creates a VoucherService with the given pool, repositories
// and collaborators.
func NewVoucherService(pool *pgxpool.Pool, voucherRepo VoucherRepositoryInterface, redemptionRepo RedemptionRepositoryInterface, notifier notify.Dispatcher, clk clock.Clock) *VoucherService {
	return &VoucherService{
		pool:           pool,
		voucherRepo:    voucherRepo,
		redemptionRepo: redemptionRepo,
		notifier:       notifier,
		clk:            clk,
	}
}

// NewVoucherServiceWithTxBeginner creates a VoucherService with a custom
// TxBeginner. Primarily used for testing.
func NewVoucherServiceWithTxBeginner(pool TxBeginner, voucherRepo VoucherRepositoryInterface, redemptionRepo RedemptionRepositoryInterface, notifier notify.Dispatcher, clk clock.Clock) *VoucherService {
	return &VoucherService{
		pool:           pool,
		voucherRepo:    voucherRepo,
		redemptionRepo: redemptionRepo,
		notifier:       notifier,
		clk:            clk,
	}
}

// Create creates a single voucher. An empty request code means one is
// generated from the prefix, suffix and code length. A caller-chosen code
// that is already taken returns ErrVoucherExists; a generated code that loses
// the uniqueness race is regenerated and retried.
func (s *VoucherService) Create(ctx context.Context, p identity.Principal, req *model.CreateVoucherRequest) (*model.Voucher, error) {
	if req == nil || req.DiscountValue == nil {
		return nil, ErrInvalidRequest
	}

	voucher, err := s.buildVoucher(p, req)
	if err != nil {
		return nil, err
	}

	generated := req.Code == ""
	length := req.CodeLength
	if length == 0 {
		length = defaultCodeLength
	}

	if generated {
		code, err := vcode.Generate(req.Prefix, req.Suffix, length, nil)
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}
		voucher.Code = code
	} else {
		voucher.Code = strings.ToUpper(req.Code)
	}

	for attempt := 0; ; attempt++ {
		err := s.voucherRepo.Insert(ctx, nil, voucher)
		if err == nil {
			return voucher, nil
		}
		if !errors.Is(err, ErrVoucherExists) {
			return nil, fmt.Errorf("insert voucher: %w", err)
		}
		// The store's unique constraint is the final authority on codes.
		// Explicit codes surface the conflict; generated ones retry.
		if !generated || attempt >= insertCodeRetries {
			return nil, ErrVoucherExists
		}
		code, genErr := vcode.Generate(req.Prefix, req.Suffix, length, map[string]struct{}{voucher.Code: {}})
		if genErr != nil {
			return nil, fmt.Errorf("regenerate code: %w", genErr)
		}
		voucher.Code = code
	}
}

// CreateBulk issues count vouchers sharing one attribute template inside a
// single transaction. Codes that collide with persisted ones are regenerated
// per insert; the batch either commits fully or not at all.
func (s *VoucherService) CreateBulk(ctx context.Context, p identity.Principal, req *model.BulkVoucherRequest) ([]model.Voucher, error) {
	if req == nil || req.Template.DiscountValue == nil {
		return nil, ErrInvalidRequest
	}

	length := req.Length
	if length == 0 {
		length = defaultCodeLength
	}

	codes, err := vcode.GenerateBulk(req.Count, req.Prefix, req.Suffix, length, nil)
	if err != nil {
		return nil, fmt.Errorf("generate bulk codes: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	used := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		used[code] = struct{}{}
	}

	vouchers := make([]model.Voucher, 0, req.Count)
	for _, code := range codes {
		voucher, err := s.buildVoucher(p, &req.Template)
		if err != nil {
			return nil, err
		}
		voucher.Prefix = req.Prefix
		voucher.Suffix = req.Suffix
		voucher.Code = code

		if err := s.insertBulkVoucher(ctx, tx, voucher, req, length, used); err != nil {
			return nil, err
		}
		vouchers = append(vouchers, *voucher)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit bulk issuance: %w", err)
	}
	return vouchers, nil
}

// insertBulkVoucher inserts one voucher of a batch, regenerating its code on
// a uniqueness conflict with already-persisted vouchers. Each attempt runs in
// its own savepoint: a unique violation aborts the enclosing transaction
// otherwise, and every later statement in the batch would fail with 25P02.
func (s *VoucherService) insertBulkVoucher(ctx context.Context, tx pgx.Tx, voucher *model.Voucher, req *model.BulkVoucherRequest, length int, used map[string]struct{}) error {
	for attempt := 0; ; attempt++ {
		sp, err := tx.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin savepoint: %w", err)
		}

		insertErr := s.voucherRepo.Insert(ctx, sp, voucher)
		if insertErr == nil {
			if err := sp.Commit(ctx); err != nil {
				return fmt.Errorf("release savepoint: %w", err)
			}
			return nil
		}
		_ = sp.Rollback(ctx)

		if !errors.Is(insertErr, ErrVoucherExists) {
			return fmt.Errorf("insert bulk voucher: %w", insertErr)
		}
		if attempt >= insertCodeRetries {
			return vcode.ErrSpaceExhausted
		}
		code, genErr := vcode.Generate(req.Prefix, req.Suffix, length, used)
		if genErr != nil {
			return fmt.Errorf("regenerate bulk code: %w", genErr)
		}
		used[code] = struct{}{}
		voucher.Code = code
	}
}

// buildVoucher maps a create request onto a new Voucher owned by the
// principal's organization.
func (s *VoucherService) buildVoucher(p identity.Principal, req *model.CreateVoucherRequest) (*model.Voucher, error) {
	start, err := time.Parse(model.DateLayout, req.StartDate)
	if err != nil {
		return nil, ErrInvalidRequest
	}
	end, err := time.Parse(model.DateLayout, req.EndDate)
	if err != nil {
		return nil, ErrInvalidRequest
	}
	if end.Before(start) {
		return nil, ErrInvalidRequest
	}

	limit := model.RedeemLimit(req.RedeemLimitPerUser)
	if limit == "" {
		limit = model.RedeemUnlimited
	}

	return &model.Voucher{
		ID:                 uuid.New(),
		OrganizationID:     p.OrganizationID,
		Name:               req.Name,
		Description:        req.Description,
		Prefix:             req.Prefix,
		Suffix:             req.Suffix,
		DiscountType:       model.DiscountType(req.DiscountType),
		DiscountValue:      *req.DiscountValue,
		MaxDiscountAmount:  req.MaxDiscountAmount,
		MinOrderAmount:     req.MinOrderAmount,
		MaxRedemptions:     req.MaxRedemptions,
		StartDate:          start,
		EndDate:            end,
		RedeemLimitPerUser: limit,
		EligibleProducts:   req.EligibleProducts,
	}, nil
}

// GetByCode retrieves one of the organization's vouchers.
// Returns ErrVoucherNotFound if it doesn't exist.
func (s *VoucherService) GetByCode(ctx context.Context, p identity.Principal, code string) (*model.Voucher, error) {
	voucher, err := s.voucherRepo.GetByCode(ctx, p.OrganizationID, code)
	if err != nil {
		return nil, fmt.Errorf("get voucher: %w", err)
	}
	if voucher == nil {
		return nil, ErrVoucherNotFound
	}
	return voucher, nil
}

// List returns one page of the organization's vouchers.
func (s *VoucherService) List(ctx context.Context, p identity.Principal, query model.ListQuery) (*model.VoucherListResponse, error) {
	query = query.Normalize()

	vouchers, total, err := s.voucherRepo.List(ctx, p.OrganizationID, query)
	if err != nil {
		return nil, fmt.Errorf("list vouchers: %w", err)
	}

	return &model.VoucherListResponse{
		Data:       vouchers,
		Pagination: query.PaginationFor(total),
	}, nil
}

// Update applies a partial update to a voucher. The code, prefix and suffix
// are immutable; the redemption counter is owned by the redemption path and
// cannot be touched here.
func (s *VoucherService) Update(ctx context.Context, p identity.Principal, code string, req *model.UpdateVoucherRequest) (*model.Voucher, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}

	voucher, err := s.GetByCode(ctx, p, code)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		voucher.Name = *req.Name
	}
	if req.Description != nil {
		voucher.Description = *req.Description
	}
	if req.DiscountType != nil {
		voucher.DiscountType = model.DiscountType(*req.DiscountType)
	}
	if req.DiscountValue != nil {
		voucher.DiscountValue = *req.DiscountValue
	}
	if req.MaxDiscountAmount != nil {
		voucher.MaxDiscountAmount = req.MaxDiscountAmount
	}
	if req.MinOrderAmount != nil {
		voucher.MinOrderAmount = *req.MinOrderAmount
	}
	if req.MaxRedemptions != nil {
		voucher.MaxRedemptions = req.MaxRedemptions
	}
	if req.StartDate != nil {
		start, err := time.Parse(model.DateLayout, *req.StartDate)
		if err != nil {
			return nil, ErrInvalidRequest
		}
		voucher.StartDate = start
	}
	if req.EndDate != nil {
		end, err := time.Parse(model.DateLayout, *req.EndDate)
		if err != nil {
			return nil, ErrInvalidRequest
		}
		voucher.EndDate = end
	}
	if req.RedeemLimitPerUser != nil {
		voucher.RedeemLimitPerUser = model.RedeemLimit(*req.RedeemLimitPerUser)
	}
	if req.EligibleProducts != nil {
		voucher.EligibleProducts = req.EligibleProducts
	}
	if voucher.EndDate.Before(voucher.StartDate) {
		return nil, ErrInvalidRequest
	}

	if err := s.voucherRepo.Update(ctx, voucher); err != nil {
		return nil, fmt.Errorf("update voucher: %w", err)
	}
	return voucher, nil
}

// Delete removes a voucher; dependent redemption records cascade in the
// store. Returns ErrVoucherNotFound when the code doesn't exist.
func (s *VoucherService) Delete(ctx context.Context, p identity.Principal, code string) error {
	deleted, err := s.voucherRepo.Delete(ctx, p.OrganizationID, code)
	if err != nil {
		return fmt.Errorf("delete voucher: %w", err)
	}
	if !deleted {
		return ErrVoucherNotFound
	}
	return nil
}

// nearingExpiryDays is how far ahead the dashboard looks for vouchers about
// to end.
const nearingExpiryDays = 7

// Stats summarizes the organization's vouchers for its dashboard. Window
// classification is day-granular in the organization's timezone, the same
// rule validation applies; nearing expiry looks nearingExpiryDays out.
func (s *VoucherService) Stats(ctx context.Context, p identity.Principal) (*model.VoucherStats, error) {
	y, m, d := s.clk.Now().In(p.Location()).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	horizon := today.AddDate(0, 0, nearingExpiryDays)

	stats, err := s.voucherRepo.Stats(ctx, p.OrganizationID, today, horizon)
	if err != nil {
		return nil, fmt.Errorf("voucher stats: %w", err)
	}

	redemptions, err := s.redemptionRepo.CountByOrganization(ctx, p.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("count redemptions: %w", err)
	}
	stats.TotalRedemptions = redemptions
	return stats, nil
}

// ListRedemptions returns one page of a voucher's redemption records.
func (s *VoucherService) ListRedemptions(ctx context.Context, p identity.Principal, code string, query model.ListQuery) (*model.RedemptionListResponse, error) {
	voucher, err := s.GetByCode(ctx, p, code)
	if err != nil {
		return nil, err
	}

	query = query.Normalize()
	redemptions, total, err := s.redemptionRepo.ListByVoucher(ctx, voucher.ID, query)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}

	return &model.RedemptionListResponse{
		Data:       redemptions,
		Pagination: query.PaginationFor(total),
	}, nil
}
