package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/voucherly/voucher-engine/internal/identity"
	"github.com/voucherly/voucher-engine/internal/model"
)

// notifyTimeout bounds the fire-and-forget notification dispatch after a
// committed redemption.
const notifyTimeout = 10 * time.Second

// redemptionTemplate is the notification template reference for a committed
// redemption. Rendering happens in the dispatcher, outside this engine.
const redemptionTemplate = "voucher-redeemed"

// Validate is the dry run: evaluate a voucher against an order without
// committing anything. Calling it twice with identical inputs and no
// intervening writes yields identical results.
func (s *VoucherService) Validate(ctx context.Context, p identity.Principal, req *model.ValidateVoucherRequest) (*model.Quote, error) {
	if req == nil || req.OrderAmount == nil {
		return nil, ErrInvalidRequest
	}

	voucher, err := s.voucherRepo.GetByCode(ctx, p.OrganizationID, req.Code)
	if err != nil {
		return nil, fmt.Errorf("get voucher: %w", err)
	}
	if voucher == nil {
		return nil, rejectInvalidCode()
	}

	ord := order{amount: *req.OrderAmount, productIDs: req.ProductIDs, email: req.UserEmail}
	return s.evaluate(ctx, nil, voucher, ord, p, s.clk.Now())
}

// Redeem validates and commits one redemption atomically. The voucher row is
// locked for the duration of the transaction, so the redemption insert and
// the counter increment land together or not at all. A commit that loses the
// counter race to a concurrent redemption is retried from scratch once, then
// surfaced as the limit being reached; the counter never exceeds
// max_redemptions no matter how many callers race.
func (s *VoucherService) Redeem(ctx context.Context, p identity.Principal, code string, req *model.RedeemVoucherRequest, ipAddress, userAgent string) (*model.RedeemResponse, error) {
	if req == nil || req.OrderAmount == nil {
		return nil, ErrInvalidRequest
	}

	for attempt := 0; attempt < 2; attempt++ {
		resp, err := s.redeemOnce(ctx, p, code, req, ipAddress, userAgent)
		if errors.Is(err, errRedemptionRace) {
			log.Warn().
				Str("voucher_code", code).
				Str("organization_id", p.OrganizationID.String()).
				Msg("redemption lost counter race, revalidating")
			continue
		}
		return resp, err
	}
	return nil, rejectLimitReached()
}

func (s *VoucherService) redeemOnce(ctx context.Context, p identity.Principal, code string, req *model.RedeemVoucherRequest, ipAddress, userAgent string) (*model.RedeemResponse, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	// 1. Lock the voucher row (SELECT FOR UPDATE)
	voucher, err := s.voucherRepo.GetByCodeForUpdate(ctx, tx, p.OrganizationID, code)
	if err != nil {
		if errors.Is(err, ErrVoucherNotFound) {
			return nil, rejectInvalidCode()
		}
		return nil, fmt.Errorf("get voucher for update: %w", err)
	}

	// 2. Validate under the lock; "now" is read once and threaded through
	now := s.clk.Now()
	ord := order{amount: *req.OrderAmount, productIDs: req.ProductIDs, email: req.UserEmail}
	quote, err := s.evaluate(ctx, tx, voucher, ord, p, now)
	if err != nil {
		return nil, err
	}

	// 3. Insert the immutable redemption record
	redemption := &model.Redemption{
		ID:                 uuid.New(),
		VoucherID:          voucher.ID,
		OrganizationID:     p.OrganizationID,
		UserName:           req.UserName,
		UserEmail:          req.UserEmail,
		OrderID:            req.OrderID,
		OrderAmount:        quote.OrderAmount,
		DiscountAmount:     quote.Discount,
		FinalPayableAmount: quote.FinalAmount,
		IPAddress:          ipAddress,
		UserAgent:          userAgent,
		Status:             model.RedemptionCompleted,
		CreatedAt:          now,
	}
	if err := s.redemptionRepo.Insert(ctx, tx, redemption); err != nil {
		return nil, fmt.Errorf("insert redemption: %w", err)
	}

	// 4. Advance the counter, guarded so it can never pass max_redemptions
	committed, err := s.voucherRepo.CommitRedemption(ctx, tx, voucher.ID, now)
	if err != nil {
		return nil, fmt.Errorf("commit redemption counter: %w", err)
	}
	if !committed {
		return nil, errRedemptionRace
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.dispatchRedemptionNotice(p, voucher, redemption)

	return &model.RedeemResponse{Quote: *quote, Redemption: redemption}, nil
}

// dispatchRedemptionNotice sends the post-redemption notification without
// blocking the caller. Dispatch failure is logged and never unwinds the
// committed redemption.
func (s *VoucherService) dispatchRedemptionNotice(p identity.Principal, voucher *model.Voucher, redemption *model.Redemption) {
	if s.notifier == nil || redemption.UserEmail == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		ref, err := s.notifier.Send(ctx, p.OrganizationID.String(), redemptionTemplate, redemption.UserEmail, map[string]string{
			"voucher_name":         voucher.Name,
			"voucher_code":         voucher.Code,
			"order_amount":         p.CurrencySymbol + " " + strconv.FormatInt(redemption.OrderAmount, 10),
			"discount_amount":      p.CurrencySymbol + " " + strconv.FormatInt(redemption.DiscountAmount, 10),
			"final_payable_amount": p.CurrencySymbol + " " + strconv.FormatInt(redemption.FinalPayableAmount, 10),
		})
		if err != nil {
			log.Error().
				Err(err).
				Str("voucher_code", voucher.Code).
				Str("recipient", redemption.UserEmail).
				Msg("redemption notification dispatch failed")
			return
		}
		log.Info().
			Str("voucher_code", voucher.Code).
			Str("delivery_ref", ref).
			Msg("redemption notification dispatched")
	}()
}
