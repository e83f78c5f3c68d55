package service

import (
	"context"
	"fmt"
	"time"

	"github.com/voucherly/voucher-engine/internal/identity"
	"github.com/voucherly/voucher-engine/internal/model"
	"github.com/voucherly/voucher-engine/pkg/database"
)

// order is the redemption-relevant slice of an inbound request.
type order struct {
	amount     int64
	productIDs []string
	email      string
}

// evaluate runs the ordered validation checks against a voucher and computes
// the discount. It performs no writes; the only read is the per-user prior
// redemption lookup, issued through q so that a redemption transaction sees
// its own locked snapshot. q may be nil for dry-run validation.
//
// The check order is fixed and first failure wins: active window, redemption
// cap, minimum order, per-user limit, product eligibility, discount bounds.
func (s *VoucherService) evaluate(ctx context.Context, q database.TxQuerier, v *model.Voucher, ord order, p identity.Principal, now time.Time) (*model.Quote, error) {
	loc := p.Location()

	// Day-granular window in the organization's timezone: the voucher is
	// usable from 00:00:00 on start_date through 23:59:59 on end_date.
	// Stored dates are UTC midnights; read their calendar day in UTC, the
	// driver may have decoded the timestamptz into the process-local zone.
	today := dateOnly(now.In(loc), loc)
	start := dateOnly(v.StartDate.UTC(), loc)
	end := dateOnly(v.EndDate.UTC(), loc)

	if today.Before(start) {
		return nil, rejectNotYetActive()
	}
	if today.After(end) {
		return nil, rejectExpired()
	}

	if v.MaxRedemptions != nil && v.RedemptionCount >= *v.MaxRedemptions {
		return nil, rejectLimitReached()
	}

	if ord.amount < v.MinOrderAmount {
		return nil, rejectBelowMinimumOrder(p.CurrencySymbol, v.MinOrderAmount)
	}

	if v.RedeemLimitPerUser == model.RedeemOncePerUser && ord.email != "" {
		redeemed, err := s.redemptionRepo.ExistsCompleted(ctx, q, v.ID, v.OrganizationID, ord.email)
		if err != nil {
			return nil, fmt.Errorf("check prior redemption: %w", err)
		}
		if redeemed {
			return nil, rejectAlreadyRedeemed()
		}
	}

	if len(v.EligibleProducts) > 0 && !intersects(ord.productIDs, v.EligibleProducts) {
		return nil, rejectNotValidOnProducts()
	}

	discount := computeDiscount(v, ord.amount)
	if discount > ord.amount {
		// Data-integrity safety net: a misconfigured fixed discount larger
		// than the order must surface loudly, never silently clamp.
		return nil, rejectDiscountExceedsOrder(p.CurrencySymbol, discount, ord.amount)
	}

	return &model.Quote{
		Discount:    discount,
		FinalAmount: ord.amount - discount,
		OrderAmount: ord.amount,
	}, nil
}

// computeDiscount applies the voucher's discount to an order amount.
// Percentage discounts round half-up to the minor currency unit and clamp to
// the max discount cap when one is set.
func computeDiscount(v *model.Voucher, orderAmount int64) int64 {
	if v.DiscountType == model.DiscountPercentage {
		discount := (orderAmount*v.DiscountValue + 50) / 100
		if v.MaxDiscountAmount != nil && discount > *v.MaxDiscountAmount {
			discount = *v.MaxDiscountAmount
		}
		return discount
	}
	return v.DiscountValue
}

// dateOnly truncates a time to its calendar day in loc.
func dateOnly(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// intersects reports whether any id in a appears in b.
func intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(b))
	for _, id := range b {
		set[id] = struct{}{}
	}
	for _, id := range a {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
