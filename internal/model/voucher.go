package model

import (
	"time"

	"github.com/google/uuid"
)

// DiscountType selects how a voucher's discount is computed.
type DiscountType string

const (
	DiscountFixed      DiscountType = "fixed"
	DiscountPercentage DiscountType = "percentage"
)

// RedeemLimit restricts how often one identity may redeem a voucher.
type RedeemLimit string

const (
	RedeemOncePerUser RedeemLimit = "once_per_user"
	RedeemUnlimited   RedeemLimit = "unlimited"
)

// Voucher is a discount instrument scoped to one organization. The code is
// unique across the whole system, not just per organization. All monetary
// fields are integer minor currency units.
type Voucher struct {
	ID                 uuid.UUID    `json:"id"`
	OrganizationID     uuid.UUID    `json:"organization_id"`
	Name               string       `json:"name"`
	Description        string       `json:"description,omitempty"`
	Prefix             string       `json:"prefix,omitempty"`
	Suffix             string       `json:"suffix,omitempty"`
	Code               string       `json:"code"`
	DiscountType       DiscountType `json:"discount_type"`
	DiscountValue      int64        `json:"discount_value"`
	MaxDiscountAmount  *int64       `json:"max_discount_amount,omitempty"`
	MinOrderAmount     int64        `json:"min_order_amount"`
	MaxRedemptions     *int         `json:"max_redemptions,omitempty"`
	RedemptionCount    int          `json:"redemption_count"`
	StartDate          time.Time    `json:"start_date"`
	EndDate            time.Time    `json:"end_date"`
	RedeemLimitPerUser RedeemLimit  `json:"redeem_limit_per_user"`
	EligibleProducts   []string     `json:"eligible_products,omitempty"`
	LastRedeemedAt     *time.Time   `json:"last_redeemed_at,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// RedemptionStatus tracks the lifecycle of a committed redemption.
// Refund is a status transition only; no refund math lives here.
type RedemptionStatus string

const (
	RedemptionCompleted RedemptionStatus = "completed"
	RedemptionRefunded  RedemptionStatus = "refunded"
)

// Redemption is an immutable record of one successful voucher use.
// FinalPayableAmount is always OrderAmount - DiscountAmount.
type Redemption struct {
	ID                 uuid.UUID        `json:"id"`
	VoucherID          uuid.UUID        `json:"voucher_id"`
	OrganizationID     uuid.UUID        `json:"organization_id"`
	UserName           string           `json:"user_name,omitempty"`
	UserEmail          string           `json:"user_email,omitempty"`
	OrderID            string           `json:"order_id,omitempty"`
	OrderAmount        int64            `json:"order_amount"`
	DiscountAmount     int64            `json:"discount_amount"`
	FinalPayableAmount int64            `json:"final_payable_amount"`
	IPAddress          string           `json:"ip_address,omitempty"`
	UserAgent          string           `json:"user_agent,omitempty"`
	Status             RedemptionStatus `json:"status"`
	CreatedAt          time.Time        `json:"created_at"`
}
