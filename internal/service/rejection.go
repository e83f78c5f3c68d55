package service

import "fmt"

// RejectionKind is a stable identifier for a business-rule rejection. The
// HTTP layer maps kinds to status codes; clients can branch on them without
// parsing messages.
type RejectionKind string

const (
	RejectInvalidCode          RejectionKind = "invalid_code"
	RejectNotYetActive         RejectionKind = "not_yet_active"
	RejectExpired              RejectionKind = "expired"
	RejectLimitReached         RejectionKind = "redemption_limit_reached"
	RejectBelowMinimumOrder    RejectionKind = "below_minimum_order"
	RejectAlreadyRedeemed      RejectionKind = "already_redeemed"
	RejectNotValidOnProducts   RejectionKind = "not_valid_on_products"
	RejectDiscountExceedsOrder RejectionKind = "discount_exceeds_order"
)

// Rejection is an expected, user-facing refusal of a validation or redemption
// request. It is non-retryable without changing the request.
type Rejection struct {
	Kind    RejectionKind
	Message string
}

func (r *Rejection) Error() string {
	return r.Message
}

func rejectInvalidCode() *Rejection {
	return &Rejection{Kind: RejectInvalidCode, Message: "invalid code"}
}

func rejectNotYetActive() *Rejection {
	return &Rejection{Kind: RejectNotYetActive, Message: "voucher not yet active"}
}

func rejectExpired() *Rejection {
	return &Rejection{Kind: RejectExpired, Message: "voucher has expired"}
}

func rejectLimitReached() *Rejection {
	return &Rejection{Kind: RejectLimitReached, Message: "voucher redemption limit reached"}
}

func rejectBelowMinimumOrder(currency string, minOrderAmount int64) *Rejection {
	return &Rejection{
		Kind:    RejectBelowMinimumOrder,
		Message: fmt.Sprintf("amount must be at least %s %d to use this voucher", currency, minOrderAmount),
	}
}

func rejectAlreadyRedeemed() *Rejection {
	return &Rejection{Kind: RejectAlreadyRedeemed, Message: "this user has already used this voucher"}
}

func rejectNotValidOnProducts() *Rejection {
	return &Rejection{Kind: RejectNotValidOnProducts, Message: "this voucher is not valid for the selected products"}
}

func rejectDiscountExceedsOrder(currency string, discount, orderAmount int64) *Rejection {
	return &Rejection{
		Kind:    RejectDiscountExceedsOrder,
		Message: fmt.Sprintf("discount (%s %d) cannot exceed order amount (%s %d)", currency, discount, currency, orderAmount),
	}
}
