package model

// Quote is the discount breakdown returned by validation and redemption.
type Quote struct {
	Discount    int64 `json:"discount"`
	FinalAmount int64 `json:"final_amount"`
	OrderAmount int64 `json:"order_amount"`
}

// RedeemResponse is returned after a committed redemption.
type RedeemResponse struct {
	Quote
	Redemption *Redemption `json:"redemption"`
}

// Pagination describes one page of a list response.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// VoucherListResponse is one page of an organization's vouchers.
type VoucherListResponse struct {
	Data       []Voucher  `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// VoucherStats is the organization's dashboard summary. Vouchers are
// classified by where today falls against their windows; nearing expiry
// means the voucher ends within the next seven days.
type VoucherStats struct {
	TotalVouchers    int64 `json:"total_vouchers"`
	ActiveVouchers   int64 `json:"active_vouchers"`
	UpcomingVouchers int64 `json:"upcoming_vouchers"`
	ExpiredVouchers  int64 `json:"expired_vouchers"`
	NearingExpiry    int64 `json:"nearing_expiry"`
	TotalRedemptions int64 `json:"total_redemptions"`
}

// RedemptionListResponse is one page of a voucher's redemptions.
type RedemptionListResponse struct {
	Data       []Redemption `json:"data"`
	Pagination Pagination   `json:"pagination"`
}
