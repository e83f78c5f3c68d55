package model

// DateLayout is the wire format for voucher start/end dates. The window is
// calendar-day granular in the organization's timezone, so no time component
// crosses the API.
const DateLayout = "2006-01-02"

// CreateVoucherRequest is the DTO for creating a single voucher. When Code is
// empty a code of CodeLength random characters is generated between Prefix
// and Suffix.
type CreateVoucherRequest struct {
	Name               string   `json:"name" validate:"required,notblank,max=50"`
	Description        string   `json:"description" validate:"max=100"`
	Prefix             string   `json:"prefix" validate:"max=16"`
	Suffix             string   `json:"suffix" validate:"max=16"`
	Code               string   `json:"code" validate:"omitempty,max=64"`
	CodeLength         int      `json:"code_length" validate:"omitempty,gte=4,lte=20"`
	DiscountType       string   `json:"discount_type" validate:"required,oneof=fixed percentage"`
	DiscountValue      *int64   `json:"discount_value" validate:"required,gte=0"`
	MaxDiscountAmount  *int64   `json:"max_discount_amount" validate:"omitempty,gte=0"`
	MinOrderAmount     int64    `json:"min_order_amount" validate:"gte=0"`
	MaxRedemptions     *int     `json:"max_redemptions" validate:"omitempty,gte=1"`
	StartDate          string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate            string   `json:"end_date" validate:"required,datetime=2006-01-02"`
	RedeemLimitPerUser string   `json:"redeem_limit_per_user" validate:"omitempty,oneof=once_per_user unlimited"`
	EligibleProducts   []string `json:"eligible_products" validate:"omitempty,dive,notblank"`
}

// BulkVoucherRequest issues Count vouchers sharing one attribute template,
// each with its own generated code.
type BulkVoucherRequest struct {
	Count    int                  `json:"count" validate:"required,gte=1,lte=1000"`
	Prefix   string               `json:"prefix" validate:"max=16"`
	Suffix   string               `json:"suffix" validate:"max=16"`
	Length   int                  `json:"length" validate:"omitempty,gte=4,lte=20"`
	Template CreateVoucherRequest `json:"template" validate:"required"`
}

// UpdateVoucherRequest is a partial update; nil fields are left untouched.
// Code, prefix and suffix are immutable after creation.
type UpdateVoucherRequest struct {
	Name               *string  `json:"name" validate:"omitempty,notblank,max=50"`
	Description        *string  `json:"description" validate:"omitempty,max=100"`
	DiscountType       *string  `json:"discount_type" validate:"omitempty,oneof=fixed percentage"`
	DiscountValue      *int64   `json:"discount_value" validate:"omitempty,gte=0"`
	MaxDiscountAmount  *int64   `json:"max_discount_amount" validate:"omitempty,gte=0"`
	MinOrderAmount     *int64   `json:"min_order_amount" validate:"omitempty,gte=0"`
	MaxRedemptions     *int     `json:"max_redemptions" validate:"omitempty,gte=1"`
	StartDate          *string  `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate            *string  `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	RedeemLimitPerUser *string  `json:"redeem_limit_per_user" validate:"omitempty,oneof=once_per_user unlimited"`
	EligibleProducts   []string `json:"eligible_products" validate:"omitempty,dive,notblank"`
}

// ValidateVoucherRequest is the dry-run body: evaluate a voucher against an
// order without committing anything.
type ValidateVoucherRequest struct {
	Code        string   `json:"code" validate:"required,notblank,max=64"`
	OrderAmount *int64   `json:"order_amount" validate:"required,gte=0"`
	ProductIDs  []string `json:"product_ids" validate:"omitempty,dive,notblank"`
	UserEmail   string   `json:"user_email" validate:"omitempty,email,max=100"`
}

// RedeemVoucherRequest commits a redemption of the voucher named in the URL.
type RedeemVoucherRequest struct {
	OrderAmount *int64   `json:"order_amount" validate:"required,gte=0"`
	ProductIDs  []string `json:"product_ids" validate:"omitempty,dive,notblank"`
	UserEmail   string   `json:"user_email" validate:"required,email,max=100"`
	UserName    string   `json:"user_name" validate:"omitempty,max=100"`
	OrderID     string   `json:"order_id" validate:"omitempty,max=100"`
}
