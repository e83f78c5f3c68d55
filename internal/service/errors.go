package service

import "errors"

// Infrastructure and CRUD sentinels. Business-rule rejections are not errors
// of this kind; they are typed Rejection values (see rejection.go) so callers
// can never confuse a failed availability check with an invalid voucher.
var (
	// ErrVoucherExists is returned when creating a voucher whose code is taken
	ErrVoucherExists = errors.New("voucher already exists with this code")

	// ErrVoucherNotFound is returned when a voucher cannot be found
	ErrVoucherNotFound = errors.New("voucher not found")

	// ErrInvalidRequest is returned when request data is invalid or incomplete
	ErrInvalidRequest = errors.New("invalid request")
)

// errRedemptionRace marks a commit that lost the guarded counter update to a
// concurrent redemption. The orchestrator retries the whole sequence once
// before surfacing RedemptionLimitReached.
var errRedemptionRace = errors.New("redemption counter race lost")
