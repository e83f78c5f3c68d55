package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// New creates a validator instance with the custom rules the voucher API uses.
// Register everything here so handlers and tests validate identically.
func New() *validator.Validate {
	v := validator.New()

	// "notblank" rejects whitespace-only strings. Voucher names and redeemer
	// emails must carry meaningful content, not just pass "required".
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return true // Not a string, let other validators handle it
		}
		return strings.TrimSpace(str) != ""
	})

	return v
}
