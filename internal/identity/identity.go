package identity

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/voucherly/voucher-engine/internal/throttle"
)

// Principal is the authenticated caller context supplied by the upstream
// gateway. The engine trusts it without re-validating; authentication itself
// lives outside this service.
type Principal struct {
	UserID         string
	OrganizationID uuid.UUID
	Timezone       string
	CurrencySymbol string
	Plan           throttle.Plan
}

// Location resolves the organization's timezone, falling back to UTC when the
// zone name is missing or unknown. Validation windows are day-granular in
// this location.
func (p Principal) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

const localsKey = "identity.principal"

// Header names set by the gateway after it authenticates the session.
const (
	HeaderUserID         = "X-User-ID"
	HeaderOrganizationID = "X-Organization-ID"
	HeaderTimezone       = "X-Org-Timezone"
	HeaderCurrency       = "X-Org-Currency"
	HeaderPlan           = "X-Org-Plan"
)

// Middleware extracts the Principal from gateway headers and stores it in the
// request locals. Requests without a parseable organization id are rejected
// before touching any store.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		orgID, err := uuid.Parse(c.Get(HeaderOrganizationID))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "organization id required",
			})
		}

		currency := c.Get(HeaderCurrency)
		if currency == "" {
			currency = "$"
		}

		c.Locals(localsKey, Principal{
			UserID:         c.Get(HeaderUserID),
			OrganizationID: orgID,
			Timezone:       c.Get(HeaderTimezone),
			CurrencySymbol: currency,
			Plan:           throttle.ParsePlan(c.Get(HeaderPlan)),
		})
		return c.Next()
	}
}

// FromContext returns the Principal stored by Middleware. The boolean is
// false on routes that skipped the middleware.
func FromContext(c *fiber.Ctx) (Principal, bool) {
	p, ok := c.Locals(localsKey).(Principal)
	return p, ok
}
