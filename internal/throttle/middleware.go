package throttle

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// KeyFunc extracts the organization and plan from a request. It returns
// ok=false when the request carries no usable identity; such requests pass
// through and are rejected later by the identity layer.
type KeyFunc func(c *fiber.Ctx) (orgID string, plan Plan, ok bool)

// Middleware consumes one point per request from the organization's bucket
// and rejects with 429 when the bucket is empty. Store failures fail open:
// an unreachable Redis must not masquerade as a business rejection.
func Middleware(lim Limiter, keyFn KeyFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		orgID, plan, ok := keyFn(c)
		if !ok {
			return c.Next()
		}

		dec, err := lim.Allow(c.Context(), orgID, plan)
		if err != nil {
			log.Error().
				Err(err).
				Str("organization_id", orgID).
				Str("plan", string(plan)).
				Msg("throttle store unavailable, failing open")
			return c.Next()
		}

		if !dec.Allowed {
			if dec.RetryAfter > 0 {
				c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(dec.RetryAfter.Seconds())+1))
			}
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": fmt.Sprintf("rate limit exceeded for %s plan", dec.Plan),
				"plan":  string(dec.Plan),
			})
		}

		return c.Next()
	}
}
