package throttle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubLimiter returns a canned decision or error.
type stubLimiter struct {
	dec Decision
	err error
}

func (s *stubLimiter) Allow(_ context.Context, _ string, _ Plan) (Decision, error) {
	return s.dec, s.err
}

func newThrottledApp(lim Limiter) *fiber.App {
	app := fiber.New()
	app.Use(Middleware(lim, func(c *fiber.Ctx) (string, Plan, bool) {
		org := c.Get("X-Test-Org")
		if org == "" {
			return "", "", false
		}
		return org, ParsePlan(c.Get("X-Test-Plan")), true
	}))
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "pong"})
	})
	return app
}

func TestMiddleware_AllowsWithinBudget(t *testing.T) {
	app := newThrottledApp(&stubLimiter{dec: Decision{Allowed: true, Plan: PlanFree, Remaining: 99}})

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-Test-Org", "org-1")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestMiddleware_RejectsWhenBucketEmpty(t *testing.T) {
	app := newThrottledApp(&stubLimiter{dec: Decision{
		Allowed:    false,
		Plan:       PlanFree,
		RetryAfter: 30 * time.Second,
	}})

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-Test-Org", "org-1")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "31", resp.Header.Get(fiber.HeaderRetryAfter))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var parsed map[string]string
	require.NoError(t, json.Unmarshal(body, &parsed))
	assert.Equal(t, "rate limit exceeded for free plan", parsed["error"])
	assert.Equal(t, "free", parsed["plan"])
}

func TestMiddleware_FailsOpenOnStoreError(t *testing.T) {
	app := newThrottledApp(&stubLimiter{err: errors.New("redis: connection refused")})

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-Test-Org", "org-1")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode, "store failure must not reject requests")
}

func TestMiddleware_SkipsRequestsWithoutIdentity(t *testing.T) {
	app := newThrottledApp(&stubLimiter{dec: Decision{Allowed: false, Plan: PlanFree}})

	// No org header: the key func opts out, so even an empty bucket is ignored.
	req := httptest.NewRequest("GET", "/ping", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestParsePlan(t *testing.T) {
	assert.Equal(t, PlanPro, ParsePlan("pro"))
	assert.Equal(t, PlanPro, ParsePlan("PRO"))
	assert.Equal(t, PlanFree, ParsePlan("free"))
	assert.Equal(t, PlanFree, ParsePlan(""))
	assert.Equal(t, PlanFree, ParsePlan("enterprise"))
}
