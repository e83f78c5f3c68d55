// Package throttle gates API access per organization based on the
// organization's subscription plan. Each allowed request consumes one point
// from a fixed window bucket; when the window elapses the bucket refills to
// the plan's capacity.
package throttle

import (
	"context"
	"strings"
	"time"
)

// Plan is a subscription tier controlling throttle capacity.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// ParsePlan maps a header value to a Plan, defaulting to free.
func ParsePlan(s string) Plan {
	if strings.EqualFold(s, string(PlanPro)) {
		return PlanPro
	}
	return PlanFree
}

// Limits carries the configured capacity per plan and the shared window.
type Limits struct {
	FreePoints int
	ProPoints  int
	Window     time.Duration
}

// Capacity returns the point budget for a plan within one window.
func (l Limits) Capacity(p Plan) int {
	if p == PlanPro {
		return l.ProPoints
	}
	return l.FreePoints
}

// Decision is the outcome of one consume attempt.
type Decision struct {
	Allowed   bool
	Plan      Plan
	Remaining int
	// RetryAfter is how long until the current window resets. Zero when
	// allowed or unknown.
	RetryAfter time.Duration
}

// Limiter decides whether an organization may spend one point right now.
// Implementations must serialize consume-and-check per organization so a
// bucket never dispenses more than its capacity within a window.
type Limiter interface {
	Allow(ctx context.Context, orgID string, plan Plan) (Decision, error)
}
