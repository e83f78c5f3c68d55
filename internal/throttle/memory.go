package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/voucherly/voucher-engine/pkg/clock"
)

type bucket struct {
	points      int
	windowStart time.Time
	lastSeen    time.Time
}

// MemoryStore is the in-process Limiter: one fixed-window bucket per
// organization and plan, guarded by a single mutex. Idle buckets are removed
// by a janitor so long-running processes don't accumulate dead tenants.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limits  Limits
	clk     clock.Clock

	idleTTL      time.Duration
	cleanupEvery time.Duration
}

// NewMemoryStore creates a MemoryStore with the given plan limits.
func NewMemoryStore(limits Limits, clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		buckets:      make(map[string]*bucket),
		limits:       limits,
		clk:          clk,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
}

// Allow implements Limiter. It never returns an error; the in-process store
// has no failure mode.
func (s *MemoryStore) Allow(_ context.Context, orgID string, plan Plan) (Decision, error) {
	now := s.clk.Now()
	key := string(plan) + ":" + orgID
	capacity := s.limits.Capacity(plan)

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok || now.Sub(b.windowStart) >= s.limits.Window {
		b = &bucket{points: capacity, windowStart: now}
		s.buckets[key] = b
	}
	b.lastSeen = now

	if b.points <= 0 {
		return Decision{
			Allowed:    false,
			Plan:       plan,
			RetryAfter: b.windowStart.Add(s.limits.Window).Sub(now),
		}, nil
	}

	b.points--
	return Decision{Allowed: true, Plan: plan, Remaining: b.points}, nil
}

// Cleanup drops buckets that have not been touched within the idle TTL.
func (s *MemoryStore) Cleanup() {
	cutoff := s.clk.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, b := range s.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(s.buckets, k)
		}
	}
}

// StartJanitor runs Cleanup periodically until the context is cancelled.
func (s *MemoryStore) StartJanitor(ctx context.Context) {
	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
