package app

import (
	"context"
	"log"
	"time"
)

// RateLimitPolicy is a fixed-window budget for one action type.
type RateLimitPolicy struct {
	MaxRequests int
	Window      time.Duration
}

// DefaultRateLimits gates the player-initiated write actions. Windows are
// deliberately small with a low burst allowance; tune per action via config.
var DefaultRateLimits = map[string]RateLimitPolicy{
	"submitAnswer": {MaxRequests: 2, Window: time.Second},
	"chat":         {MaxRequests: 2, Window: time.Second},
	"joinRoom":     {MaxRequests: 10, Window: time.Minute},
	"createRoom":   {MaxRequests: 5, Window: time.Minute},
}

// RateLimitDecision is the outcome of a single check.
type RateLimitDecision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RateLimiter throttles actions per (actionType, caller) using an atomic
// counter store. It fails open: if the store is unreachable the action is
// allowed, since throttling is a guard rail, not a gameplay invariant.
type RateLimiter struct {
	counters CounterStore
	policies map[string]RateLimitPolicy
}

func NewRateLimiter(counters CounterStore, policies map[string]RateLimitPolicy) *RateLimiter {
	if policies == nil {
		policies = DefaultRateLimits
	}
	return &RateLimiter{counters: counters, policies: policies}
}

// Check records one attempt of action by callerID and reports whether it is
// within budget. Unknown actions are always allowed.
func (l *RateLimiter) Check(ctx context.Context, action, callerID string) RateLimitDecision {
	policy, ok := l.policies[action]
	if !ok {
		return RateLimitDecision{Allowed: true, Remaining: -1}
	}

	count, resetAt, err := l.counters.Incr(ctx, action+":"+callerID, policy.Window)
	if err != nil {
		log.Printf("rate limiter unavailable, failing open: action=%s caller=%s err=%v", action, callerID, err)
		return RateLimitDecision{Allowed: true, Remaining: -1}
	}

	remaining := policy.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return RateLimitDecision{
		Allowed:   count <= int64(policy.MaxRequests),
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
