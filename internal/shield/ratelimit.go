package shield

import (
	"context"
	"errors"
	"time"
)

// WindowResult reports the state of a sliding-window bucket after a hit.
type WindowResult struct {
	Allowed   bool
	Count     int64
	Remaining int64
	ResetIn   time.Duration
}

// WindowStore counts hits per key over a trailing window. Implementations
// must serialize hits on the same key.
type WindowStore interface {
	Hit(ctx context.Context, key string, limit int64, window time.Duration) (WindowResult, error)
}

// SlidingWindowRule caps requests per identity within a trailing window.
// Only allowed hits consume budget.
type SlidingWindowRule struct {
	name   string
	mode   Mode
	max    int64
	window time.Duration
	store  WindowStore
}

// NewSlidingWindow builds a rate-limit rule. Rules sharing a name share
// buckets.
func NewSlidingWindow(name string, mode Mode, max int64, window time.Duration, store WindowStore) (*SlidingWindowRule, error) {
	if store == nil {
		return nil, errors.New("sliding window: store is required")
	}
	if max <= 0 || window <= 0 {
		return nil, errors.New("sliding window: max and window must be positive")
	}
	return &SlidingWindowRule{name: name, mode: mode, max: max, window: window, store: store}, nil
}

func (r *SlidingWindowRule) Name() string { return "rate_limit:" + r.name }
func (r *SlidingWindowRule) Mode() Mode   { return r.mode }

// Max returns the request budget per window.
func (r *SlidingWindowRule) Max() int64 { return r.max }

// Window returns the trailing window length.
func (r *SlidingWindowRule) Window() time.Duration { return r.window }

func (r *SlidingWindowRule) Evaluate(ctx context.Context, req Request) (RuleResult, error) {
	res, err := r.store.Hit(ctx, r.name+":"+req.Identity, r.max, r.window)
	if err != nil {
		return RuleResult{}, err
	}
	if res.Allowed {
		return RuleResult{Conclusion: ConclusionAllow}, nil
	}
	return RuleResult{
		Conclusion: ConclusionDeny,
		Reason: Reason{
			Kind: ReasonRateLimit,
			RateLimit: &RateLimitReason{
				Max:       r.max,
				Window:    r.window,
				Remaining: res.Remaining,
				ResetIn:   res.ResetIn,
			},
		},
	}, nil
}
