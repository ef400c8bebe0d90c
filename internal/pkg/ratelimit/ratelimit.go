// Package ratelimit implements rolling-window request limits keyed by caller.
//
// A window admits at most Limit requests in any interval of length Window
// ending at the current request. Rejected requests are not recorded, so a
// slot frees up as soon as the oldest admitted request ages out.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the verdict for one request.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration // zero when Allowed
}

// Limiter admits or rejects a request for key. Implementations must be safe
// for concurrent use and must record an admitted request atomically with the
// admission check.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}
