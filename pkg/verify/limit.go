package verify

import (
	"context"

	"github.com/entrhq/guitest/pkg/types"
	"golang.org/x/time/rate"
)

// Limited paces calls to a provider with a token bucket.
type Limited struct {
	Provider
	limiter *rate.Limiter
}

// NewLimited wraps p so that at most perSecond calls start each second,
// with bursts of up to burst calls.
func NewLimited(p Provider, perSecond float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	return &Limited{Provider: p, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Verify waits for a token, then delegates.
func (l *Limited) Verify(ctx context.Context, req Request) (types.Verification, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return types.Verification{}, err
	}
	return l.Provider.Verify(ctx, req)
}
