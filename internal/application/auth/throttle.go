package auth

import (
	"context"
	"fmt"

	"github.com/go-otp-onboarding/internal/domain"
	"golang.org/x/time/rate"
)

// ThrottledProvider caps the process-wide request rate to the wrapped provider.
type ThrottledProvider struct {
	next    Provider
	limiter *rate.Limiter
}

func NewThrottledProvider(next Provider, rps float64, burst int) *ThrottledProvider {
	if burst < 1 {
		burst = 1
	}
	return &ThrottledProvider{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (p *ThrottledProvider) CreateVerification(ctx context.Context, to string) (*domain.Dispatch, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("outbound throttle: %w: %w", domain.ErrProviderTimeout, err)
	}
	return p.next.CreateVerification(ctx, to)
}

func (p *ThrottledProvider) CheckVerification(ctx context.Context, to, code string) (*domain.VerificationCheck, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("outbound throttle: %w: %w", domain.ErrProviderTimeout, err)
	}
	return p.next.CheckVerification(ctx, to, code)
}
