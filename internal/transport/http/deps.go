package http

import (
	"context"
	"time"

	"github.com/go-otp-onboarding/internal/application/auth"
	"github.com/go-otp-onboarding/internal/domain"
	jwtinfra "github.com/go-otp-onboarding/internal/infrastructure/jwt"
	"github.com/go-otp-onboarding/internal/infrastructure/smtp"
	"github.com/go-otp-onboarding/internal/pkg/ratelimit"
	"github.com/go-otp-onboarding/internal/pkg/retry"
)

// UserRepository is the minimal interface the router requires from a user store.
// Both the DynamoDB and the MongoDB repositories satisfy it.
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	SetEmail(ctx context.Context, userID, email string) error
	SetName(ctx context.Context, phone, firstName, lastName string) error
}

// TokenProvider issues and verifies bearer tokens.
type TokenProvider interface {
	Sign(userID string) (string, time.Time, error)
	Verify(token string) (*jwtinfra.Claims, error)
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo    UserRepository
	Provider    auth.Provider
	OTPLimiter  ratelimit.Limiter
	JWTProvider TokenProvider
	Mailer      smtp.Mailer // nil disables mail
	Retry       retry.Policy
}
