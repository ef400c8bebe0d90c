package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-otp-onboarding/internal/domain"
	"github.com/go-otp-onboarding/internal/pkg/id"
	"github.com/go-otp-onboarding/internal/pkg/phone"
	"github.com/go-otp-onboarding/internal/pkg/retry"
)

// Redirect targets returned after a successful verification.
const (
	RedirectNewUser       = "/email"
	RedirectReturningUser = "/"
)

// Provider sends and checks one-time codes.
type Provider interface {
	CreateVerification(ctx context.Context, to string) (*domain.Dispatch, error)
	CheckVerification(ctx context.Context, to, code string) (*domain.VerificationCheck, error)
}

type userStore interface {
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}

type tokenIssuer interface {
	Sign(userID string) (string, time.Time, error)
}

// VerifyResult is the outcome of a code check. Valid is false for a wrong or
// expired code; infrastructure failures are returned as errors instead.
type VerifyResult struct {
	Valid     bool
	NewUser   bool
	UserID    string
	Token     string
	ExpiresAt time.Time
	Redirect  string
}

type Service interface {
	RequestOTP(ctx context.Context, number string) (*domain.Dispatch, error)
	VerifyOTP(ctx context.Context, number, code string) (*VerifyResult, error)
}

type service struct {
	provider Provider
	repo     userStore
	tokens   tokenIssuer
	policy   retry.Policy
	now      func() time.Time
}

type ServiceDeps struct {
	Provider Provider
	UserRepo userStore
	Tokens   tokenIssuer
	// Retry is the dispatch policy; the zero value means retry.Default().
	Retry retry.Policy
}

func NewService(deps ServiceDeps) Service {
	policy := deps.Retry
	if policy.Base == 0 {
		policy = retry.Default()
	}
	return &service{
		provider: deps.Provider,
		repo:     deps.UserRepo,
		tokens:   deps.Tokens,
		policy:   policy,
		now:      time.Now,
	}
}

// classify decides whether a failed dispatch is worth another attempt.
func classify(err error) retry.Outcome {
	switch {
	case err == nil:
		return retry.Success
	case errors.Is(err, domain.ErrProviderThrottled), errors.Is(err, domain.ErrProviderTimeout):
		return retry.Retryable
	default:
		return retry.Fatal
	}
}

func retryReason(err error) string {
	if errors.Is(err, domain.ErrProviderTimeout) {
		return "timeout"
	}
	return "throttled"
}

func (s *service) RequestOTP(ctx context.Context, number string) (*domain.Dispatch, error) {
	to, err := phone.Parse(number)
	if err != nil {
		return nil, err
	}

	policy := s.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		slog.Warn("otp dispatch failed, backing off", "reason", retryReason(err), "to", to, "attempt", attempt, "delay", delay, "error", err)
	}

	var dispatch *domain.Dispatch
	attempts, err := policy.Do(ctx, func(ctx context.Context, attempt int) (retry.Outcome, error) {
		d, err := s.provider.CreateVerification(ctx, to)
		if err != nil {
			return classify(err), err
		}
		dispatch = d
		return retry.Success, nil
	})
	if err != nil {
		slog.Error("otp dispatch failed", "to", to, "attempts", attempts, "error", err)
		return nil, fmt.Errorf("send otp: %w", err)
	}
	slog.Info("otp dispatched", "to", to, "sid", dispatch.SID, "status", dispatch.Status, "attempts", attempts)
	return dispatch, nil
}

func (s *service) VerifyOTP(ctx context.Context, number, code string) (*VerifyResult, error) {
	to, err := phone.Parse(number)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, fmt.Errorf("otp is required: %w", domain.ErrBadRequest)
	}

	check, err := s.provider.CheckVerification(ctx, to, code)
	if err != nil {
		slog.Error("otp check failed", "to", to, "error", err)
		return nil, fmt.Errorf("check otp: %w", err)
	}
	if !check.Valid {
		slog.Info("otp rejected", "to", to, "status", check.Status)
		return &VerifyResult{Valid: false}, nil
	}

	u, err := s.repo.GetByPhone(ctx, to)
	if errors.Is(err, domain.ErrNotFound) {
		return s.register(ctx, to)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return s.login(u)
}

func (s *service) register(ctx context.Context, to string) (*VerifyResult, error) {
	u := &domain.User{UserID: id.New(), PhoneNumber: to, CreatedAt: s.now().UTC()}
	err := s.repo.Create(ctx, u)
	if errors.Is(err, domain.ErrConflict) {
		// Another request registered this phone first.
		existing, gerr := s.repo.GetByPhone(ctx, to)
		if gerr != nil {
			return nil, fmt.Errorf("lookup user after conflict: %w", gerr)
		}
		return s.login(existing)
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	slog.Info("user registered", "user_id", u.UserID, "phone", to)
	return &VerifyResult{Valid: true, NewUser: true, UserID: u.UserID, Redirect: RedirectNewUser}, nil
}

func (s *service) login(u *domain.User) (*VerifyResult, error) {
	token, exp, err := s.tokens.Sign(u.UserID)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	slog.Info("user logged in", "user_id", u.UserID)
	return &VerifyResult{
		Valid:     true,
		UserID:    u.UserID,
		Token:     token,
		ExpiresAt: exp,
		Redirect:  RedirectReturningUser,
	}, nil
}
