package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-otp-onboarding/internal/domain"
	"github.com/go-otp-onboarding/internal/infrastructure/smtp"
	"github.com/go-otp-onboarding/internal/pkg/phone"
	"github.com/go-otp-onboarding/internal/pkg/validate"
)

type Service interface {
	SetEmail(ctx context.Context, userID, email string) error
	SetName(ctx context.Context, phoneNumber, firstName, lastName string) error
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type userStore interface {
	GetByID(ctx context.Context, userID string) (*domain.User, error)
	SetEmail(ctx context.Context, userID, email string) error
	SetName(ctx context.Context, phone, firstName, lastName string) error
}

type service struct {
	repo   userStore
	mailer smtp.Mailer
}

type ServiceDeps struct {
	UserRepo userStore
	// Mailer is optional; nil disables the welcome mail.
	Mailer smtp.Mailer
}

func NewService(deps ServiceDeps) Service {
	return &service{repo: deps.UserRepo, mailer: deps.Mailer}
}

// SetEmail attaches email to the user. An email owned by another user yields
// domain.ErrConflict.
func (s *service) SetEmail(ctx context.Context, userID, email string) error {
	if userID == "" {
		return fmt.Errorf("userId is required: %w", domain.ErrBadRequest)
	}
	if err := validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("email %v: %w", err, domain.ErrBadRequest)
	}
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.repo.SetEmail(ctx, userID, email); err != nil {
		slog.Error("set email failed", "user_id", userID, "error", err)
		return err
	}
	slog.Info("email set", "user_id", userID)

	if s.mailer != nil && (u.Email == nil || *u.Email != email) {
		subject, body := smtp.WelcomeMessage(u.FirstName)
		if err := s.mailer.SendEmail(ctx, email, subject, body); err != nil {
			slog.Warn("welcome mail failed", "user_id", userID, "error", err)
		}
	}
	return nil
}

func (s *service) SetName(ctx context.Context, phoneNumber, firstName, lastName string) error {
	to, err := phone.Parse(phoneNumber)
	if err != nil {
		return err
	}
	if err := s.repo.SetName(ctx, to, firstName, lastName); err != nil {
		slog.Error("set name failed", "phone", to, "error", err)
		return err
	}
	slog.Info("name set", "phone", to)
	return nil
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.GetByID(ctx, userID)
}
