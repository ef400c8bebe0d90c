package sns

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/go-otp-onboarding/internal/domain"
	"github.com/go-otp-onboarding/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

const codeDigits = 6

// Verification statuses, matching the hosted provider's vocabulary.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusCanceled = "canceled"
	StatusExpired  = "expired"
)

// ChallengeStore persists pending challenges, one per phone and channel.
type ChallengeStore interface {
	Put(ctx context.Context, c *domain.OTPChallenge) error
	Get(ctx context.Context, phone, channel string) (*domain.OTPChallenge, error)
	IncrementChecks(ctx context.Context, phone, channel, sid string) (int, error)
	Delete(ctx context.Context, phone, channel, sid string) error
}

// VerifyService is a self-hosted OTP provider: it generates the code, keeps
// a bcrypt hash of it in the challenge store and delivers it over SMS.
type VerifyService struct {
	store     ChallengeStore
	sms       SMSSender
	ttl       time.Duration
	maxChecks int
	now       func() time.Time
	newCode   func() (string, error)
}

func NewVerifyService(store ChallengeStore, sms SMSSender, ttl time.Duration, maxChecks int) *VerifyService {
	return &VerifyService{
		store:     store,
		sms:       sms,
		ttl:       ttl,
		maxChecks: maxChecks,
		now:       time.Now,
		newCode:   randomCode,
	}
}

func randomCode() (string, error) {
	ceiling := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, ceiling)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

// CreateVerification replaces any pending challenge for to and sends a fresh code.
func (s *VerifyService) CreateVerification(ctx context.Context, to string) (*domain.Dispatch, error) {
	code, err := s.newCode()
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash code: %w", err)
	}
	now := s.now().UTC()
	expires := now.Add(s.ttl)
	ch := &domain.OTPChallenge{
		PhoneNumber: to,
		Channel:     domain.ChannelSMS,
		SID:         "VE" + id.New(),
		CodeHash:    string(hash),
		ExpiresAt:   expires.Unix(),
		ExpireAt:    expires,
		CreatedAt:   now,
	}
	if err := s.store.Put(ctx, ch); err != nil {
		return nil, fmt.Errorf("store challenge: %w", err)
	}
	msg := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(s.ttl.Minutes()))
	if err := s.sms.SendSMS(ctx, to, msg); err != nil {
		return nil, err
	}
	return &domain.Dispatch{
		SID:         ch.SID,
		To:          to,
		Channel:     domain.ChannelSMS,
		Status:      StatusPending,
		DateCreated: now,
		DateUpdated: now,
	}, nil
}

// CheckVerification compares code with the pending challenge for to. A
// missing, expired or exhausted challenge is reported as not valid.
func (s *VerifyService) CheckVerification(ctx context.Context, to, code string) (*domain.VerificationCheck, error) {
	res := &domain.VerificationCheck{To: to, Channel: domain.ChannelSMS, Status: StatusPending}

	ch, err := s.store.Get(ctx, to, domain.ChannelSMS)
	if errors.Is(err, domain.ErrNotFound) {
		res.Status = StatusExpired
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	res.SID = ch.SID

	if s.now().Unix() >= ch.ExpiresAt {
		s.discard(ctx, ch)
		res.Status = StatusExpired
		return res, nil
	}
	if ch.Checks >= s.maxChecks {
		s.discard(ctx, ch)
		res.Status = StatusCanceled
		return res, nil
	}

	if bcrypt.CompareHashAndPassword([]byte(ch.CodeHash), []byte(code)) == nil {
		s.discard(ctx, ch)
		res.Status = StatusApproved
		res.Valid = true
		return res, nil
	}

	checks, err := s.store.IncrementChecks(ctx, to, domain.ChannelSMS, ch.SID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		res.Status = StatusExpired
	case err != nil:
		return nil, fmt.Errorf("record check: %w", err)
	case checks >= s.maxChecks:
		s.discard(ctx, ch)
		res.Status = StatusCanceled
	}
	return res, nil
}

func (s *VerifyService) discard(ctx context.Context, ch *domain.OTPChallenge) {
	if err := s.store.Delete(ctx, ch.PhoneNumber, ch.Channel, ch.SID); err != nil {
		slog.Warn("delete otp challenge", "sid", ch.SID, "error", err)
	}
}
