package sns

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"
	"github.com/go-otp-onboarding/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu    sync.Mutex
	items map[string]*domain.OTPChallenge
}

func newMemStore() *memStore { return &memStore{items: map[string]*domain.OTPChallenge{}} }

func (m *memStore) Put(_ context.Context, c *domain.OTPChallenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.items[c.PhoneNumber+"|"+c.Channel] = &cp
	return nil
}

func (m *memStore) Get(_ context.Context, phone, channel string) (*domain.OTPChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[phone+"|"+channel]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) IncrementChecks(_ context.Context, phone, channel, sid string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[phone+"|"+channel]
	if !ok || c.SID != sid {
		return 0, domain.ErrNotFound
	}
	c.Checks++
	return c.Checks, nil
}

func (m *memStore) Delete(_ context.Context, phone, channel, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.items[phone+"|"+channel]; ok && c.SID == sid {
		delete(m.items, phone+"|"+channel)
	}
	return nil
}

type fakeSMS struct {
	to, msg string
	err     error
}

func (f *fakeSMS) SendSMS(_ context.Context, to, msg string) error {
	f.to, f.msg = to, msg
	return f.err
}

const phone = "+15551234567"

func newTestService(store ChallengeStore, sms SMSSender, now *time.Time) *VerifyService {
	s := NewVerifyService(store, sms, 10*time.Minute, 3)
	s.now = func() time.Time { return *now }
	s.newCode = func() (string, error) { return "123456", nil }
	return s
}

func TestCreateVerification_StoresHashAndSendsCode(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store, sms := newMemStore(), &fakeSMS{}
	svc := newTestService(store, sms, &now)

	d, err := svc.CreateVerification(context.Background(), phone)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, d.Status)
	assert.Equal(t, domain.ChannelSMS, d.Channel)
	assert.Equal(t, phone, sms.to)
	assert.Contains(t, sms.msg, "123456")

	ch, err := store.Get(context.Background(), phone, domain.ChannelSMS)
	require.NoError(t, err)
	assert.Equal(t, d.SID, ch.SID)
	assert.NotContains(t, ch.CodeHash, "123456")
	assert.Equal(t, now.Add(10*time.Minute).Unix(), ch.ExpiresAt)
}

func TestCreateVerification_SMSErrorPropagates(t *testing.T) {
	now := time.Now()
	svc := newTestService(newMemStore(), &fakeSMS{err: domain.ErrProviderThrottled}, &now)

	_, err := svc.CreateVerification(context.Background(), phone)
	assert.True(t, errors.Is(err, domain.ErrProviderThrottled))
}

func TestCheckVerification_CorrectCodeApprovesOnce(t *testing.T) {
	now := time.Now()
	svc := newTestService(newMemStore(), &fakeSMS{}, &now)
	_, err := svc.CreateVerification(context.Background(), phone)
	require.NoError(t, err)

	res, err := svc.CheckVerification(context.Background(), phone, "123456")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, StatusApproved, res.Status)

	res, err = svc.CheckVerification(context.Background(), phone, "123456")
	require.NoError(t, err)
	assert.False(t, res.Valid, "a code can only be redeemed once")
}

func TestCheckVerification_WrongCode(t *testing.T) {
	now := time.Now()
	svc := newTestService(newMemStore(), &fakeSMS{}, &now)
	_, err := svc.CreateVerification(context.Background(), phone)
	require.NoError(t, err)

	res, err := svc.CheckVerification(context.Background(), phone, "000000")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, StatusPending, res.Status)
}

func TestCheckVerification_ExhaustedAfterMaxChecks(t *testing.T) {
	now := time.Now()
	svc := newTestService(newMemStore(), &fakeSMS{}, &now)
	_, err := svc.CreateVerification(context.Background(), phone)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.CheckVerification(context.Background(), phone, "000000")
		require.NoError(t, err)
	}
	res, err := svc.CheckVerification(context.Background(), phone, "123456")
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestCheckVerification_Expired(t *testing.T) {
	now := time.Now()
	svc := newTestService(newMemStore(), &fakeSMS{}, &now)
	_, err := svc.CreateVerification(context.Background(), phone)
	require.NoError(t, err)

	now = now.Add(11 * time.Minute)
	res, err := svc.CheckVerification(context.Background(), phone, "123456")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, StatusExpired, res.Status)
}

func TestCheckVerification_NoChallenge(t *testing.T) {
	now := time.Now()
	svc := newTestService(newMemStore(), &fakeSMS{}, &now)

	res, err := svc.CheckVerification(context.Background(), phone, "123456")
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestRandomCode_SixDigits(t *testing.T) {
	for i := 0; i < 20; i++ {
		code, err := randomCode()
		require.NoError(t, err)
		assert.Regexp(t, `^[0-9]{6}$`, code)
	}
}

type fakePublish struct{ err error }

func (f fakePublish) Publish(context.Context, *sns.PublishInput, ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return &sns.PublishOutput{}, f.err
}

func TestSendSMS_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"throttled exception", &types.ThrottledException{}, domain.ErrProviderThrottled},
		{"throttling code", &smithy.GenericAPIError{Code: "Throttling"}, domain.ErrProviderThrottled},
		{"invalid parameter", &types.InvalidParameterException{}, domain.ErrProviderRejected},
		{"deadline", context.DeadlineExceeded, domain.ErrProviderTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Sender{client: fakePublish{err: tt.err}}
			err := s.SendSMS(context.Background(), phone, "hi")
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
	s := &Sender{client: fakePublish{}}
	assert.NoError(t, s.SendSMS(context.Background(), phone, "hi"))
}
