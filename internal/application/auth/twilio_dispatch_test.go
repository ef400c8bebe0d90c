package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-otp-onboarding/internal/config"
	"github.com/go-otp-onboarding/internal/domain"
	"github.com/go-otp-onboarding/internal/infrastructure/twilio"
	"github.com/go-otp-onboarding/internal/pkg/retry"
	"github.com/stretchr/testify/assert"
)

func twilioService(t *testing.T, status int) (Service, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"code":20003,"message":"upstream"}`))
	}))
	t.Cleanup(srv.Close)

	client := twilio.NewVerifyClient(&config.Config{
		TwilioBaseURL:    srv.URL,
		TwilioAccountSID: "AC123",
		TwilioAuthToken:  "token",
		TwilioServiceSID: "VA123",
		ProviderTimeout:  time.Second,
	})
	policy := retry.Default()
	policy.Sleep = func(context.Context, time.Duration) error { return nil }
	return NewService(ServiceDeps{Provider: client, Retry: policy}), &calls
}

func TestRequestOTP_Twilio5xxIsNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusGatewayTimeout} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			svc, calls := twilioService(t, status)
			_, err := svc.RequestOTP(context.Background(), number)

			assert.True(t, errors.Is(err, domain.ErrProviderRejected), "got %v", err)
			assert.Equal(t, int32(1), atomic.LoadInt32(calls))
		})
	}
}

func TestRequestOTP_Twilio429IsRetried(t *testing.T) {
	svc, calls := twilioService(t, http.StatusTooManyRequests)
	_, err := svc.RequestOTP(context.Background(), number)

	assert.True(t, errors.Is(err, domain.ErrProviderThrottled), "got %v", err)
	assert.Equal(t, int32(4), atomic.LoadInt32(calls))
}

func TestRetryReason(t *testing.T) {
	assert.Equal(t, "timeout", retryReason(domain.ErrProviderTimeout))
	assert.Equal(t, "throttled", retryReason(domain.ErrProviderThrottled))
}
