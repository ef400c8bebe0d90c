package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-otp-onboarding/internal/config"
	"github.com/go-otp-onboarding/internal/domain"
	"github.com/go-resty/resty/v2"
)

// APIError is the error body returned by the Twilio REST API.
type APIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twilio %d: %s (code %d)", e.Status, e.Message, e.Code)
}

// VerifyClient talks to the Twilio Verify v2 API for a single service.
type VerifyClient struct {
	client     *resty.Client
	serviceSID string
}

func NewVerifyClient(cfg *config.Config) *VerifyClient {
	c := resty.New().
		SetBaseURL(cfg.TwilioBaseURL).
		SetBasicAuth(cfg.TwilioAccountSID, cfg.TwilioAuthToken).
		SetTimeout(cfg.ProviderTimeout).
		SetHeader("Accept", "application/json")

	return &VerifyClient{client: c, serviceSID: cfg.TwilioServiceSID}
}

// CreateVerification asks Twilio to send a code to the given phone number.
func (c *VerifyClient) CreateVerification(ctx context.Context, to string) (*domain.Dispatch, error) {
	var out domain.Dispatch
	var apiErr APIError
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("serviceSid", c.serviceSID).
		SetFormData(map[string]string{"To": to, "Channel": domain.ChannelSMS}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/Services/{serviceSid}/Verifications")
	if err != nil {
		return nil, transportError("create verification", err)
	}
	if resp.IsError() {
		return nil, statusError("create verification", resp.StatusCode(), &apiErr)
	}
	out.Raw = json.RawMessage(resp.Body())
	return &out, nil
}

// CheckVerification submits code for the pending verification of to. A
// verification Twilio no longer knows about (expired, approved or never
// created) is reported as not valid.
func (c *VerifyClient) CheckVerification(ctx context.Context, to, code string) (*domain.VerificationCheck, error) {
	var out domain.VerificationCheck
	var apiErr APIError
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("serviceSid", c.serviceSID).
		SetFormData(map[string]string{"To": to, "Code": code}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/Services/{serviceSid}/VerificationCheck")
	if err != nil {
		return nil, transportError("check verification", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return &domain.VerificationCheck{To: to, Channel: domain.ChannelSMS, Status: "expired"}, nil
	}
	if resp.IsError() {
		return nil, statusError("check verification", resp.StatusCode(), &apiErr)
	}
	return &out, nil
}

func transportError(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("twilio %s: %w: %w", op, domain.ErrProviderTimeout, err)
	}
	return fmt.Errorf("twilio %s: %w", op, err)
}

func statusError(op string, status int, apiErr *APIError) error {
	if apiErr.Status == 0 {
		apiErr.Status = status
	}
	// Only an upstream rate limit is transient. 5xx faults are not retried.
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("twilio %s: %w: %w", op, domain.ErrProviderThrottled, apiErr)
	}
	return fmt.Errorf("twilio %s: %w: %w", op, domain.ErrProviderRejected, apiErr)
}
