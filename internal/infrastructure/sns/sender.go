package sns

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"
	"github.com/go-otp-onboarding/internal/domain"
)

// SMSSender sends SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// PublishAPI is the subset of the SNS client used by Sender.
type PublishAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Sender sends transactional SMS messages via AWS SNS.
type Sender struct {
	client PublishAPI
}

// NewSender creates an SNS-backed sender. A non-empty endpoint (LocalStack)
// overrides the service endpoint.
func NewSender(awsCfg aws.Config, endpoint string) *Sender {
	var opts []func(*sns.Options)
	if endpoint != "" {
		opts = append(opts, func(o *sns.Options) { o.BaseEndpoint = aws.String(endpoint) })
	}
	return &Sender{client: sns.NewFromConfig(awsCfg, opts...)}
}

func (s *Sender) SendSMS(ctx context.Context, to, message string) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
		},
	})
	return classify(err)
}

// classify maps SNS failures onto the provider error kinds the dispatcher
// retries on.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("sns publish: %w: %w", domain.ErrProviderTimeout, err)
	}
	var throttled *types.ThrottledException
	if errors.As(err, &throttled) {
		return fmt.Errorf("sns publish: %w: %w", domain.ErrProviderThrottled, err)
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "Throttling", "ThrottlingException", "TooManyRequestsException":
			return fmt.Errorf("sns publish: %w: %w", domain.ErrProviderThrottled, err)
		}
		return fmt.Errorf("sns publish: %w: %w", domain.ErrProviderRejected, err)
	}
	return fmt.Errorf("sns publish: %w", err)
}
