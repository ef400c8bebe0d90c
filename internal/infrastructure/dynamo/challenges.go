package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-otp-onboarding/internal/domain"
)

// ChallengeRepo manages pending OTP challenges.
// PK: phone_number, SK: channel. Items expire through the expires_at TTL.
type ChallengeRepo struct {
	client    API
	tableName string
}

func NewChallengeRepo(client API, tableName string) *ChallengeRepo {
	return &ChallengeRepo{client: client, tableName: tableName}
}

// Put replaces any pending challenge for the same phone and channel.
func (r *ChallengeRepo) Put(ctx context.Context, c *domain.OTPChallenge) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *ChallengeRepo) Get(ctx context.Context, phone, channel string) (*domain.OTPChallenge, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            compositeKey("phone_number", phone, "channel", channel),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("challenge not found: %w", domain.ErrNotFound)
	}
	var c domain.OTPChallenge
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// IncrementChecks records a failed check of the challenge identified by sid
// and returns the new count. A replaced or deleted challenge yields
// domain.ErrNotFound.
func (r *ChallengeRepo) IncrementChecks(ctx context.Context, phone, channel, sid string) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey("phone_number", phone, "channel", channel),
		UpdateExpression:    aws.String("ADD checks :one"),
		ConditionExpression: aws.String("sid = :sid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":sid": &types.AttributeValueMemberS{Value: sid},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if isConditionFailed(err) {
		return 0, fmt.Errorf("challenge replaced: %w", domain.ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	var updated struct {
		Checks int `dynamodbav:"checks"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		return 0, err
	}
	return updated.Checks, nil
}

// Delete removes the challenge identified by sid, leaving a newer one alone.
func (r *ChallengeRepo) Delete(ctx context.Context, phone, channel, sid string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey("phone_number", phone, "channel", channel),
		ConditionExpression: aws.String("sid = :sid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: sid},
		},
	})
	if isConditionFailed(err) {
		return nil
	}
	return err
}
