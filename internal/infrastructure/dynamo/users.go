package dynamo

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-otp-onboarding/internal/domain"
)

const phoneIndex = "phone_number-index"

// UserRepo provides typed DynamoDB operations for the users table.
// Uniqueness of phone numbers and emails is enforced with guard items in a
// second table, written in the same transaction as the user item.
type UserRepo struct {
	client       API
	tableName    string
	uniquesTable string
	now          func() time.Time
}

func NewUserRepo(client API, tableName, uniquesTable string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName, uniquesTable: uniquesTable, now: time.Now}
}

func phoneGuard(phone string) string { return "phone#" + phone }
func emailGuard(email string) string { return "email#" + email }

func (r *UserRepo) guardItem(key, userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"unique_key": &types.AttributeValueMemberS{Value: key},
		"user_id":    &types.AttributeValueMemberS{Value: userID},
	}
}

func (r *UserRepo) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey("user_id", userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(phoneIndex),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": "phone_number"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: phone}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("user with phone %s: %w", phone, domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Items[0], &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create stores a new user. A phone number that already has a record yields
// domain.ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.uniquesTable),
				Item:                r.guardItem(phoneGuard(u.PhoneNumber), u.UserID),
				ConditionExpression: aws.String("attribute_not_exists(unique_key)"),
			}},
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(user_id)"),
			}},
		},
	})
	if failed, ok := cancelledAt(err); ok && len(failed) > 0 {
		return fmt.Errorf("phone number already registered: %w", domain.ErrConflict)
	}
	return err
}

// SetEmail claims the email guard for userID, writes the email and releases
// the guard of the previous email, atomically.
func (r *UserRepo) SetEmail(ctx context.Context, userID, email string) error {
	u, err := r.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.Email != nil && *u.Email == email {
		return nil
	}
	ue, err := buildUpdateExpr(map[string]interface{}{
		"email":      email,
		"updated_at": r.now().UTC(),
	})
	if err != nil {
		return err
	}
	// The update only lands if the email is still the one read above, so a
	// concurrent SetEmail cannot strand a guard.
	ue.Names["#cur"] = "email"
	cond := "attribute_exists(user_id) AND attribute_not_exists(#cur)"
	if u.Email != nil {
		cond = "attribute_exists(user_id) AND #cur = :cur"
		ue.Values[":cur"] = &types.AttributeValueMemberS{Value: *u.Email}
	}
	items := []types.TransactWriteItem{
		{Put: &types.Put{
			TableName:           aws.String(r.uniquesTable),
			Item:                r.guardItem(emailGuard(email), userID),
			ConditionExpression: aws.String("attribute_not_exists(unique_key)"),
		}},
		{Update: &types.Update{
			TableName:                 aws.String(r.tableName),
			Key:                       strKey("user_id", userID),
			UpdateExpression:          aws.String(ue.Expr),
			ExpressionAttributeNames:  ue.Names,
			ExpressionAttributeValues: ue.Values,
			ConditionExpression:       aws.String(cond),
		}},
	}
	if u.Email != nil {
		items = append(items, types.TransactWriteItem{Delete: &types.Delete{
			TableName: aws.String(r.uniquesTable),
			Key:       strKey("unique_key", emailGuard(*u.Email)),
		}})
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if failed, ok := cancelledAt(err); ok {
		switch {
		case slices.Contains(failed, 0):
			return fmt.Errorf("email already in use: %w", domain.ErrConflict)
		case slices.Contains(failed, 1):
			return fmt.Errorf("email of user %s changed concurrently: %w", userID, domain.ErrConflict)
		}
		slog.Warn("email transaction cancelled", "user_id", userID, "err", err)
	}
	return err
}

// SetName updates both name fields of the user holding phone.
func (r *UserRepo) SetName(ctx context.Context, phone, firstName, lastName string) error {
	u, err := r.GetByPhone(ctx, phone)
	if err != nil {
		return err
	}
	ue, err := buildUpdateExpr(map[string]interface{}{
		"first_name": firstName,
		"last_name":  lastName,
		"updated_at": r.now().UTC(),
	})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("user_id", u.UserID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ConditionExpression:       aws.String("attribute_exists(user_id)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("user with phone %s: %w", phone, domain.ErrNotFound)
	}
	return err
}
