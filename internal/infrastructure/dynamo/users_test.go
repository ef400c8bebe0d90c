package dynamo

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-otp-onboarding/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI records transactional writes and serves canned reads. Methods the
// tests do not stub panic through the nil embedded interface.
type fakeAPI struct {
	API
	item        map[string]types.AttributeValue
	items       []map[string]types.AttributeValue
	transactErr error
	updateErr   error
	transacts   []*dynamodb.TransactWriteItemsInput
	updates     []*dynamodb.UpdateItemInput
}

func (f *fakeAPI) GetItem(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.item}, nil
}

func (f *fakeAPI) Query(_ context.Context, _ *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return &dynamodb.QueryOutput{Items: f.items}, nil
}

func (f *fakeAPI) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.transacts = append(f.transacts, in)
	return &dynamodb.TransactWriteItemsOutput{}, f.transactErr
}

func (f *fakeAPI) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updates = append(f.updates, in)
	return &dynamodb.UpdateItemOutput{}, f.updateErr
}

func marshalUser(t *testing.T, u domain.User) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(u)
	require.NoError(t, err)
	return item
}

func conditionFailedAt(n, i int) error {
	reasons := make([]types.CancellationReason, n)
	for j := range reasons {
		reasons[j] = types.CancellationReason{Code: aws.String("None")}
	}
	reasons[i].Code = aws.String("ConditionalCheckFailed")
	return &types.TransactionCanceledException{CancellationReasons: reasons}
}

func TestCreate_WritesGuardAndUser(t *testing.T) {
	api := &fakeAPI{}
	repo := NewUserRepo(api, "users", "uniques")

	err := repo.Create(context.Background(), &domain.User{UserID: "u1", PhoneNumber: "+15551234567"})
	require.NoError(t, err)
	require.Len(t, api.transacts, 1)
	items := api.transacts[0].TransactItems
	require.Len(t, items, 2)
	assert.Equal(t, "uniques", *items[0].Put.TableName)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "phone#+15551234567"}, items[0].Put.Item["unique_key"])
	assert.Equal(t, "users", *items[1].Put.TableName)
	_, hasEmail := items[1].Put.Item["email"]
	assert.False(t, hasEmail)
}

func TestCreate_DuplicatePhone_Conflict(t *testing.T) {
	api := &fakeAPI{transactErr: conditionFailedAt(2, 0)}
	repo := NewUserRepo(api, "users", "uniques")

	err := repo.Create(context.Background(), &domain.User{UserID: "u1", PhoneNumber: "+15551234567"})
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestGetByID_NotFound(t *testing.T) {
	repo := NewUserRepo(&fakeAPI{}, "users", "uniques")
	_, err := repo.GetByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSetEmail_FirstEmail(t *testing.T) {
	api := &fakeAPI{item: marshalUser(t, domain.User{UserID: "u1", PhoneNumber: "+15551234567"})}
	repo := NewUserRepo(api, "users", "uniques")

	require.NoError(t, repo.SetEmail(context.Background(), "u1", "a@b.com"))
	require.Len(t, api.transacts, 1)
	items := api.transacts[0].TransactItems
	require.Len(t, items, 2, "no previous email guard to release")
	assert.Equal(t, &types.AttributeValueMemberS{Value: "email#a@b.com"}, items[0].Put.Item["unique_key"])
	require.NotNil(t, items[1].Update)
	assert.Equal(t, "attribute_exists(user_id) AND attribute_not_exists(#cur)", *items[1].Update.ConditionExpression)
	assert.Equal(t, "email", items[1].Update.ExpressionAttributeNames["#cur"])
}

func TestSetEmail_ReleasesPreviousGuard(t *testing.T) {
	old := "old@b.com"
	api := &fakeAPI{item: marshalUser(t, domain.User{UserID: "u1", PhoneNumber: "+1555", Email: &old})}
	repo := NewUserRepo(api, "users", "uniques")

	require.NoError(t, repo.SetEmail(context.Background(), "u1", "new@b.com"))
	items := api.transacts[0].TransactItems
	require.Len(t, items, 3)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "email#old@b.com"}, items[2].Delete.Key["unique_key"])

	upd := items[1].Update
	assert.Equal(t, "attribute_exists(user_id) AND #cur = :cur", *upd.ConditionExpression)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "old@b.com"}, upd.ExpressionAttributeValues[":cur"])
}

func TestSetEmail_ConcurrentChange_Conflict(t *testing.T) {
	old := "old@b.com"
	api := &fakeAPI{
		item:        marshalUser(t, domain.User{UserID: "u1", Email: &old}),
		transactErr: conditionFailedAt(3, 1),
	}
	repo := NewUserRepo(api, "users", "uniques")

	err := repo.SetEmail(context.Background(), "u1", "new@b.com")
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestSetEmail_SameEmailIsNoop(t *testing.T) {
	cur := "a@b.com"
	api := &fakeAPI{item: marshalUser(t, domain.User{UserID: "u1", Email: &cur})}
	repo := NewUserRepo(api, "users", "uniques")

	require.NoError(t, repo.SetEmail(context.Background(), "u1", "a@b.com"))
	assert.Empty(t, api.transacts)
}

func TestSetEmail_TakenEmail_Conflict(t *testing.T) {
	api := &fakeAPI{
		item:        marshalUser(t, domain.User{UserID: "u1"}),
		transactErr: conditionFailedAt(2, 0),
	}
	repo := NewUserRepo(api, "users", "uniques")

	err := repo.SetEmail(context.Background(), "u1", "taken@b.com")
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestSetEmail_UnknownUser_NotFound(t *testing.T) {
	repo := NewUserRepo(&fakeAPI{}, "users", "uniques")
	err := repo.SetEmail(context.Background(), "missing", "a@b.com")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSetName_NoMatch_NotFound(t *testing.T) {
	api := &fakeAPI{}
	repo := NewUserRepo(api, "users", "uniques")

	err := repo.SetName(context.Background(), "+15551234567", "Ada", "Lovelace")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Empty(t, api.updates)
}

func TestSetName_UpdatesBothFields(t *testing.T) {
	api := &fakeAPI{items: []map[string]types.AttributeValue{
		marshalUser(t, domain.User{UserID: "u1", PhoneNumber: "+15551234567"}),
	}}
	repo := NewUserRepo(api, "users", "uniques")

	require.NoError(t, repo.SetName(context.Background(), "+15551234567", "Ada", "Lovelace"))
	require.Len(t, api.updates, 1)
	names := api.updates[0].ExpressionAttributeNames
	assert.Equal(t, "first_name", names["#f0"])
	assert.Equal(t, "last_name", names["#f1"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "u1"}, api.updates[0].Key["user_id"])
}
