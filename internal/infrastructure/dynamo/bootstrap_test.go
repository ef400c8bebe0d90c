package dynamo

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-otp-onboarding/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdmin struct {
	created  []string
	ttl      []string
	failWith map[string]error
}

func (f *fakeAdmin) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	name := aws.ToString(in.TableName)
	if err := f.failWith[name]; err != nil {
		return nil, err
	}
	f.created = append(f.created, name)
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeAdmin) UpdateTimeToLive(_ context.Context, in *dynamodb.UpdateTimeToLiveInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error) {
	f.ttl = append(f.ttl, aws.ToString(in.TimeToLiveSpecification.AttributeName))
	return &dynamodb.UpdateTimeToLiveOutput{}, nil
}

var testTables = config.DynamoTables{Users: "users", UserUniques: "uniques", OTPChallenges: "challenges"}

func TestBootstrap_CreatesAllTables(t *testing.T) {
	admin := &fakeAdmin{}
	require.NoError(t, Bootstrap(context.Background(), admin, testTables))
	assert.Equal(t, []string{"users", "uniques", "challenges"}, admin.created)
	assert.Equal(t, []string{"expires_at"}, admin.ttl)
}

func TestBootstrap_ExistingTablesAreFine(t *testing.T) {
	admin := &fakeAdmin{failWith: map[string]error{"users": &types.ResourceInUseException{}}}
	require.NoError(t, Bootstrap(context.Background(), admin, testTables))
	assert.Equal(t, []string{"uniques", "challenges"}, admin.created)
}

func TestBootstrap_ReportsRealFailures(t *testing.T) {
	admin := &fakeAdmin{failWith: map[string]error{"uniques": errors.New("access denied")}}
	err := Bootstrap(context.Background(), admin, testTables)
	assert.ErrorContains(t, err, "create table uniques")
}
