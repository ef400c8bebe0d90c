package mongodb

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/go-otp-onboarding/internal/domain"
	"github.com/go-otp-onboarding/internal/pkg/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// testDB connects to TEST_MONGO_URI and returns a throwaway database.
func testDB(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, uri)
	require.NoError(t, err)
	db := client.Database("otp_test_" + id.New())
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	require.NoError(t, Bootstrap(ctx, db))
	return db
}

func newUser(phone string) *domain.User {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.User{UserID: id.New(), PhoneNumber: phone, CreatedAt: now}
}

func TestUserRepo_CreateAndLookup(t *testing.T) {
	repo := NewUserRepo(testDB(t))
	ctx := context.Background()
	u := newUser("+15550000001")
	require.NoError(t, repo.Create(ctx, u))

	got, err := repo.GetByPhone(ctx, u.PhoneNumber)
	require.NoError(t, err)
	assert.Equal(t, u.UserID, got.UserID)
	assert.Nil(t, got.Email)

	got, err = repo.GetByID(ctx, u.UserID)
	require.NoError(t, err)
	assert.Equal(t, u.PhoneNumber, got.PhoneNumber)

	err = repo.Create(ctx, newUser(u.PhoneNumber))
	assert.True(t, errors.Is(err, domain.ErrConflict))

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestUserRepo_SetEmail(t *testing.T) {
	repo := NewUserRepo(testDB(t))
	ctx := context.Background()
	a, b := newUser("+15550000001"), newUser("+15550000002")
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	require.NoError(t, repo.SetEmail(ctx, a.UserID, "a@example.com"))
	require.NoError(t, repo.SetEmail(ctx, a.UserID, "a@example.com"), "same email is idempotent")

	err := repo.SetEmail(ctx, b.UserID, "a@example.com")
	assert.True(t, errors.Is(err, domain.ErrConflict))

	err = repo.SetEmail(ctx, "missing", "c@example.com")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestUserRepo_SetName(t *testing.T) {
	repo := NewUserRepo(testDB(t))
	ctx := context.Background()
	u := newUser("+15550000001")
	require.NoError(t, repo.Create(ctx, u))

	require.NoError(t, repo.SetName(ctx, u.PhoneNumber, "Ada", "Lovelace"))
	got, err := repo.GetByID(ctx, u.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.FirstName)
	assert.Equal(t, "Lovelace", got.LastName)

	err = repo.SetName(ctx, "+15559999999", "X", "Y")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestUserRepo_UnsetNullEmails(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepo(db)
	ctx := context.Background()
	_, err := db.Collection(usersCollection).InsertMany(ctx, []interface{}{
		bson.M{"_id": "u1", "phone_number": "+15550000001", "email": nil},
	})
	require.NoError(t, err)

	require.NoError(t, repo.UnsetNullEmails(ctx))
	n, err := db.Collection(usersCollection).CountDocuments(ctx, bson.M{"email": bson.M{"$exists": true}})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChallengeRepo_Lifecycle(t *testing.T) {
	repo := NewChallengeRepo(testDB(t))
	ctx := context.Background()
	exp := time.Now().Add(10 * time.Minute)
	c := &domain.OTPChallenge{
		PhoneNumber: "+15550000001",
		Channel:     domain.ChannelSMS,
		SID:         "VE1",
		CodeHash:    "hash",
		ExpiresAt:   exp.Unix(),
		ExpireAt:    exp,
	}
	require.NoError(t, repo.Put(ctx, c))

	n, err := repo.IncrementChecks(ctx, c.PhoneNumber, c.Channel, "VE1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = repo.IncrementChecks(ctx, c.PhoneNumber, c.Channel, "stale")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	c.SID = "VE2"
	c.Checks = 0
	require.NoError(t, repo.Put(ctx, c))
	got, err := repo.Get(ctx, c.PhoneNumber, c.Channel)
	require.NoError(t, err)
	assert.Equal(t, "VE2", got.SID)
	assert.Zero(t, got.Checks)

	require.NoError(t, repo.Delete(ctx, c.PhoneNumber, c.Channel, "VE1"))
	_, err = repo.Get(ctx, c.PhoneNumber, c.Channel)
	require.NoError(t, err, "deleting a stale sid leaves the newer challenge")

	require.NoError(t, repo.Delete(ctx, c.PhoneNumber, c.Channel, "VE2"))
	_, err = repo.Get(ctx, c.PhoneNumber, c.Channel)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
