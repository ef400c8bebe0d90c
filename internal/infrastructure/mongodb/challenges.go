package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-otp-onboarding/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const challengesCollection = "otp_challenges"

// ChallengeRepo manages pending OTP challenges. Documents are removed by a
// TTL index on expire_at.
type ChallengeRepo struct {
	coll *mongo.Collection
}

func NewChallengeRepo(db *mongo.Database) *ChallengeRepo {
	return &ChallengeRepo{coll: db.Collection(challengesCollection)}
}

func (r *ChallengeRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "phone_number", Value: 1}, {Key: "channel", Value: 1}},
			Options: options.Index().SetName("phone_channel_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expire_at", Value: 1}},
			Options: options.Index().SetName("expire_at_ttl").SetExpireAfterSeconds(0),
		},
	})
	if err != nil {
		return fmt.Errorf("create challenge indexes: %w", err)
	}
	return nil
}

func key(phone, channel string) bson.M {
	return bson.M{"phone_number": phone, "channel": channel}
}

// Put replaces any pending challenge for the same phone and channel.
func (r *ChallengeRepo) Put(ctx context.Context, c *domain.OTPChallenge) error {
	_, err := r.coll.ReplaceOne(ctx, key(c.PhoneNumber, c.Channel), c, options.Replace().SetUpsert(true))
	return err
}

func (r *ChallengeRepo) Get(ctx context.Context, phone, channel string) (*domain.OTPChallenge, error) {
	var c domain.OTPChallenge
	err := r.coll.FindOne(ctx, key(phone, channel)).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("challenge not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// IncrementChecks records a failed check of the challenge identified by sid
// and returns the new count.
func (r *ChallengeRepo) IncrementChecks(ctx context.Context, phone, channel, sid string) (int, error) {
	filter := key(phone, channel)
	filter["sid"] = sid
	var c domain.OTPChallenge
	err := r.coll.FindOneAndUpdate(ctx, filter,
		bson.M{"$inc": bson.M{"checks": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("challenge replaced: %w", domain.ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	return c.Checks, nil
}

// Delete removes the challenge identified by sid, leaving a newer one alone.
func (r *ChallengeRepo) Delete(ctx context.Context, phone, channel, sid string) error {
	filter := key(phone, channel)
	filter["sid"] = sid
	_, err := r.coll.DeleteOne(ctx, filter)
	return err
}
