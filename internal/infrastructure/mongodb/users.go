package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-otp-onboarding/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const usersCollection = "users"

// UserRepo stores users in MongoDB. Phone numbers and emails are kept unique
// by indexes created in EnsureIndexes.
type UserRepo struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{coll: db.Collection(usersCollection), now: time.Now}
}

func (r *UserRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "phone_number", Value: 1}},
			Options: options.Index().SetName("phone_number_unique").SetUnique(true),
		},
		{
			// Only string emails take part, so users without one never collide.
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetName("email_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"email": bson.M{"$type": "string"}}),
		},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

// UnsetNullEmails removes email fields explicitly stored as null.
func (r *UserRepo) UnsetNullEmails(ctx context.Context) error {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"email": bson.M{"$type": "null"}},
		bson.M{"$unset": bson.M{"email": ""}},
	)
	if err != nil {
		return fmt.Errorf("unset null emails: %w", err)
	}
	if res.ModifiedCount > 0 {
		slog.Info("cleared null emails", "count", res.ModifiedCount)
	}
	return nil
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var u domain.User
	err := r.coll.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": userID})
}

func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"phone_number": phone})
}

// Create inserts u. A phone number that already has a record yields
// domain.ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	_, err := r.coll.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("phone number already registered: %w", domain.ErrConflict)
	}
	return err
}

func (r *UserRepo) SetEmail(ctx context.Context, userID, email string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"email": email, "updated_at": r.now().UTC()}},
	)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("email already in use: %w", domain.ErrConflict)
	}
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return nil
}

// SetName updates the names of the user owning phone.
func (r *UserRepo) SetName(ctx context.Context, phone, firstName, lastName string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"phone_number": phone},
		bson.M{"$set": bson.M{"first_name": firstName, "last_name": lastName, "updated_at": r.now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user with phone %s: %w", phone, domain.ErrNotFound)
	}
	return nil
}
