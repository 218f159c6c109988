package users

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository defines persistence operations for sign-up users
type Repository interface {
	// FindByEmail returns (nil, nil) when no user exists for the email.
	FindByEmail(ctx context.Context, email string) (*User, error)
	// FindBySession returns (nil, nil) when no user holds the session identifier.
	FindBySession(ctx context.Context, session string) (*User, error)
	// Upsert atomically creates or refreshes the row keyed by u.Email and
	// returns the stored document. MoreInfo is never modified here.
	Upsert(ctx context.Context, u *User) (*User, error)
	// UpdateMoreInfo sets the supplementary form field on the user's row.
	UpdateMoreInfo(ctx context.Context, email, moreInfo string) (*User, error)
}

// MongoRepository implements Repository using MongoDB
type MongoRepository struct {
	col *mongo.Collection
}

// NewMongoRepository creates a new repository for the given collection
func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

// EnsureIndexes creates the unique email index (makes concurrent first-logins
// for the same email safe by rejection rather than duplication) and a lookup
// index on session.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "session", Value: 1}},
		},
	})
	return err
}

func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoRepository) FindBySession(ctx context.Context, session string) (*User, error) {
	return r.findOne(ctx, bson.M{"session": session})
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var u User
	if err := r.col.FindOne(ctx, filter).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *MongoRepository) Upsert(ctx context.Context, u *User) (*User, error) {
	now := time.Now().UTC()
	u.UpdatedAt = now

	filter := bson.M{"email": u.Email}
	update := bson.M{
		"$set": bson.M{
			"firstName":      u.FirstName,
			"lastName":       u.LastName,
			"xeroUserId":     u.XeroUserID,
			"decodedIdToken": u.DecodedIDToken,
			"tokenSet":       u.TokenSet,
			"activeTenant":   u.ActiveTenant,
			"session":        u.Session,
			"updatedAt":      u.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"createdAt": now,
			"moreInfo":  "",
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var updated User
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if mongo.IsDuplicateKeyError(err) {
		// two first-logins raced on the unique email index; the row exists
		// now, so a plain update succeeds
		err = r.col.FindOneAndUpdate(ctx, filter, update,
			options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *MongoRepository) UpdateMoreInfo(ctx context.Context, email, moreInfo string) (*User, error) {
	update := bson.M{"$set": bson.M{
		"moreInfo":  moreInfo,
		"updatedAt": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated User
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"email": email}, update, opts).Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &updated, nil
}
