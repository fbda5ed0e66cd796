package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/muraselchat/murasel-backend/internal/models"
	"github.com/muraselchat/murasel-backend/pkg/apperr"
)

// MongoUsers implements UserStore on the users collection.
type MongoUsers struct {
	col *mongo.Collection
}

func NewMongoUsers(db *mongo.Database) *MongoUsers {
	return &MongoUsers{col: db.Collection("users")}
}

// EnsureIndexes configures indexes for the users collection.
func (s *MongoUsers) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_username"),
		},
		{
			Keys:    bson.D{{Key: "friends.user", Value: 1}},
			Options: options.Index().SetName("idx_friends_user"),
		},
	})
	return err
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperr.Newf(apperr.NotFound, "invalid id %q", id)
	}
	return oid, nil
}

func (s *MongoUsers) GetUser(ctx context.Context, id string) (*models.User, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var u models.User
	err = s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, "load user", err)
	}
	return &u, nil
}

func (s *MongoUsers) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.col.FindOne(ctx, bson.M{"username": username}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, "load user", err)
	}
	return &u, nil
}

func (s *MongoUsers) CreateUser(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.Status == "" {
		u.Status = models.StatusOffline
	}

	res, err := s.col.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return apperr.New(apperr.InvalidState, "username already taken")
	}
	if err != nil {
		return apperr.Wrap(apperr.Transient, "create user", err)
	}
	u.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *MongoUsers) SetPresence(ctx context.Context, id, status string, lastSeen time.Time) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	_, err = s.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{
			"status":     status,
			"last_seen":  lastSeen.UTC(),
			"updated_at": time.Now().UTC(),
		},
	})
	return apperr.Wrap(apperr.Transient, "persist presence", err)
}

func (s *MongoUsers) GetFriendIDs(ctx context.Context, id string) ([]string, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.AcceptedFriendIDs(), nil
}

func (s *MongoUsers) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	aOID, err := parseID(a)
	if err != nil {
		return false, err
	}
	bOID, err := parseID(b)
	if err != nil {
		return false, err
	}

	n, err := s.col.CountDocuments(ctx, bson.M{"_id": aOID, "blocked_users": bOID})
	if err != nil {
		return false, apperr.Wrap(apperr.Transient, "block check", err)
	}
	return n > 0, nil
}

func (s *MongoUsers) AddFCMToken(ctx context.Context, id, token, device string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	// Drop any stale copy of the same token, then append the fresh one.
	_, err = s.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$pull": bson.M{"fcm_tokens": bson.M{"token": token}},
	})
	if err != nil {
		return apperr.Wrap(apperr.Transient, "refresh fcm token", err)
	}
	_, err = s.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$push": bson.M{"fcm_tokens": models.FCMToken{
			Token:     token,
			Device:    device,
			CreatedAt: time.Now().UTC(),
		}},
	})
	return apperr.Wrap(apperr.Transient, "add fcm token", err)
}

func (s *MongoUsers) IncrementMessagesSent(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	_, err = s.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$inc": bson.M{"stats.messages_sent": 1},
	})
	return apperr.Wrap(apperr.Transient, "bump messages_sent", err)
}
