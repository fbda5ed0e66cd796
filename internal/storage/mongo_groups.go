package storage

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/muraselchat/murasel-backend/internal/models"
	"github.com/muraselchat/murasel-backend/pkg/apperr"
)

// MongoGroups implements GroupStore on the groups collection.
type MongoGroups struct {
	col *mongo.Collection
}

func NewMongoGroups(db *mongo.Database) *MongoGroups {
	return &MongoGroups{col: db.Collection("groups")}
}

// EnsureIndexes configures the membership index used at fanout time.
func (s *MongoGroups) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "members.user", Value: 1}},
		Options: options.Index().SetName("idx_members_user"),
	})
	return err
}

func (s *MongoGroups) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var g models.Group
	err = s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.New(apperr.NotFound, "group not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, "load group", err)
	}
	return &g, nil
}
