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

// MongoMessages implements MessageStore on the messages collection. One flat
// document per message; status transitions are guarded in the update filters so
// they are first-write-wins at the database, not just in process.
type MongoMessages struct {
	col *mongo.Collection
}

func NewMongoMessages(db *mongo.Database) *MongoMessages {
	return &MongoMessages{col: db.Collection("messages")}
}

// EnsureIndexes configures the conversation and unread-count indexes.
func (s *MongoMessages) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "sender", Value: 1},
				{Key: "receiver", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_conversation"),
		},
		{
			Keys: bson.D{
				{Key: "receiver", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index().SetName("idx_receiver_status"),
		},
		{
			Keys: bson.D{
				{Key: "group", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_group_created"),
		},
	})
	return err
}

func (s *MongoMessages) CreateMessage(ctx context.Context, m *models.Message) error {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	if m.Status == "" {
		m.Status = models.MessageSent
	}

	res, err := s.col.InsertOne(ctx, m)
	if err != nil {
		return apperr.Wrap(apperr.Transient, "persist message", err)
	}
	m.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *MongoMessages) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var m models.Message
	err = s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.New(apperr.NotFound, "message not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, "load message", err)
	}
	return &m, nil
}

func (s *MongoMessages) MarkRead(ctx context.Context, ids []string, readerID string, at time.Time) ([]models.Message, error) {
	reader, err := parseID(readerID)
	if err != nil {
		return nil, err
	}

	var oids []primitive.ObjectID
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return nil, nil
	}

	filter := bson.M{
		"_id":      bson.M{"$in": oids},
		"receiver": reader,
		"status":   bson.M{"$ne": models.MessageRead},
	}

	// Snapshot the matching set first so the caller learns which messages
	// actually transition; the update below reuses the same guard so a
	// concurrent reader cannot regress anything.
	cur, err := s.col.Find(ctx, filter)
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, "mark read", err)
	}
	var matched []models.Message
	if err := cur.All(ctx, &matched); err != nil {
		return nil, apperr.Wrap(apperr.Transient, "mark read", err)
	}
	if len(matched) == 0 {
		return nil, nil
	}

	_, err = s.col.UpdateMany(ctx, filter, bson.M{
		"$set": bson.M{
			"status":     models.MessageRead,
			"read_at":    at.UTC(),
			"updated_at": at.UTC(),
		},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, "mark read", err)
	}

	for i := range matched {
		matched[i].Status = models.MessageRead
		t := at.UTC()
		matched[i].ReadAt = &t
	}
	return matched, nil
}

func (s *MongoMessages) SetDelivered(ctx context.Context, id string, at time.Time) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	_, err = s.col.UpdateOne(ctx, bson.M{
		"_id":    oid,
		"status": models.MessageSent,
	}, bson.M{
		"$set": bson.M{
			"status":       models.MessageDelivered,
			"delivered_at": at.UTC(),
			"updated_at":   at.UTC(),
		},
	})
	return apperr.Wrap(apperr.Transient, "set delivered", err)
}

func (s *MongoMessages) ReplaceContent(ctx context.Context, id, content string, editedAt time.Time) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	_, err = s.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{
			"content":    content,
			"is_edited":  true,
			"edited_at":  editedAt.UTC(),
			"updated_at": editedAt.UTC(),
		},
	})
	return apperr.Wrap(apperr.Transient, "replace content", err)
}

func (s *MongoMessages) SetReaction(ctx context.Context, id, userID, emoji string, at time.Time) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	uid, err := parseID(userID)
	if err != nil {
		return err
	}

	// Pull-then-push keeps at most one reaction per user.
	_, err = s.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$pull": bson.M{"reactions": bson.M{"user": uid}},
	})
	if err != nil {
		return apperr.Wrap(apperr.Transient, "clear reaction", err)
	}
	_, err = s.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$push": bson.M{"reactions": models.Reaction{User: uid, Emoji: emoji, CreatedAt: at.UTC()}},
		"$set":  bson.M{"updated_at": at.UTC()},
	})
	return apperr.Wrap(apperr.Transient, "set reaction", err)
}

func (s *MongoMessages) MarkDeletedFor(ctx context.Context, id, userID string, at time.Time) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	uid, err := parseID(userID)
	if err != nil {
		return err
	}

	// The deleted_for guard makes repeated calls no-ops.
	_, err = s.col.UpdateOne(ctx, bson.M{
		"_id":              oid,
		"deleted_for.user": bson.M{"$ne": uid},
	}, bson.M{
		"$push": bson.M{"deleted_for": models.Deletion{User: uid, DeletedAt: at.UTC()}},
	})
	return apperr.Wrap(apperr.Transient, "delete for user", err)
}

func (s *MongoMessages) MarkDeletedForEveryone(ctx context.Context, id string, at time.Time) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	_, err = s.col.UpdateOne(ctx, bson.M{
		"_id":                     oid,
		"is_deleted_for_everyone": false,
	}, bson.M{
		"$set": bson.M{
			"is_deleted_for_everyone": true,
			"content":                 models.Tombstone,
			"is_encrypted":            false,
			"deleted_at":              at.UTC(),
			"updated_at":              at.UTC(),
		},
	})
	return apperr.Wrap(apperr.Transient, "delete for everyone", err)
}

func (s *MongoMessages) Conversation(ctx context.Context, viewerID, otherID string, before *time.Time, limit int64) ([]models.Message, error) {
	viewer, err := parseID(viewerID)
	if err != nil {
		return nil, err
	}
	other, err := parseID(otherID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	filter := bson.M{
		"$or": bson.A{
			bson.M{"sender": viewer, "receiver": other},
			bson.M{"sender": other, "receiver": viewer},
		},
		"is_deleted_for_everyone": false,
		"deleted_for.user":        bson.M{"$ne": viewer},
	}
	if before != nil {
		filter["created_at"] = bson.M{"$lt": before.UTC()}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, "load conversation", err)
	}
	var msgs []models.Message
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, apperr.Wrap(apperr.Transient, "load conversation", err)
	}
	return msgs, nil
}

func (s *MongoMessages) UnreadCounts(ctx context.Context, receiverID string) (map[string]int64, error) {
	receiver, err := parseID(receiverID)
	if err != nil {
		return nil, err
	}

	cur, err := s.col.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"receiver":                receiver,
			"status":                  bson.M{"$in": bson.A{models.MessageSent, models.MessageDelivered}},
			"is_deleted_for_everyone": false,
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$sender",
			"count": bson.M{"$sum": 1},
		}}},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, "unread counts", err)
	}

	var rows []struct {
		Sender primitive.ObjectID `bson:"_id"`
		Count  int64              `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, apperr.Wrap(apperr.Transient, "unread counts", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Sender.Hex()] = r.Count
	}
	return counts, nil
}
