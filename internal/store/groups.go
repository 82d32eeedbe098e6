package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tg_resumo_bot/internal/domain"
	"tg_resumo_bot/internal/logging"
)

type groupCollection interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
}

type groupDoc struct {
	ChatID     int64     `bson:"chat_id"`
	Title      string    `bson:"title"`
	JoinedAt   time.Time `bson:"joined_at"`
	LastSeenAt time.Time `bson:"last_seen_at"`
}

// GroupRegistry persists the group chats the bot participates in and answers
// title to chat ID lookups for the summary scheduler.
type GroupRegistry struct {
	groups groupCollection
	logger *logrus.Entry
}

// NewGroupRegistry constructs a GroupRegistry for the provided groups
// collection.
func NewGroupRegistry(groups groupCollection, logger *logrus.Entry) *GroupRegistry {
	if logger == nil {
		logger = logging.Logger()
	}

	return &GroupRegistry{
		groups: groups,
		logger: logger,
	}
}

// EnsureGroup upserts the group record with the provided chat ID and updates
// last_seen_at on every call. It reports whether the record was created.
func (r *GroupRegistry) EnsureGroup(ctx context.Context, chatID int64, title string) (bool, error) {
	if r == nil || r.groups == nil {
		return false, errors.New("group registry is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if chatID == 0 {
		return false, errors.New("chat id is required")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	updateTitle := strings.TrimSpace(title)

	setFields := bson.M{"last_seen_at": now}
	if updateTitle != "" {
		setFields["title"] = updateTitle
	}

	update := bson.M{
		"$set": setFields,
		"$setOnInsert": bson.M{
			"chat_id":   chatID,
			"joined_at": now,
		},
	}

	result, err := r.groups.UpdateOne(ctx,
		bson.M{"chat_id": chatID},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, &domain.PersistenceError{Op: "ensure group", Err: err}
	}

	created := result != nil && result.UpsertedCount > 0
	if created {
		r.logger.WithFields(logging.Fields{
			"event":   "group_registered",
			"chat_id": chatID,
			"title":   updateTitle,
		}).Info("registered new group")
		return true, nil
	}

	r.logger.WithFields(logging.Fields{
		"event":   "group_seen",
		"chat_id": chatID,
		"title":   updateTitle,
	}).Debug("updated group last seen")

	return false, nil
}

// ChatIDByTitle resolves a group title to its chat ID. It returns false when
// no group with that title has been seen.
func (r *GroupRegistry) ChatIDByTitle(ctx context.Context, title string) (int64, bool, error) {
	if r == nil || r.groups == nil {
		return 0, false, errors.New("group registry is not initialized")
	}
	if ctx == nil {
		return 0, false, errors.New("context is required")
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return 0, false, errors.New("title is required")
	}

	var doc groupDoc
	err := r.groups.FindOne(ctx, bson.M{"title": title}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &domain.PersistenceError{Op: "lookup group by title", Err: err}
	}

	return doc.ChatID, true, nil
}
