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

type messageLogCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

// LoggedMessage is one group message retained for summarization.
type LoggedMessage struct {
	ChatID int64     `bson:"chat_id"`
	Sender string    `bson:"sender"`
	Text   string    `bson:"text"`
	SentAt time.Time `bson:"sent_at"`
}

// MessageLog records group text messages and serves the recent window the
// summarizer reads from.
type MessageLog struct {
	messages messageLogCollection
	logger   *logrus.Entry
}

// NewMessageLog constructs a MessageLog for the provided collection.
func NewMessageLog(messages messageLogCollection, logger *logrus.Entry) *MessageLog {
	if logger == nil {
		logger = logging.Logger()
	}

	return &MessageLog{
		messages: messages,
		logger:   logger,
	}
}

// Record stores one group message. Empty texts are skipped silently so media
// updates do not pollute the log.
func (l *MessageLog) Record(ctx context.Context, chatID int64, sender, text string, sentAt time.Time) error {
	if l == nil || l.messages == nil {
		return errors.New("message log is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if chatID == 0 {
		return errors.New("chat id is required")
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	doc := LoggedMessage{
		ChatID: chatID,
		Sender: strings.TrimSpace(sender),
		Text:   text,
		SentAt: sentAt.UTC().Truncate(time.Millisecond),
	}

	if _, err := l.messages.InsertOne(ctx, doc); err != nil {
		return &domain.PersistenceError{Op: "record message", Err: err}
	}

	return nil
}

// Since returns the messages sent in chatID at or after the cutoff, oldest
// first.
func (l *MessageLog) Since(ctx context.Context, chatID int64, cutoff time.Time) ([]LoggedMessage, error) {
	if l == nil || l.messages == nil {
		return nil, errors.New("message log is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	filter := bson.M{
		"chat_id": chatID,
		"sent_at": bson.M{"$gte": cutoff.UTC()},
	}

	cursor, err := l.messages.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "sent_at", Value: 1}}))
	if err != nil {
		return nil, &domain.PersistenceError{Op: "find messages", Err: err}
	}
	defer cursor.Close(ctx)

	var messages []LoggedMessage
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, &domain.PersistenceError{Op: "decode messages", Err: err}
	}

	return messages, nil
}

// Recent returns the last limit messages sent in chatID, oldest first.
func (l *MessageLog) Recent(ctx context.Context, chatID int64, limit int) ([]LoggedMessage, error) {
	if l == nil || l.messages == nil {
		return nil, errors.New("message log is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if limit <= 0 {
		return nil, nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "sent_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := l.messages.Find(ctx, bson.M{"chat_id": chatID}, opts)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "find messages", Err: err}
	}
	defer cursor.Close(ctx)

	var messages []LoggedMessage
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, &domain.PersistenceError{Op: "decode messages", Err: err}
	}

	// The query returns newest first; callers want chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// Prune deletes messages older than the cutoff across all chats and reports
// how many were removed.
func (l *MessageLog) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if l == nil || l.messages == nil {
		return 0, errors.New("message log is not initialized")
	}
	if ctx == nil {
		return 0, errors.New("context is required")
	}

	result, err := l.messages.DeleteMany(ctx, bson.M{
		"sent_at": bson.M{"$lt": cutoff.UTC()},
	})
	if err != nil {
		return 0, &domain.PersistenceError{Op: "prune messages", Err: err}
	}

	removed := int64(0)
	if result != nil {
		removed = result.DeletedCount
	}
	if removed > 0 {
		l.logger.WithFields(logging.Fields{
			"event":   "message_log_pruned",
			"removed": removed,
		}).Debug("pruned old messages")
	}

	return removed, nil
}
