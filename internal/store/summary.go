package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tg_resumo_bot/internal/domain"
)

const settingsDocID = "settings"

// SummaryStore is the configuration-store abstraction the wizard, matcher,
// and scheduler depend on. Implementations must make each mutation atomic
// from the caller's viewpoint.
type SummaryStore interface {
	// Enabled reports whether periodic summaries are globally enabled.
	Enabled(ctx context.Context) (bool, error)
	// SetEnabled flips the global flag.
	SetEnabled(ctx context.Context, enabled bool) error
	// Defaults returns the stock group settings offered by the wizard.
	Defaults() domain.GroupSummary
	// Get fetches one group's configuration.
	Get(ctx context.Context, group string) (domain.GroupSummary, bool, error)
	// Set stores one group's configuration.
	Set(ctx context.Context, group string, cfg domain.GroupSummary) error
	// Delete removes one group's configuration.
	Delete(ctx context.Context, group string) error
	// GroupNames lists configured group names in stable (ascending) order.
	GroupNames(ctx context.Context) ([]string, error)
	// Save flushes pending state. Mutations on the Mongo implementation are
	// already durable, so Save exists for callers that batch on other
	// backends.
	Save(ctx context.Context) error
}

type summaryGroupDoc struct {
	GroupName string              `bson:"group_name"`
	Config    domain.GroupSummary `bson:"config"`
	UpdatedAt time.Time           `bson:"updated_at"`
}

type summarySettingsDoc struct {
	ID      string `bson:"_id"`
	Enabled bool   `bson:"enabled"`
}

type summaryCollection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

// MongoSummaryStore persists summary configuration in MongoDB, one document
// per configured group plus a single settings document.
type MongoSummaryStore struct {
	groups   summaryCollection
	settings summaryCollection
	defaults domain.GroupSummary
}

// NewMongoSummaryStore constructs a MongoSummaryStore over the given
// collections.
func NewMongoSummaryStore(groups, settings summaryCollection) *MongoSummaryStore {
	return &MongoSummaryStore{
		groups:   groups,
		settings: settings,
		defaults: domain.DefaultGroupSummary(),
	}
}

// Enabled reports the global periodic-summary flag, defaulting to false when
// the settings document does not exist yet.
func (s *MongoSummaryStore) Enabled(ctx context.Context) (bool, error) {
	if err := s.check(ctx); err != nil {
		return false, err
	}

	var doc summarySettingsDoc
	result := s.settings.FindOne(ctx, bson.M{"_id": settingsDocID})
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, &domain.PersistenceError{Op: "read settings", Err: err}
	}
	if err := result.Decode(&doc); err != nil {
		return false, &domain.PersistenceError{Op: "decode settings", Err: err}
	}

	return doc.Enabled, nil
}

// SetEnabled upserts the global flag.
func (s *MongoSummaryStore) SetEnabled(ctx context.Context, enabled bool) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	_, err := s.settings.UpdateOne(ctx,
		bson.M{"_id": settingsDocID},
		bson.M{"$set": bson.M{"enabled": enabled}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return &domain.PersistenceError{Op: "write settings", Err: err}
	}

	return nil
}

// Defaults returns the stock group settings.
func (s *MongoSummaryStore) Defaults() domain.GroupSummary {
	return s.defaults
}

// Get fetches one group's configuration.
func (s *MongoSummaryStore) Get(ctx context.Context, group string) (domain.GroupSummary, bool, error) {
	if err := s.check(ctx); err != nil {
		return domain.GroupSummary{}, false, err
	}

	var doc summaryGroupDoc
	result := s.groups.FindOne(ctx, bson.M{"group_name": group})
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.GroupSummary{}, false, nil
		}
		return domain.GroupSummary{}, false, &domain.PersistenceError{Op: "read group", Err: err}
	}
	if err := result.Decode(&doc); err != nil {
		return domain.GroupSummary{}, false, &domain.PersistenceError{Op: "decode group", Err: err}
	}

	return doc.Config, true, nil
}

// Set upserts one group's configuration.
func (s *MongoSummaryStore) Set(ctx context.Context, group string, cfg domain.GroupSummary) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if group == "" {
		return &domain.PersistenceError{Op: "write group", Err: errors.New("group name is required")}
	}

	_, err := s.groups.UpdateOne(ctx,
		bson.M{"group_name": group},
		bson.M{"$set": bson.M{
			"config":     cfg,
			"updated_at": time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return &domain.PersistenceError{Op: "write group", Err: err}
	}

	return nil
}

// Delete removes one group's configuration. Deleting an absent group is not
// an error.
func (s *MongoSummaryStore) Delete(ctx context.Context, group string) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	if _, err := s.groups.DeleteOne(ctx, bson.M{"group_name": group}); err != nil {
		return &domain.PersistenceError{Op: "delete group", Err: err}
	}

	return nil
}

// GroupNames lists configured group names in ascending order.
func (s *MongoSummaryStore) GroupNames(ctx context.Context) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	cursor, err := s.groups.Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "group_name", Value: 1}}).SetProjection(bson.M{"group_name": 1}),
	)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list groups", Err: err}
	}
	defer cursor.Close(ctx)

	names := make([]string, 0)
	for cursor.Next(ctx) {
		var doc summaryGroupDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, &domain.PersistenceError{Op: "decode group list", Err: err}
		}
		names = append(names, doc.GroupName)
	}
	if err := cursor.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "list groups", Err: err}
	}

	return names, nil
}

// Save is a no-op: every mutation above is individually durable.
func (s *MongoSummaryStore) Save(ctx context.Context) error {
	return s.check(ctx)
}

func (s *MongoSummaryStore) check(ctx context.Context) error {
	if s == nil || s.groups == nil || s.settings == nil {
		return errors.New("summary store is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return nil
}
