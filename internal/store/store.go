// Package store encapsulates MongoDB client management and the persistence
// layers behind the bot: periodic-summary configuration, the group registry,
// and the recent-message log.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"tg_resumo_bot/internal/config"
)

// Collection names used across the bot.
const (
	CollectionSummaryGroups   = "summary_groups"
	CollectionSummarySettings = "summary_settings"
	CollectionGroups          = "groups"
	CollectionMessageLog      = "message_log"
)

// mongoClient captures the subset of mongo.Client behavior we rely on to allow
// lightweight stubbing in tests without a live Mongo deployment.
type mongoClient interface {
	Ping(context.Context, *readpref.ReadPref) error
	Database(string, ...*options.DatabaseOptions) *mongo.Database
	Disconnect(context.Context) error
}

// connectMongo is overridable for tests.
var connectMongo = func(ctx context.Context, opts *options.ClientOptions) (mongoClient, error) {
	return mongo.Connect(ctx, opts)
}

// createIndexes is overridable for tests.
var createIndexes = func(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) ([]string, error) {
	return coll.Indexes().CreateMany(ctx, models)
}

// Manager owns a MongoDB client and the configured database handle.
type Manager struct {
	client mongoClient
	db     *mongo.Database
}

// NewManager initializes the Mongo client using the supplied configuration and
// verifies connectivity with a ping.
func NewManager(ctx context.Context, cfg config.Config) (*Manager, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	client, err := connectMongo(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Manager{
		client: client,
		db:     client.Database(cfg.MongoDB),
	}, nil
}

// Database returns the configured database handle.
func (m *Manager) Database() *mongo.Database {
	return m.db
}

// Ping verifies connectivity, satisfying the health server's checker.
func (m *Manager) Ping(ctx context.Context) error {
	if m == nil || m.client == nil {
		return errors.New("store manager is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	return m.client.Ping(ctx, readpref.Primary())
}

// Collection returns a collection handle for the given name.
func (m *Manager) Collection(name string) *mongo.Collection {
	return m.db.Collection(name)
}

// SummaryGroups returns the per-group summary configuration collection.
func (m *Manager) SummaryGroups() *mongo.Collection {
	return m.Collection(CollectionSummaryGroups)
}

// SummarySettings returns the global summary settings collection.
func (m *Manager) SummarySettings() *mongo.Collection {
	return m.Collection(CollectionSummarySettings)
}

// Groups returns the group registry collection.
func (m *Manager) Groups() *mongo.Collection {
	return m.Collection(CollectionGroups)
}

// MessageLog returns the recent-message log collection.
func (m *Manager) MessageLog() *mongo.Collection {
	return m.Collection(CollectionMessageLog)
}

// EnsureBaseIndexes creates the foundational indexes. Collections are created
// implicitly if they do not already exist.
func (m *Manager) EnsureBaseIndexes(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if m == nil || m.db == nil {
		return errors.New("store manager is not initialized")
	}

	summaryIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "group_name", Value: 1}},
			Options: options.Index().
				SetName("group_name_unique").
				SetUnique(true),
		},
	}

	if _, err := createIndexes(ctx, m.SummaryGroups(), summaryIndexes); err != nil {
		return fmt.Errorf("create summary group indexes: %w", err)
	}

	groupIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "chat_id", Value: 1}},
			Options: options.Index().
				SetName("chat_id_unique").
				SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "title", Value: 1}},
			Options: options.Index().SetName("title_lookup"),
		},
	}

	if _, err := createIndexes(ctx, m.Groups(), groupIndexes); err != nil {
		return fmt.Errorf("create group indexes: %w", err)
	}

	logIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "chat_id", Value: 1}, {Key: "sent_at", Value: -1}},
			Options: options.Index().SetName("chat_recent"),
		},
	}

	if _, err := createIndexes(ctx, m.MessageLog(), logIndexes); err != nil {
		return fmt.Errorf("create message log indexes: %w", err)
	}

	return nil
}

// Close disconnects the Mongo client.
func (m *Manager) Close(ctx context.Context) error {
	if m == nil || m.client == nil {
		return nil
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	return m.client.Disconnect(ctx)
}
