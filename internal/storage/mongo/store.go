// Package mongo implements the storage interfaces on MongoDB.
package mongo

import (
	"context"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"clientflow/internal/storage/config"
)

// Collection names.
const (
	collEvents            = "system_events"
	collTriggers          = "workflow_triggers"
	collTriggerLogs       = "workflow_trigger_logs"
	collContractReminders = "contract_reminders"
	collWelcomeEmails     = "welcome_sequence_emails"
	collProposals         = "proposals"
	collProjects          = "projects"
	collContracts         = "contracts"
	collMilestones        = "milestones"
	collDeliverables      = "deliverables"
	collClients           = "clients"
	collInvoices          = "invoices"
	collPageViews         = "page_views"
	collInteractions      = "interaction_events"
	collCounters          = "counters"
)

// Store implements the storage interfaces on a single Mongo database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

// NewStore connects to MongoDB and verifies the connection.
func NewStore(ctx context.Context, cfg config.MongoConfig, logger *slog.Logger) (*Store, error) {
	clientOpts := options.Client().ApplyURI(cfg.URI)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	s := &Store{
		client: client,
		db:     client.Database(cfg.DatabaseName),
		logger: logger.With("component", "mongo-store"),
	}
	s.EnsureIndexes(ctx)
	return s, nil
}

// DB exposes the underlying database for tests and migrations.
func (s *Store) DB() *mongo.Database {
	return s.db
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the read paths depend on. Failures are
// logged rather than fatal so a read-only deployment can still start.
func (s *Store) EnsureIndexes(ctx context.Context) {
	indexes := map[string][]mongo.IndexModel{
		collEvents: {
			{Keys: bson.D{{Key: "event_type", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
		collTriggers: {
			{Keys: bson.D{{Key: "event_type", Value: 1}, {Key: "is_active", Value: 1}, {Key: "priority", Value: -1}}},
		},
		collTriggerLogs: {
			{Keys: bson.D{{Key: "trigger_id", Value: 1}, {Key: "executed_at", Value: -1}}},
			{Keys: bson.D{{Key: "event_id", Value: 1}}},
		},
		collContractReminders: {
			{Keys: bson.D{{Key: "project_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduled_date", Value: 1}}},
		},
		collWelcomeEmails: {
			{Keys: bson.D{{Key: "client_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "send_at", Value: 1}}},
		},
		collInvoices: {
			{Keys: bson.D{{Key: "milestone_id", Value: 1}}},
		},
		collPageViews: {
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
		collInteractions: {
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			s.logger.Warn("failed to ensure indexes", "collection", coll, "error", err)
		}
	}
}

// nextID allocates the next integer id for a collection using an atomic
// counter document.
func (s *Store) nextID(ctx context.Context, name string) (int64, error) {
	res := s.db.Collection(collCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	if err := res.Decode(&doc); err != nil {
		return 0, err
	}
	return doc.Seq, nil
}
