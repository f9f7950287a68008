package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"clientflow/internal/events"
	"clientflow/internal/storage"
	"clientflow/internal/workflow/condition"
)

// InsertEvent appends an event row to system_events.
func (s *Store) InsertEvent(ctx context.Context, evt *events.Event) error {
	_, err := s.db.Collection(collEvents).InsertOne(ctx, evt)
	return err
}

// ListActiveTriggers returns active triggers for the event type ordered by
// priority descending, id ascending. Conditions are parsed once here; a row
// whose stored conditions do not parse is skipped with a warning rather than
// failing the whole read.
func (s *Store) ListActiveTriggers(ctx context.Context, eventType string) ([]*storage.Trigger, error) {
	cur, err := s.db.Collection(collTriggers).Find(ctx,
		bson.M{"event_type": eventType, "is_active": true},
		options.Find().SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var triggers []*storage.Trigger
	for cur.Next(ctx) {
		var t storage.Trigger
		if err := cur.Decode(&t); err != nil {
			s.logger.Warn("failed to decode trigger", "error", err)
			continue
		}
		parsed, err := condition.ParseExpr(t.Conditions)
		if err != nil {
			s.logger.Warn("skipping trigger with invalid conditions",
				"trigger_id", t.ID, "error", err)
			continue
		}
		t.Parsed = parsed
		triggers = append(triggers, &t)
	}
	return triggers, cur.Err()
}

// InsertTriggerLog appends one execution-log row.
func (s *Store) InsertTriggerLog(ctx context.Context, log *storage.TriggerExecutionLog) error {
	_, err := s.db.Collection(collTriggerLogs).InsertOne(ctx, log)
	return err
}
