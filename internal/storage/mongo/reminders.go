package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"clientflow/internal/storage"
)

func (s *Store) DeletePendingContractReminders(ctx context.Context, projectID int64) (int64, error) {
	res, err := s.db.Collection(collContractReminders).DeleteMany(ctx,
		bson.M{"project_id": projectID, "status": storage.ReminderPending})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) InsertContractReminders(ctx context.Context, reminders []*storage.ContractReminder) error {
	if len(reminders) == 0 {
		return nil
	}
	docs := make([]any, len(reminders))
	for i, r := range reminders {
		docs[i] = r
	}
	_, err := s.db.Collection(collContractReminders).InsertMany(ctx, docs)
	return err
}

func (s *Store) CancelPendingContractReminders(ctx context.Context, projectID int64) (int64, error) {
	res, err := s.db.Collection(collContractReminders).UpdateMany(ctx,
		bson.M{"project_id": projectID, "status": storage.ReminderPending},
		bson.M{"$set": bson.M{"status": storage.ReminderSkipped}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *Store) ListDueContractReminders(ctx context.Context, now time.Time) ([]*storage.ContractReminder, error) {
	cur, err := s.db.Collection(collContractReminders).Find(ctx,
		bson.M{"status": storage.ReminderPending, "scheduled_date": bson.M{"$lte": now}},
		options.Find().SetSort(bson.D{{Key: "scheduled_date", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var reminders []*storage.ContractReminder
	if err := cur.All(ctx, &reminders); err != nil {
		return nil, err
	}
	return reminders, nil
}

func (s *Store) SetContractReminderStatus(ctx context.Context, id string, status string) error {
	res, err := s.db.Collection(collContractReminders).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) InsertWelcomeEmails(ctx context.Context, emails []*storage.WelcomeSequenceEmail) error {
	if len(emails) == 0 {
		return nil
	}
	docs := make([]any, len(emails))
	for i, e := range emails {
		docs[i] = e
	}
	_, err := s.db.Collection(collWelcomeEmails).InsertMany(ctx, docs)
	return err
}

func (s *Store) CancelPendingWelcomeEmails(ctx context.Context, clientID int64) (int64, error) {
	res, err := s.db.Collection(collWelcomeEmails).UpdateMany(ctx,
		bson.M{"client_id": clientID, "status": storage.ReminderPending},
		bson.M{"$set": bson.M{"status": storage.ReminderSkipped}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *Store) ListDueWelcomeEmails(ctx context.Context, now time.Time) ([]*storage.WelcomeSequenceEmail, error) {
	cur, err := s.db.Collection(collWelcomeEmails).Find(ctx,
		bson.M{"status": storage.ReminderPending, "send_at": bson.M{"$lte": now}},
		options.Find().SetSort(bson.D{{Key: "send_at", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var emails []*storage.WelcomeSequenceEmail
	if err := cur.All(ctx, &emails); err != nil {
		return nil, err
	}
	return emails, nil
}

func (s *Store) SetWelcomeEmailStatus(ctx context.Context, id string, status string) error {
	res, err := s.db.Collection(collWelcomeEmails).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}
