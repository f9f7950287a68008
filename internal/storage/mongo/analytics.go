package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

func (s *Store) DeleteAgedPageViews(ctx context.Context, before time.Time) (int64, error) {
	return s.deleteAged(ctx, collPageViews, before)
}

func (s *Store) DeleteAgedInteractionEvents(ctx context.Context, before time.Time) (int64, error) {
	return s.deleteAged(ctx, collInteractions, before)
}

func (s *Store) deleteAged(ctx context.Context, coll string, before time.Time) (int64, error) {
	res, err := s.db.Collection(coll).DeleteMany(ctx,
		bson.M{"created_at": bson.M{"$lt": before}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
