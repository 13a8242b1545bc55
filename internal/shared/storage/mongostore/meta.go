package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type metaDoc struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// ============================================================================
// MetaStore
// ============================================================================

func (s *Store) GetMeta(ctx context.Context, key string) (string, bool, error) {
	doc, err := findOne[metaDoc](ctx, s.col(ColMeta), bson.D{{Key: "_id", Value: key}})
	if err != nil || doc == nil {
		return "", false, err
	}
	return doc.Value, true, nil
}

func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	return replaceByID(ctx, s.col(ColMeta), key, metaDoc{Key: key, Value: value, UpdatedAt: time.Now().UTC()})
}

func (s *Store) DeleteMeta(ctx context.Context, key string) error {
	_, err := s.col(ColMeta).DeleteOne(ctx, bson.D{{Key: "_id", Value: key}})
	return wrapError(err)
}
