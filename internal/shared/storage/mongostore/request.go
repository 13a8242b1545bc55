package mongostore

import (
	"context"
	"strings"
	"time"

	"campus-access/internal/shared/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// requestDoc access_requests 集合文档
type requestDoc struct {
	model.Request       `bson:",inline"`
	RequesterEmailLower string `bson:"requester_email_lower,omitempty"`
}

// ============================================================================
// RequestStore
// ============================================================================

func (s *Store) CreateRequest(ctx context.Context, req *model.Request) error {
	return insertOne(ctx, s.col(ColRequests), requestDoc{
		Request:             *req,
		RequesterEmailLower: strings.ToLower(req.RequesterEmail),
	})
}

func (s *Store) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	doc, err := findOne[requestDoc](ctx, s.col(ColRequests), bson.D{{Key: "_id", Value: id}})
	if err != nil || doc == nil {
		return nil, err
	}
	return &doc.Request, nil
}

func (s *Store) ListRequests(ctx context.Context) ([]*model.Request, error) {
	return s.findRequests(ctx, bson.D{})
}

func (s *Store) ListRequestsByRequesterEmail(ctx context.Context, email string) ([]*model.Request, error) {
	return s.findRequests(ctx, bson.D{{Key: "requester_email_lower", Value: strings.ToLower(strings.TrimSpace(email))}})
}

func (s *Store) UpdateRequestStatus(ctx context.Context, id string, status model.Status, actorID string, at time.Time) error {
	update := bson.D{{Key: "status", Value: status}}
	if actorID != "" {
		update = append(update,
			bson.E{Key: "action_taken_by", Value: actorID},
			bson.E{Key: "action_taken_at", Value: at.UTC()},
		)
	}
	return updateFields(ctx, s.col(ColRequests), id, update)
}

func (s *Store) findRequests(ctx context.Context, filter bson.D) ([]*model.Request, error) {
	opts := options.Find().SetSort(bson.D{{Key: "requested_at", Value: -1}, {Key: "_id", Value: -1}})
	docs, err := findMany[requestDoc](ctx, s.col(ColRequests), filter, opts)
	if err != nil {
		return nil, err
	}
	reqs := make([]*model.Request, len(docs))
	for i, d := range docs {
		reqs[i] = &d.Request
	}
	return reqs, nil
}
