package mongostore

import (
	"context"
	"strings"
	"time"

	"campus-access/internal/shared/model"
	"campus-access/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// userDoc users 集合文档：附加小写登录标识用于唯一索引
type userDoc struct {
	model.User    `bson:",inline"`
	EmailLower    string `bson:"email_lower,omitempty"`
	UsernameLower string `bson:"username_lower,omitempty"`
}

// ============================================================================
// IdentityStore
// ============================================================================

func (s *Store) UpsertUser(ctx context.Context, user *model.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	doc := userDoc{
		User:          *user,
		EmailLower:    strings.ToLower(user.Email),
		UsernameLower: strings.ToLower(user.Username),
	}
	taken, err := s.identityTaken(ctx, doc)
	if err != nil {
		return err
	}
	if taken {
		return storage.ErrDuplicate
	}
	return replaceByID(ctx, s.col(ColUsers), user.ID, doc)
}

// identityTaken 其他用户的 email_lower 或 username_lower 是否命中任一登录标识
func (s *Store) identityTaken(ctx context.Context, doc userDoc) (bool, error) {
	ids := bson.A{}
	for _, v := range []string{doc.EmailLower, doc.UsernameLower} {
		if v != "" {
			ids = append(ids, v)
		}
	}
	if len(ids) == 0 {
		return false, nil
	}
	filter := bson.D{
		{Key: "_id", Value: bson.D{{Key: "$ne", Value: doc.ID}}},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "email_lower", Value: bson.D{{Key: "$in", Value: ids}}}},
			bson.D{{Key: "username_lower", Value: bson.D{{Key: "$in", Value: ids}}}},
		}},
	}
	n, err := s.col(ColUsers).CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, wrapError(err)
	}
	return n > 0, nil
}

func (s *Store) GetUserByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	id := strings.ToLower(strings.TrimSpace(identifier))
	if id == "" {
		return nil, nil
	}
	doc, err := findOne[userDoc](ctx, s.col(ColUsers), bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "email_lower", Value: id}},
		bson.D{{Key: "username_lower", Value: id}},
	}}})
	if err != nil || doc == nil {
		return nil, err
	}
	return &doc.User, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	doc, err := findOne[userDoc](ctx, s.col(ColUsers), bson.D{{Key: "_id", Value: id}})
	if err != nil || doc == nil {
		return nil, err
	}
	return &doc.User, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	docs, err := findMany[userDoc](ctx, s.col(ColUsers), bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	users := make([]*model.User, len(docs))
	for i, d := range docs {
		users[i] = &d.User
	}
	return users, nil
}
