package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/carefinder-api/internal/model"
)

// TokenRepo persists refresh tokens, one document per username.
type TokenRepo struct{ col *mongo.Collection }

func NewTokenRepo(col *mongo.Collection) *TokenRepo { return &TokenRepo{col: col} }

// FindByUsername returns the live refresh token of username.
func (r *TokenRepo) FindByUsername(ctx context.Context, username string) (*model.RefreshToken, error) {
	const op = "repository.TokenRepo.FindByUsername"
	var rt model.RefreshToken
	if err := r.col.FindOne(ctx, bson.M{"username": username}).Decode(&rt); err != nil {
		return nil, translate(op, err)
	}
	return &rt, nil
}

// FindByToken looks a refresh token up by its literal value.
func (r *TokenRepo) FindByToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	const op = "repository.TokenRepo.FindByToken"
	var rt model.RefreshToken
	if err := r.col.FindOne(ctx, bson.M{"refreshToken": token}).Decode(&rt); err != nil {
		return nil, translate(op, err)
	}
	return &rt, nil
}

// InsertIfAbsent stores token for username unless the user already has one,
// and returns whichever record is stored afterwards. The upsert only writes
// on insert, so a concurrent caller that lost the race gets the winner's
// token back.
func (r *TokenRepo) InsertIfAbsent(ctx context.Context, username, token string) (*model.RefreshToken, error) {
	const op = "repository.TokenRepo.InsertIfAbsent"
	now := time.Now().UTC()
	update := bson.M{"$setOnInsert": bson.M{
		"refreshToken": token,
		"createdAt":    now,
		"updatedAt":    now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var rt model.RefreshToken
	err := r.col.FindOneAndUpdate(ctx, bson.M{"username": username}, update, opts).Decode(&rt)
	if mongo.IsDuplicateKeyError(err) {
		// two upserts raced on the unique index; the other one won
		return r.FindByUsername(ctx, username)
	}
	if err != nil {
		return nil, translate(op, err)
	}
	return &rt, nil
}

// DeleteByToken removes the record holding token. ErrNotFound when there
// was none.
func (r *TokenRepo) DeleteByToken(ctx context.Context, token string) error {
	const op = "repository.TokenRepo.DeleteByToken"
	res, err := r.col.DeleteOne(ctx, bson.M{"refreshToken": token})
	if err != nil {
		return translate(op, err)
	}
	if res.DeletedCount == 0 {
		return translate(op, mongo.ErrNoDocuments)
	}
	return nil
}

// DeleteByUsername removes the refresh token of username, if any.
func (r *TokenRepo) DeleteByUsername(ctx context.Context, username string) error {
	const op = "repository.TokenRepo.DeleteByUsername"
	if _, err := r.col.DeleteOne(ctx, bson.M{"username": username}); err != nil {
		return translate(op, err)
	}
	return nil
}
