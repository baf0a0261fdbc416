package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/carefinder-api/internal/model"
)

// publicProjection strips the credential from documents that are going to
// be rendered.
var publicProjection = bson.M{"salt": 0, "hash": 0}

// UserRepo is the credential store.
type UserRepo struct{ col *mongo.Collection }

func NewUserRepo(col *mongo.Collection) *UserRepo { return &UserRepo{col: col} }

func selectorFilter(sel model.UserSelector) bson.M {
	switch {
	case !sel.ID.IsZero():
		return bson.M{"_id": sel.ID}
	case sel.Username != "":
		return bson.M{"username": sel.Username}
	default:
		return bson.M{"email": sel.Email}
	}
}

// FindCredential loads the full record, salt and hash included, for the
// login flow.
func (r *UserRepo) FindCredential(ctx context.Context, username string) (*model.User, error) {
	const op = "repository.UserRepo.FindCredential"
	var u model.User
	if err := r.col.FindOne(ctx, bson.M{"username": username}).Decode(&u); err != nil {
		return nil, translate(op, err)
	}
	return &u, nil
}

// FindOne returns a user without the credential fields.
func (r *UserRepo) FindOne(ctx context.Context, sel model.UserSelector) (*model.User, error) {
	const op = "repository.UserRepo.FindOne"
	var u model.User
	opts := options.FindOne().SetProjection(publicProjection)
	if err := r.col.FindOne(ctx, selectorFilter(sel), opts).Decode(&u); err != nil {
		return nil, translate(op, err)
	}
	return &u, nil
}

// Exists reports whether username is still registered.
func (r *UserRepo) Exists(ctx context.Context, username string) (bool, error) {
	const op = "repository.UserRepo.Exists"
	n, err := r.col.CountDocuments(ctx, bson.M{"username": username}, options.Count().SetLimit(1))
	if err != nil {
		return false, translate(op, err)
	}
	return n > 0, nil
}

// List returns users matching f, credential fields excluded.
func (r *UserRepo) List(ctx context.Context, f model.UserFilter) ([]model.User, error) {
	const op = "repository.UserRepo.List"
	q := bson.M{}
	if f.Role != "" {
		q["role"] = f.Role
	}
	if f.FirstName != "" {
		q["firstname"] = f.FirstName
	}
	if f.LastName != "" {
		q["lastname"] = f.LastName
	}
	cur, err := r.col.Find(ctx, q, options.Find().SetProjection(publicProjection).SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, translate(op, err)
	}
	out := []model.User{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, translate(op, err)
	}
	return out, nil
}

// Create inserts u and fills in its id and timestamps.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const op = "repository.UserRepo.Create"
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	if _, err := r.col.InsertOne(ctx, u); err != nil {
		return translate(op, err)
	}
	return nil
}

// Replace overwrites the document selected by sel with u, keeping the id and
// creation time of the stored document.
func (r *UserRepo) Replace(ctx context.Context, sel model.UserSelector, u *model.User) error {
	const op = "repository.UserRepo.Replace"
	current, err := r.FindOne(ctx, sel)
	if err != nil {
		return err
	}
	u.ID = current.ID
	u.CreatedAt = current.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": current.ID}, u)
	if err != nil {
		return translate(op, err)
	}
	if res.MatchedCount == 0 {
		return translate(op, mongo.ErrNoDocuments)
	}
	return nil
}

// Update applies set to the selected user and returns the result.
func (r *UserRepo) Update(ctx context.Context, sel model.UserSelector, set bson.M) (*model.User, error) {
	const op = "repository.UserRepo.Update"
	if set == nil {
		set = bson.M{}
	}
	set["updatedAt"] = time.Now().UTC()
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(publicProjection)
	var u model.User
	if err := r.col.FindOneAndUpdate(ctx, selectorFilter(sel), bson.M{"$set": set}, opts).Decode(&u); err != nil {
		return nil, translate(op, err)
	}
	return &u, nil
}

// Delete removes the selected user and returns what was removed.
func (r *UserRepo) Delete(ctx context.Context, sel model.UserSelector) (*model.User, error) {
	const op = "repository.UserRepo.Delete"
	var u model.User
	opts := options.FindOneAndDelete().SetProjection(publicProjection)
	if err := r.col.FindOneAndDelete(ctx, selectorFilter(sel), opts).Decode(&u); err != nil {
		return nil, translate(op, err)
	}
	return &u, nil
}
