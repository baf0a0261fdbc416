package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/carefinder-api/internal/model"
)

// HospitalRepo stores hospital documents.
type HospitalRepo struct{ col *mongo.Collection }

func NewHospitalRepo(col *mongo.Collection) *HospitalRepo { return &HospitalRepo{col: col} }

// HospitalQuery turns a filter into a Mongo query with one equality clause
// per non-empty field.
func HospitalQuery(f model.HospitalFilter) bson.M {
	q := bson.M{}
	for key, val := range map[string]string{
		"providerId": f.ProviderID,
		"name":       f.Name,
		"city":       f.City,
		"state":      f.State,
		"zipCode":    f.ZipCode,
		"county":     f.County,
	} {
		if val != "" {
			q[key] = val
		}
	}
	return q
}

// List returns the hospitals matching f ordered by name.
func (r *HospitalRepo) List(ctx context.Context, f model.HospitalFilter) ([]model.Hospital, error) {
	const op = "repository.HospitalRepo.List"
	cur, err := r.col.Find(ctx, HospitalQuery(f), options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, translate(op, err)
	}
	out := []model.Hospital{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, translate(op, err)
	}
	return out, nil
}

// FindByID loads one hospital.
func (r *HospitalRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*model.Hospital, error) {
	const op = "repository.HospitalRepo.FindByID"
	var h model.Hospital
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&h); err != nil {
		return nil, translate(op, err)
	}
	return &h, nil
}

// Create inserts h, generating an id when it has none.
func (r *HospitalRepo) Create(ctx context.Context, h *model.Hospital) error {
	const op = "repository.HospitalRepo.Create"
	if h.ID.IsZero() {
		h.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	h.CreatedAt, h.UpdatedAt = now, now
	if _, err := r.col.InsertOne(ctx, h); err != nil {
		return translate(op, err)
	}
	return nil
}

// Put replaces the hospital with the given id, or creates it under that id
// when it does not exist yet. created tells the two cases apart.
func (r *HospitalRepo) Put(ctx context.Context, id primitive.ObjectID, h *model.Hospital) (created bool, err error) {
	const op = "repository.HospitalRepo.Put"
	current, err := r.FindByID(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		h.ID = id
		return true, r.Create(ctx, h)
	case err != nil:
		return false, err
	}

	h.ID = id
	h.CreatedAt = current.CreatedAt
	h.UpdatedAt = time.Now().UTC()
	if h.ProviderID == "" {
		h.ProviderID = current.ProviderID
	}
	if _, err := r.col.ReplaceOne(ctx, bson.M{"_id": id}, h); err != nil {
		return false, translate(op, err)
	}
	return false, nil
}

// Patch sets the given fields, creating the document when it is missing,
// and returns the stored result.
func (r *HospitalRepo) Patch(ctx context.Context, id primitive.ObjectID, set bson.M) (*model.Hospital, error) {
	const op = "repository.HospitalRepo.Patch"
	now := time.Now().UTC()
	if set == nil {
		set = bson.M{}
	}
	delete(set, "_id")
	delete(set, "createdAt")
	set["updatedAt"] = now
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var h model.Hospital
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&h); err != nil {
		return nil, translate(op, err)
	}
	return &h, nil
}

// Delete removes one hospital. ErrNotFound when it was not there.
func (r *HospitalRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	const op = "repository.HospitalRepo.Delete"
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate(op, err)
	}
	if res.DeletedCount == 0 {
		return translate(op, mongo.ErrNoDocuments)
	}
	return nil
}
