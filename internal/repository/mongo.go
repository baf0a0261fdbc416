package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/iliyamo/carefinder-api/internal/config"
)

const (
	usersCollection         = "users"
	hospitalsCollection     = "hospitals"
	refreshTokensCollection = "refreshtokens"
)

// Mongo owns the client and hands out the per-collection repositories.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongo connects, pings the primary and makes sure the indexes the stores
// rely on exist.
func NewMongo(ctx context.Context, cfg config.MongoConfig) (*Mongo, error) {
	if cfg.URL == "" {
		return nil, errors.New("mongo: empty url")
	}

	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	m := &Mongo{client: cli, db: cli.Database(cfg.Database)}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = m.Close(context.Background())
		return nil, err
	}
	return m, nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Ping is used by the readiness probe.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Users() *UserRepo {
	return NewUserRepo(m.db.Collection(usersCollection))
}

func (m *Mongo) Hospitals() *HospitalRepo {
	return NewHospitalRepo(m.db.Collection(hospitalsCollection))
}

func (m *Mongo) Tokens() *TokenRepo {
	return NewTokenRepo(m.db.Collection(refreshTokensCollection))
}

// ensureIndexes creates:
//   - users: unique username, unique email
//   - refreshtokens: unique username (one live token per user), unique value
//   - hospitals: providerId and city/state for the list filters
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	sets := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetName("uniq_username").SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("uniq_email").SetUnique(true)},
		},
		refreshTokensCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetName("uniq_username").SetUnique(true)},
			{Keys: bson.D{{Key: "refreshToken", Value: 1}}, Options: options.Index().SetName("uniq_refresh_token").SetUnique(true)},
		},
		hospitalsCollection: {
			{Keys: bson.D{{Key: "providerId", Value: 1}}, Options: options.Index().SetName("provider_id")},
			{Keys: bson.D{{Key: "state", Value: 1}, {Key: "city", Value: 1}}, Options: options.Index().SetName("state_city")},
		},
	}
	for coll, models := range sets {
		if _, err := m.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo ensure indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// translate maps driver errors onto the package sentinels.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
