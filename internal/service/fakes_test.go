package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/iliyamo/carefinder-api/internal/config"
	"github.com/iliyamo/carefinder-api/internal/model"
	"github.com/iliyamo/carefinder-api/internal/queue"
	"github.com/iliyamo/carefinder-api/internal/repository"
	"github.com/iliyamo/carefinder-api/internal/utils"
)

var errStoreDown = errors.New("store down")

/************ users ************/

type fakeUsers struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]model.User
	err  error
}

var (
	_ CredentialStore = (*fakeUsers)(nil)
	_ UserStore       = (*fakeUsers)(nil)
)

func newFakeUsers() *fakeUsers { return &fakeUsers{byID: map[primitive.ObjectID]model.User{}} }

func (f *fakeUsers) match(sel model.UserSelector) (model.User, bool) {
	for _, u := range f.byID {
		switch {
		case !sel.ID.IsZero():
			if u.ID == sel.ID {
				return u, true
			}
		case sel.Username != "":
			if u.Username == sel.Username {
				return u, true
			}
		case u.Email == sel.Email:
			return u, true
		}
	}
	return model.User{}, false
}

func (f *fakeUsers) FindCredential(_ context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.match(model.UserSelector{Username: username})
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUsers) Exists(_ context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.match(model.UserSelector{Username: username})
	return ok, nil
}

func (f *fakeUsers) FindOne(_ context.Context, sel model.UserSelector) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.match(sel)
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.Salt, u.Hash = "", ""
	return &u, nil
}

func (f *fakeUsers) List(_ context.Context, flt model.UserFilter) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.User{}
	for _, u := range f.byID {
		if flt.Role != "" && u.Role != flt.Role {
			continue
		}
		if flt.FirstName != "" && u.FirstName != flt.FirstName {
			continue
		}
		if flt.LastName != "" && u.LastName != flt.LastName {
			continue
		}
		u.Salt, u.Hash = "", ""
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, other := range f.byID {
		if other.Username == u.Username || other.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.CreatedAt, u.UpdatedAt = time.Now(), time.Now()
	f.byID[u.ID] = *u
	return nil
}

func (f *fakeUsers) Replace(_ context.Context, sel model.UserSelector, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.match(sel)
	if !ok {
		return repository.ErrNotFound
	}
	u.ID = cur.ID
	f.byID[cur.ID] = *u
	return nil
}

func (f *fakeUsers) Update(_ context.Context, sel model.UserSelector, set bson.M) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.match(sel)
	if !ok {
		return nil, repository.ErrNotFound
	}
	for k, v := range set {
		s, _ := v.(string)
		switch k {
		case "username":
			u.Username = s
		case "email":
			u.Email = s
		case "role":
			u.Role = s
		case "firstname":
			u.FirstName = s
		case "lastname":
			u.LastName = s
		case "salt":
			u.Salt = s
		case "hash":
			u.Hash = s
		}
	}
	f.byID[u.ID] = u
	u.Salt, u.Hash = "", ""
	return &u, nil
}

func (f *fakeUsers) Delete(_ context.Context, sel model.UserSelector) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.match(sel)
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(f.byID, u.ID)
	return &u, nil
}

func (f *fakeUsers) raw(username string) model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, _ := f.match(model.UserSelector{Username: username})
	return u
}

/************ refresh tokens ************/

type fakeTokens struct {
	mu         sync.Mutex
	byUsername map[string]model.RefreshToken
	err        error
}

var _ RefreshTokenStore = (*fakeTokens)(nil)

func newFakeTokens() *fakeTokens { return &fakeTokens{byUsername: map[string]model.RefreshToken{}} }

func (f *fakeTokens) FindByUsername(_ context.Context, username string) (*model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	rt, ok := f.byUsername[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rt, nil
}

func (f *fakeTokens) FindByToken(_ context.Context, token string) (*model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, rt := range f.byUsername {
		if rt.RefreshToken == token {
			return &rt, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeTokens) InsertIfAbsent(_ context.Context, username, token string) (*model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if rt, ok := f.byUsername[username]; ok {
		return &rt, nil
	}
	rt := model.RefreshToken{ID: primitive.NewObjectID(), Username: username, RefreshToken: token, CreatedAt: time.Now()}
	f.byUsername[username] = rt
	return &rt, nil
}

func (f *fakeTokens) DeleteByToken(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for name, rt := range f.byUsername {
		if rt.RefreshToken == token {
			delete(f.byUsername, name)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeTokens) DeleteByUsername(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byUsername, username)
	return nil
}

// put stores a record directly, bypassing insert-if-absent.
func (f *fakeTokens) put(username, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byUsername[username] = model.RefreshToken{Username: username, RefreshToken: token}
}

func (f *fakeTokens) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byUsername)
}

/************ events ************/

type fakeEvents struct {
	mu     sync.Mutex
	events []queue.AuthEvent
}

func (f *fakeEvents) Publish(_ context.Context, ev queue.AuthEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeEvents) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Type)
	}
	return out
}

/************ fixture ************/

type fixture struct {
	users  *fakeUsers
	tokens *fakeTokens
	events *fakeEvents
	hasher *utils.PasswordHasher
	jwt    *utils.TokenManager
	auth   *AuthService
	svc    *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hasher, err := utils.NewPasswordHasher(config.KDFConfig{
		Iterations: 1000, KeyLen: 64, Digest: "sha512", SaltBytes: 16, Encoding: "hex",
	})
	require.NoError(t, err)

	f := &fixture{
		users:  newFakeUsers(),
		tokens: newFakeTokens(),
		events: &fakeEvents{},
		hasher: hasher,
		jwt: utils.NewTokenManager(config.AuthConfig{
			Secret: "service-test-secret", Issuer: "carefinder-test",
			AccessTTL: 15 * time.Minute, RefreshTTL: 24 * time.Hour,
		}),
	}
	f.auth = NewAuthService(f.users, f.tokens, f.hasher, f.jwt, f.events, zap.NewNop())
	f.svc = NewUserService(f.users, f.tokens, f.hasher, zap.NewNop())
	return f
}

// addUser registers username with password straight into the fake store.
func (f *fixture) addUser(t *testing.T, username, password string) model.User {
	t.Helper()
	cred, err := f.hasher.Derive(password)
	require.NoError(t, err)
	u := &model.User{Username: username, Email: username + "@example.com", Role: model.RoleUser, Salt: cred.Salt, Hash: cred.Hash}
	require.NoError(t, f.users.Create(context.Background(), u))
	return *u
}

func userSel(username string) model.UserSelector { return model.UserSelector{Username: username} }

func configWithoutSecret() config.AuthConfig {
	return config.AuthConfig{Issuer: "carefinder-test", AccessTTL: time.Minute, RefreshTTL: time.Hour}
}
