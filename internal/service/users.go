package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/iliyamo/carefinder-api/internal/apperror"
	"github.com/iliyamo/carefinder-api/internal/model"
	"github.com/iliyamo/carefinder-api/internal/repository"
	"github.com/iliyamo/carefinder-api/internal/utils"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-z0-9]+$`)
	emailPattern    = regexp.MustCompile(`^\S+@\S+\.\S+$`)
)

// UserStore is the user collection as the user workflows see it.
type UserStore interface {
	FindOne(ctx context.Context, sel model.UserSelector) (*model.User, error)
	List(ctx context.Context, f model.UserFilter) ([]model.User, error)
	Create(ctx context.Context, u *model.User) error
	Replace(ctx context.Context, sel model.UserSelector, u *model.User) error
	Update(ctx context.Context, sel model.UserSelector, set bson.M) (*model.User, error)
	Delete(ctx context.Context, sel model.UserSelector) (*model.User, error)
}

var _ UserStore = (*repository.UserRepo)(nil)

// UserInput is a user as submitted by a client. ID is only honoured when
// a replace request creates the user.
type UserInput struct {
	ID        string `json:"_id" form:"_id"`
	Username  string `json:"username" form:"username"`
	Password  string `json:"password" form:"password"`
	Email     string `json:"email" form:"email"`
	Role      string `json:"role" form:"role"`
	FirstName string `json:"firstname" form:"firstname"`
	LastName  string `json:"lastname" form:"lastname"`
}

func (in *UserInput) normalize() {
	in.Username = NormalizeUsername(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
}

// requireFields checks presence in the order clients have always been told
// about them: username, password, email, role.
func (in UserInput) requireFields() error {
	switch {
	case in.Username == "":
		return apperror.Validation(apperror.MsgMissingUsername)
	case in.Password == "":
		return apperror.Validation(apperror.MsgMissingPassword)
	case in.Email == "":
		return apperror.Validation(apperror.MsgMissingEmail)
	case in.Role == "":
		return apperror.Validation(apperror.MsgMissingRole)
	}
	return nil
}

// validate checks the format of every non-empty field.
func (in UserInput) validate() error {
	problems := map[string]string{}
	if in.Username != "" && !usernamePattern.MatchString(in.Username) {
		problems["username"] = "must contain only letters and digits"
	}
	if in.Email != "" && !emailPattern.MatchString(in.Email) {
		problems["email"] = "is not a valid email address"
	}
	switch in.Role {
	case "", model.RoleAdmin, model.RoleUser, model.RoleGuest:
	default:
		problems["role"] = "must be one of admin, user, guest"
	}
	if len(problems) > 0 {
		return apperror.Validation(apperror.MsgValidation).WithDetail(problems)
	}
	return nil
}

// UserService implements registration and the user CRUD workflows.
type UserService struct {
	users  UserStore
	tokens RefreshTokenStore
	hasher *utils.PasswordHasher
	log    *zap.Logger
}

func NewUserService(users UserStore, tokens RefreshTokenStore, hasher *utils.PasswordHasher, log *zap.Logger) *UserService {
	return &UserService{users: users, tokens: tokens, hasher: hasher, log: log}
}

func (s *UserService) build(in UserInput) (*model.User, error) {
	in.normalize()
	if err := in.requireFields(); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	cred, err := s.hasher.Derive(in.Password)
	if err != nil {
		return nil, err
	}
	return &model.User{
		Username:  in.Username,
		Email:     in.Email,
		Role:      in.Role,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Salt:      cred.Salt,
		Hash:      cred.Hash,
	}, nil
}

// Register creates a user from in, deriving the stored credential from the
// supplied password.
func (s *UserService) Register(ctx context.Context, in UserInput) (*model.User, error) {
	u, err := s.build(in)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, storeError(err)
	}
	return u, nil
}

// Get returns one user.
func (s *UserService) Get(ctx context.Context, sel model.UserSelector) (*model.User, error) {
	u, err := s.users.FindOne(ctx, sel)
	if err != nil {
		return nil, storeError(err)
	}
	return u, nil
}

// List returns the users matching f. An empty result is a 404 carrying an
// empty list.
func (s *UserService) List(ctx context.Context, f model.UserFilter) ([]model.User, error) {
	out, err := s.users.List(ctx, f)
	if err != nil {
		return nil, storeError(err)
	}
	if len(out) == 0 {
		return nil, apperror.NotFound(apperror.MsgUserNotFound).WithData([]model.User{})
	}
	return out, nil
}

// Put replaces the selected user. Without a selector, a body id creates the
// user under that id instead. created tells the two branches apart.
func (s *UserService) Put(ctx context.Context, sel model.UserSelector, in UserInput) (u *model.User, created bool, err error) {
	if sel.IsZero() {
		if in.ID == "" {
			return nil, false, apperror.UnsupportedOption()
		}
		id, perr := primitive.ObjectIDFromHex(in.ID)
		if perr != nil {
			return nil, false, apperror.Validation(apperror.MsgUnacceptableID)
		}
		u, err = s.build(in)
		if err != nil {
			return nil, false, err
		}
		u.ID = id
		if err := s.users.Create(ctx, u); err != nil {
			return nil, false, storeError(err)
		}
		return u, true, nil
	}

	current, err := s.users.FindOne(ctx, sel)
	if err != nil {
		return nil, false, storeError(err)
	}
	u, err = s.build(in)
	if err != nil {
		return nil, false, err
	}
	if err := s.users.Replace(ctx, model.UserSelector{ID: current.ID}, u); err != nil {
		return nil, false, storeError(err)
	}
	// a new credential invalidates the old session
	s.dropRefreshToken(ctx, current.Username)
	return u, false, nil
}

// Patch updates the non-empty fields of in on the selected user. A new
// password yields a new salt and hash and drops the user's refresh token.
func (s *UserService) Patch(ctx context.Context, sel model.UserSelector, in UserInput) (*model.User, error) {
	if sel.IsZero() {
		return nil, apperror.UnsupportedOption()
	}
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	current, err := s.users.FindOne(ctx, sel)
	if err != nil {
		return nil, storeError(err)
	}

	set := bson.M{}
	for key, val := range map[string]string{
		"username":  in.Username,
		"email":     in.Email,
		"role":      in.Role,
		"firstname": in.FirstName,
		"lastname":  in.LastName,
	} {
		if val != "" {
			set[key] = val
		}
	}
	if in.Password != "" {
		cred, err := s.hasher.Derive(in.Password)
		if err != nil {
			return nil, err
		}
		set["salt"], set["hash"] = cred.Salt, cred.Hash
	}

	u, err := s.users.Update(ctx, model.UserSelector{ID: current.ID}, set)
	if err != nil {
		return nil, storeError(err)
	}
	if in.Password != "" || (in.Username != "" && in.Username != current.Username) {
		s.dropRefreshToken(ctx, current.Username)
	}
	return u, nil
}

// Delete removes the selected user together with its refresh token.
func (s *UserService) Delete(ctx context.Context, sel model.UserSelector) error {
	if sel.IsZero() {
		return apperror.UnsupportedOption()
	}
	removed, err := s.users.Delete(ctx, sel)
	if err != nil {
		return storeError(err)
	}
	s.dropRefreshToken(ctx, removed.Username)
	return nil
}

func (s *UserService) dropRefreshToken(ctx context.Context, username string) {
	if err := s.tokens.DeleteByUsername(ctx, username); err != nil {
		s.log.Warn("drop refresh token", zap.String("username", username), zap.Error(err))
	}
}

// storeError maps repository sentinels onto client errors.
func storeError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound(apperror.MsgUserNotFound)
	case errors.Is(err, repository.ErrDuplicate):
		return apperror.Validation(apperror.MsgValidation).
			WithDetail(map[string]string{"username": "username or email already in use"})
	default:
		if _, ok := apperror.As(err); ok {
			return err
		}
		return apperror.Internal(err)
	}
}
