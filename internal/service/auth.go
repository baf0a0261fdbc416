// Package service holds the auth orchestrator and the user workflows that
// need more than a single store call.
package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/carefinder-api/internal/apperror"
	"github.com/iliyamo/carefinder-api/internal/metrics"
	"github.com/iliyamo/carefinder-api/internal/model"
	"github.com/iliyamo/carefinder-api/internal/queue"
	"github.com/iliyamo/carefinder-api/internal/repository"
	"github.com/iliyamo/carefinder-api/internal/utils"
)

// CredentialStore is the part of the user store the auth flows read.
type CredentialStore interface {
	FindCredential(ctx context.Context, username string) (*model.User, error)
	Exists(ctx context.Context, username string) (bool, error)
}

// RefreshTokenStore keeps at most one refresh token per username.
type RefreshTokenStore interface {
	FindByUsername(ctx context.Context, username string) (*model.RefreshToken, error)
	FindByToken(ctx context.Context, token string) (*model.RefreshToken, error)
	InsertIfAbsent(ctx context.Context, username, token string) (*model.RefreshToken, error)
	DeleteByToken(ctx context.Context, token string) error
	DeleteByUsername(ctx context.Context, username string) error
}

// EventPublisher receives audit events. Failures are logged, not returned.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AuthEvent) error
}

var (
	_ CredentialStore   = (*repository.UserRepo)(nil)
	_ RefreshTokenStore = (*repository.TokenRepo)(nil)
	_ EventPublisher    = (*queue.Publisher)(nil)
	_ EventPublisher    = queue.NopPublisher{}
)

// AuthService runs the login, refresh and logout flows.
type AuthService struct {
	users  CredentialStore
	tokens RefreshTokenStore
	hasher *utils.PasswordHasher
	jwt    *utils.TokenManager
	events EventPublisher
	log    *zap.Logger
}

func NewAuthService(users CredentialStore, tokens RefreshTokenStore, hasher *utils.PasswordHasher,
	jwt *utils.TokenManager, events EventPublisher, log *zap.Logger) *AuthService {
	if events == nil {
		events = queue.NopPublisher{}
	}
	return &AuthService{users: users, tokens: tokens, hasher: hasher, jwt: jwt, events: events, log: log}
}

// NormalizeUsername applies the same normalisation the user store applies
// on write.
func NormalizeUsername(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Login checks the credentials and returns an access token together with
// the user's refresh token, reusing the stored one while it is still valid.
func (s *AuthService) Login(ctx context.Context, username, password string) (model.Tokens, error) {
	const flow = "login"
	username = NormalizeUsername(username)
	if username == "" || password == "" {
		return model.Tokens{}, s.reject(ctx, flow, username, "user_missing", apperror.Unauthorized(apperror.MsgUserMissing))
	}

	u, err := s.users.FindCredential(ctx, username)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return model.Tokens{}, s.reject(ctx, flow, username, "user_not_found", apperror.Unauthorized(apperror.MsgUserNotFound))
	case err != nil:
		return model.Tokens{}, s.fail(flow, apperror.Internal(err))
	}

	if !s.hasher.Verify(password, u.Salt, u.Hash) {
		return model.Tokens{}, s.reject(ctx, flow, username, "wrong_password", apperror.Unauthorized(apperror.MsgWrongPassword))
	}

	tokens, err := s.accessToken(u.Username)
	if err != nil {
		return model.Tokens{}, s.reject(ctx, flow, username, "access_token", err)
	}

	refresh, err := s.issueOrReuseRefreshToken(ctx, u.Username)
	switch {
	case errors.Is(err, utils.ErrTokenGeneration):
		return model.Tokens{}, s.reject(ctx, flow, username, "refresh_token",
			apperror.TokenGeneration(apperror.MsgNoRefreshToken).Wrap(err))
	case err != nil:
		return model.Tokens{}, s.fail(flow, apperror.Internal(err))
	}
	tokens.RefreshToken = refresh

	metrics.AuthOutcome(flow, "success")
	s.emit(ctx, queue.EventLoginSucceeded, u.Username, "")
	return tokens, nil
}

// Refresh exchanges a stored, unexpired refresh token for a new access
// token. The refresh token itself is not rotated. An expired refresh token
// is deleted before the request is refused.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.Tokens, error) {
	const flow = "refresh"
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return model.Tokens{}, s.reject(ctx, flow, "", "missing_token", apperror.Unauthorized(apperror.MsgMissingRefreshParm))
	}

	claims, err := s.jwt.VerifyRefresh(refreshToken)
	switch {
	case errors.Is(err, utils.ErrTokenExpired):
		// an expired token that is already gone is simply unknown
		derr := s.tokens.DeleteByToken(ctx, refreshToken)
		switch {
		case errors.Is(derr, repository.ErrNotFound):
			return model.Tokens{}, s.reject(ctx, flow, "", "does_not_exist", apperror.Unauthorized(apperror.MsgTokenNotFound))
		case derr != nil:
			return model.Tokens{}, s.fail(flow, apperror.Internal(derr))
		}
		s.emit(ctx, queue.EventRefreshRevoked, "", "expired")
		return model.Tokens{}, s.reject(ctx, flow, "", "expired", apperror.Forbidden(apperror.MsgTokenExpired))
	case err != nil, claims == nil, claims.Username == "":
		return model.Tokens{}, s.reject(ctx, flow, "", "malformed", apperror.Unauthorized(apperror.MsgMalformedToken))
	}

	stored, err := s.tokens.FindByToken(ctx, refreshToken)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return model.Tokens{}, s.reject(ctx, flow, claims.Username, "does_not_exist", apperror.Unauthorized(apperror.MsgTokenNotFound))
	case err != nil:
		return model.Tokens{}, s.fail(flow, apperror.Internal(err))
	}

	if claims.Username != stored.Username {
		return model.Tokens{}, s.reject(ctx, flow, claims.Username, "mismatch", apperror.Unauthorized(apperror.MsgTokenMismatch))
	}

	exists, err := s.users.Exists(ctx, stored.Username)
	if err != nil {
		return model.Tokens{}, s.fail(flow, apperror.Internal(err))
	}
	if !exists {
		return model.Tokens{}, s.reject(ctx, flow, stored.Username, "user_not_found", apperror.Unauthorized(apperror.MsgUserNotFound))
	}

	tokens, err := s.accessToken(stored.Username)
	if err != nil {
		return model.Tokens{}, s.reject(ctx, flow, stored.Username, "access_token", err)
	}

	metrics.AuthOutcome(flow, "success")
	s.emit(ctx, queue.EventRefreshIssued, stored.Username, "")
	return tokens, nil
}

// Logout deletes the stored refresh token. The token only has to be known
// to the store; an expired token can still be logged out.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	const flow = "logout"
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return s.reject(ctx, flow, "", "missing_token", apperror.Unauthorized(apperror.MsgMissingRefreshParm))
	}

	stored, err := s.tokens.FindByToken(ctx, refreshToken)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return s.reject(ctx, flow, "", "does_not_exist", apperror.Unauthorized(apperror.MsgTokenNotFound))
	case err != nil:
		return s.fail(flow, apperror.Internal(err))
	}

	err = s.tokens.DeleteByToken(ctx, refreshToken)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		// a concurrent logout or expiry cleanup got there first
	case err != nil:
		return s.fail(flow, apperror.Internal(err))
	}

	metrics.AuthOutcome(flow, "success")
	s.emit(ctx, queue.EventLogout, stored.Username, "")
	return nil
}

// accessToken signs an access token and reads its expiry back.
func (s *AuthService) accessToken(username string) (model.Tokens, error) {
	access, err := s.jwt.IssueAccessToken(username)
	if err != nil {
		return model.Tokens{}, apperror.TokenGeneration(apperror.MsgNoAccessToken).Wrap(err)
	}
	exp, err := utils.ExpiryOf(access)
	if err != nil {
		return model.Tokens{}, apperror.Unauthorized(apperror.MsgMissingExpDate).Wrap(err)
	}
	return model.Tokens{AccessToken: access, TokenType: model.TokenTypeBearer, ExpiresIn: exp}, nil
}

// issueOrReuseRefreshToken returns the stored refresh token of username
// while it still verifies. A stale one is deleted and replaced. New tokens
// are persisted with insert-if-absent, so concurrent logins converge on a
// single stored value.
func (s *AuthService) issueOrReuseRefreshToken(ctx context.Context, username string) (string, error) {
	existing, err := s.tokens.FindByUsername(ctx, username)
	switch {
	case err == nil:
		if _, verr := s.jwt.VerifyRefresh(existing.RefreshToken); verr == nil {
			return existing.RefreshToken, nil
		}
		if derr := s.tokens.DeleteByToken(ctx, existing.RefreshToken); derr != nil && !errors.Is(derr, repository.ErrNotFound) {
			return "", derr
		}
		s.emit(ctx, queue.EventRefreshRevoked, username, "stale")
	case !errors.Is(err, repository.ErrNotFound):
		return "", err
	}

	signed, err := s.jwt.SignRefreshToken(username)
	if err != nil {
		return "", err
	}
	stored, err := s.tokens.InsertIfAbsent(ctx, username, signed)
	if err != nil {
		return "", err
	}
	return stored.RefreshToken, nil
}

// reject records a client-caused failure and returns err unchanged.
func (s *AuthService) reject(ctx context.Context, flow, username, outcome string, err error) error {
	metrics.AuthOutcome(flow, outcome)
	if flow == "login" && username != "" {
		s.emit(ctx, queue.EventLoginFailed, username, outcome)
	}
	return err
}

// fail records an infrastructure failure.
func (s *AuthService) fail(flow string, err *apperror.Error) error {
	metrics.AuthOutcome(flow, "error")
	s.log.Error("auth flow failed", zap.String("flow", flow), zap.Error(err.Err))
	return err
}

func (s *AuthService) emit(ctx context.Context, typ, username, reason string) {
	if err := s.events.Publish(ctx, queue.NewAuthEvent(typ, username, reason)); err != nil {
		s.log.Warn("publish auth event", zap.String("type", typ), zap.Error(err))
	}
}
