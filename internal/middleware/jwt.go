package middleware // reusable HTTP middleware for the API

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/carefinder-api/internal/apperror"
	"github.com/iliyamo/carefinder-api/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and stores the username from its "user" claim in the context under
// UserKey. Failures are returned as *apperror.Error so the terminal error
// handler renders them: an expired token is 403, anything else 401.
func JWTAuth(tm *utils.TokenManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return apperror.Unauthorized(apperror.MsgTokenInvalid)
			}

			claims, err := tm.VerifyAccess(raw)
			switch {
			case errors.Is(err, utils.ErrTokenExpired):
				return apperror.Forbidden(apperror.MsgTokenExpired)
			case err != nil:
				return apperror.Unauthorized(apperror.MsgTokenInvalid).Wrap(err)
			case claims.User == "":
				return apperror.Unauthorized(apperror.MsgTokenInvalid)
			}

			c.Set(UserKey, claims.User)
			return next(c)
		}
	}
}

// bearerToken splits "Bearer <token>". The scheme is matched without
// regard to case.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
