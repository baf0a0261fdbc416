package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/carefinder-api/internal/apperror"
	"github.com/iliyamo/carefinder-api/internal/middleware"
	"github.com/iliyamo/carefinder-api/internal/model"
	"github.com/iliyamo/carefinder-api/internal/service"
)

// AuthFlows is what the auth endpoints need from the orchestrator.
type AuthFlows interface {
	Login(ctx context.Context, username, password string) (model.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (model.Tokens, error)
	Logout(ctx context.Context, refreshToken string) error
}

var _ AuthFlows = (*service.AuthService)(nil)

// AuthHandler serves /auth.
type AuthHandler struct {
	Auth    AuthFlows
	Timeout time.Duration
}

func NewAuthHandler(auth AuthFlows, timeout time.Duration) *AuthHandler {
	return &AuthHandler{Auth: auth, Timeout: timeout}
}

// ----- DTOs -----

type loginReq struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken" form:"refreshToken"`
}

// dataResp wraps every successful payload.
type dataResp struct {
	Data any `json:"data"`
}

// Login: POST /auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return apperror.Validation(apperror.MsgValidation).Wrap(err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	tokens, err := h.Auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dataResp{Data: tokens})
}

// Refresh: POST /auth/refresh. The refresh token is not rotated.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return apperror.Validation(apperror.MsgValidation).Wrap(err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	tokens, err := h.Auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dataResp{Data: tokens})
}

// Logout: POST /auth/logout
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return apperror.Validation(apperror.MsgValidation).Wrap(err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	if err := h.Auth.Logout(ctx, req.RefreshToken); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Me: GET /auth/me (guarded)
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, dataResp{Data: echo.Map{"username": middleware.CurrentUser(c)}})
}

// withTimeout bounds store calls by the configured request timeout.
func withTimeout(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(c.Request().Context(), d)
}
