package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/iliyamo/carefinder-api/internal/apperror"
	"github.com/iliyamo/carefinder-api/internal/model"
	"github.com/iliyamo/carefinder-api/internal/service"
)

// UserWorkflows is what the user endpoints need from the user service.
type UserWorkflows interface {
	Register(ctx context.Context, in service.UserInput) (*model.User, error)
	Get(ctx context.Context, sel model.UserSelector) (*model.User, error)
	List(ctx context.Context, f model.UserFilter) ([]model.User, error)
	Put(ctx context.Context, sel model.UserSelector, in service.UserInput) (*model.User, bool, error)
	Patch(ctx context.Context, sel model.UserSelector, in service.UserInput) (*model.User, error)
	Delete(ctx context.Context, sel model.UserSelector) error
}

var _ UserWorkflows = (*service.UserService)(nil)

// UserHandler serves /users. Single users are addressed through one of the
// id, username or email query parameters.
type UserHandler struct {
	Users   UserWorkflows
	Timeout time.Duration
}

func NewUserHandler(users UserWorkflows, timeout time.Duration) *UserHandler {
	return &UserHandler{Users: users, Timeout: timeout}
}

// userSelector reads ?id, ?username or ?email, first match wins.
func userSelector(c echo.Context) (model.UserSelector, error) {
	var sel model.UserSelector
	if raw := c.QueryParam("id"); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return sel, apperror.Validation(apperror.MsgUnacceptableID)
		}
		sel.ID = id
		return sel, nil
	}
	if u := service.NormalizeUsername(c.QueryParam("username")); u != "" {
		sel.Username = u
		return sel, nil
	}
	sel.Email = strings.ToLower(strings.TrimSpace(c.QueryParam("email")))
	return sel, nil
}

func bindUser(c echo.Context) (service.UserInput, error) {
	var in service.UserInput
	if err := c.Bind(&in); err != nil {
		return in, apperror.Validation(apperror.MsgValidation).Wrap(err)
	}
	return in, nil
}

// Create: POST /users (public registration)
func (h *UserHandler) Create(c echo.Context) error {
	in, err := bindUser(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	u, err := h.Users.Register(ctx, in)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderLocation, u.ID.Hex())
	return c.JSON(http.StatusCreated, dataResp{Data: u})
}

// Read: GET /users. A selector returns one user, otherwise the
// role/firstname/lastname filters return a list.
func (h *UserHandler) Read(c echo.Context) error {
	sel, err := userSelector(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	if !sel.IsZero() {
		u, err := h.Users.Get(ctx, sel)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, dataResp{Data: u})
	}

	list, err := h.Users.List(ctx, model.UserFilter{
		Role:      strings.ToLower(c.QueryParam("role")),
		FirstName: c.QueryParam("firstname"),
		LastName:  c.QueryParam("lastname"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dataResp{Data: list})
}

// Replace: PUT /users (guarded)
func (h *UserHandler) Replace(c echo.Context) error {
	sel, err := userSelector(c)
	if err != nil {
		return err
	}
	in, err := bindUser(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	u, created, err := h.Users.Put(ctx, sel, in)
	if err != nil {
		return err
	}
	if created {
		c.Response().Header().Set(echo.HeaderLocation, u.ID.Hex())
		return c.JSON(http.StatusCreated, dataResp{Data: u})
	}
	return c.JSON(http.StatusOK, dataResp{Data: u})
}

// Modify: PATCH /users (guarded)
func (h *UserHandler) Modify(c echo.Context) error {
	sel, err := userSelector(c)
	if err != nil {
		return err
	}
	in, err := bindUser(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	u, err := h.Users.Patch(ctx, sel, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dataResp{Data: u})
}

// Delete: DELETE /users (guarded)
func (h *UserHandler) Delete(c echo.Context) error {
	sel, err := userSelector(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	if err := h.Users.Delete(ctx, sel); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
