package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/iliyamo/carefinder-api/internal/apperror"
	"github.com/iliyamo/carefinder-api/internal/middleware"
	"github.com/iliyamo/carefinder-api/internal/model"
	"github.com/iliyamo/carefinder-api/internal/repository"
	"github.com/iliyamo/carefinder-api/internal/service"
)

/************ fakes ************/

type fakeAuth struct {
	login   func(username, password string) (model.Tokens, error)
	refresh func(token string) (model.Tokens, error)
	logout  func(token string) error
}

func (f fakeAuth) Login(_ context.Context, u, p string) (model.Tokens, error) {
	return f.login(u, p)
}

func (f fakeAuth) Refresh(_ context.Context, t string) (model.Tokens, error) {
	return f.refresh(t)
}

func (f fakeAuth) Logout(_ context.Context, t string) error {
	return f.logout(t)
}

type fakeHospitals struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]model.Hospital
	last bson.M
}

func newFakeHospitals() *fakeHospitals {
	return &fakeHospitals{byID: map[primitive.ObjectID]model.Hospital{}}
}

func (f *fakeHospitals) List(_ context.Context, flt model.HospitalFilter) ([]model.Hospital, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Hospital
	for _, h := range f.byID {
		if flt.City != "" && h.City != flt.City {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

func (f *fakeHospitals) FindByID(_ context.Context, id primitive.ObjectID) (*model.Hospital, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &h, nil
}

func (f *fakeHospitals) Create(_ context.Context, h *model.Hospital) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h.ID.IsZero() {
		h.ID = primitive.NewObjectID()
	}
	f.byID[h.ID] = *h
	return nil
}

func (f *fakeHospitals) Put(ctx context.Context, id primitive.ObjectID, h *model.Hospital) (bool, error) {
	f.mu.Lock()
	_, exists := f.byID[id]
	f.mu.Unlock()
	h.ID = id
	if !exists {
		return true, f.Create(ctx, h)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id] = *h
	return false, nil
}

func (f *fakeHospitals) Patch(_ context.Context, id primitive.ObjectID, set bson.M) (*model.Hospital, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = set
	h := f.byID[id]
	h.ID = id
	if v, ok := set["name"].(string); ok {
		h.Name = v
	}
	if v, ok := set["emergencyServices"].(bool); ok {
		h.EmergencyServices = v
	}
	f.byID[id] = h
	return &h, nil
}

func (f *fakeHospitals) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeUserFlows struct {
	sel    model.UserSelector
	filter model.UserFilter
	in     service.UserInput
	err    error
}

func (f *fakeUserFlows) Register(_ context.Context, in service.UserInput) (*model.User, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &model.User{ID: primitive.NewObjectID(), Username: in.Username, Salt: "s", Hash: "h"}, nil
}

func (f *fakeUserFlows) Get(_ context.Context, sel model.UserSelector) (*model.User, error) {
	f.sel = sel
	if f.err != nil {
		return nil, f.err
	}
	return &model.User{Username: sel.Username}, nil
}

func (f *fakeUserFlows) List(_ context.Context, flt model.UserFilter) ([]model.User, error) {
	f.filter = flt
	if f.err != nil {
		return nil, f.err
	}
	return []model.User{{Username: "alice"}}, nil
}

func (f *fakeUserFlows) Put(_ context.Context, sel model.UserSelector, in service.UserInput) (*model.User, bool, error) {
	f.sel, f.in = sel, in
	if f.err != nil {
		return nil, false, f.err
	}
	return &model.User{ID: primitive.NewObjectID(), Username: in.Username}, sel.IsZero(), nil
}

func (f *fakeUserFlows) Patch(_ context.Context, sel model.UserSelector, in service.UserInput) (*model.User, error) {
	f.sel, f.in = sel, in
	return &model.User{Username: sel.Username}, f.err
}

func (f *fakeUserFlows) Delete(_ context.Context, sel model.UserSelector) error {
	f.sel = sel
	return f.err
}

/************ helpers ************/

func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zap.NewNop())
	return e
}

func do(e *echo.Echo, method, target, body, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var env struct {
		Error errorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Error
}

/************ error handler ************/

func TestErrorHandler_Envelope(t *testing.T) {
	e := newEcho()
	e.GET("/app", func(echo.Context) error {
		return apperror.Validation(apperror.MsgValidation).WithDetail(map[string]string{"email": "bad"})
	})
	e.GET("/empty", func(echo.Context) error {
		return apperror.NotFound(apperror.MsgUserNotFound).WithData([]model.User{})
	})
	e.GET("/boom", func(echo.Context) error { return errors.New("dial tcp: secret host") })

	rec := do(e, http.MethodGet, "/app", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":{"status":400,"message":"Validation error.","error":{"email":"bad"}}}`, rec.Body.String())

	rec = do(e, http.MethodGet, "/empty", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":{"status":404,"message":"No such user exists.","data":[]}}`, rec.Body.String())

	rec = do(e, http.MethodGet, "/boom", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret host")
	assert.Equal(t, apperror.MsgInternal, decodeError(t, rec).Message)

	rec = do(e, http.MethodGet, "/nowhere", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperror.MsgInvalidRoute, decodeError(t, rec).Message)
}

func TestErrorHandler_RateLimited(t *testing.T) {
	e := newEcho()
	e.GET("/", func(echo.Context) error {
		return echo.NewHTTPError(http.StatusTooManyRequests, middleware.MsgTooManyRequests)
	})
	rec := do(e, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, middleware.MsgTooManyRequests, decodeError(t, rec).Message)
}

/************ auth ************/

func authEcho(a AuthFlows) *echo.Echo {
	e := newEcho()
	h := NewAuthHandler(a, time.Second)
	e.POST("/auth/login", h.Login)
	e.POST("/auth/refresh", h.Refresh)
	e.POST("/auth/logout", h.Logout)
	e.GET("/auth/me", h.Me, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(middleware.UserKey, "alice")
			return next(c)
		}
	})
	return e
}

func TestAuth_LoginJSONAndForm(t *testing.T) {
	var gotUser, gotPass string
	e := authEcho(fakeAuth{login: func(u, p string) (model.Tokens, error) {
		gotUser, gotPass = u, p
		return model.Tokens{AccessToken: "a", TokenType: model.TokenTypeBearer, ExpiresIn: 1700000000, RefreshToken: "r"}, nil
	}})

	rec := do(e, http.MethodPost, "/auth/login", `{"username":"alice","password":"correct"}`, echo.MIMEApplicationJSON)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"access_token":"a","token_type":"Bearer","expires_in":1700000000,"refresh_token":"r"}}`, rec.Body.String())
	assert.Equal(t, "alice", gotUser)
	assert.Equal(t, "correct", gotPass)

	form := url.Values{"username": {"bob"}, "password": {"pw"}}.Encode()
	rec = do(e, http.MethodPost, "/auth/login", form, echo.MIMEApplicationForm)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bob", gotUser)
}

func TestAuth_LoginFailureEnvelope(t *testing.T) {
	e := authEcho(fakeAuth{login: func(string, string) (model.Tokens, error) {
		return model.Tokens{}, apperror.Unauthorized(apperror.MsgWrongPassword)
	}})
	rec := do(e, http.MethodPost, "/auth/login", `{"username":"alice","password":"nope"}`, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":{"status":401,"message":"The given password was incorrect."}}`, rec.Body.String())
}

func TestAuth_RefreshOmitsRefreshToken(t *testing.T) {
	e := authEcho(fakeAuth{refresh: func(tok string) (model.Tokens, error) {
		if tok != "r" {
			return model.Tokens{}, apperror.Unauthorized(apperror.MsgTokenNotFound)
		}
		return model.Tokens{AccessToken: "a2", TokenType: model.TokenTypeBearer, ExpiresIn: 42}, nil
	}})

	rec := do(e, http.MethodPost, "/auth/refresh", `{"refreshToken":"r"}`, echo.MIMEApplicationJSON)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"access_token":"a2","token_type":"Bearer","expires_in":42}}`, rec.Body.String())

	rec = do(e, http.MethodPost, "/auth/refresh", `{"refreshToken":"other"}`, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "No such token exists.", decodeError(t, rec).Message)
}

func TestAuth_RefreshExpiredIsForbidden(t *testing.T) {
	e := authEcho(fakeAuth{refresh: func(string) (model.Tokens, error) {
		return model.Tokens{}, apperror.Forbidden(apperror.MsgTokenExpired)
	}})
	rec := do(e, http.MethodPost, "/auth/refresh", `{"refreshToken":"old"}`, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuth_LogoutAndMe(t *testing.T) {
	var revoked string
	e := authEcho(fakeAuth{logout: func(tok string) error {
		revoked = tok
		return nil
	}})

	rec := do(e, http.MethodPost, "/auth/logout", `{"refreshToken":"r"}`, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "r", revoked)

	rec = do(e, http.MethodGet, "/auth/me", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"username":"alice"}}`, rec.Body.String())
}

/************ hospitals ************/

func hospitalEcho(store HospitalStore) *echo.Echo {
	e := newEcho()
	h := NewHospitalHandler(store, time.Second)
	e.GET("/hospitals", h.List)
	e.GET("/hospitals/:id", h.Get)
	e.POST("/hospitals", h.Create)
	e.PUT("/hospitals/:id", h.Put)
	e.PATCH("/hospitals/:id", h.Patch)
	e.DELETE("/hospitals/:id", h.Delete)
	return e
}

func TestHospitals_CreateAndList(t *testing.T) {
	store := newFakeHospitals()
	e := hospitalEcho(store)

	rec := do(e, http.MethodPost, "/hospitals", `{"providerId":"160001","name":"Mercy","city":"AMES"}`, echo.MIMEApplicationJSON)
	require.Equal(t, http.StatusCreated, rec.Code)
	loc := rec.Header().Get(echo.HeaderLocation)
	_, err := primitive.ObjectIDFromHex(loc)
	require.NoError(t, err)

	rec = do(e, http.MethodGet, "/hospitals?city=AMES", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Data []model.Hospital `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Data, 1)
	assert.Equal(t, "Mercy", out.Data[0].Name)

	rec = do(e, http.MethodGet, "/hospitals?city=BOONE", "", "")
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())

	rec = do(e, http.MethodGet, "/hospitals/"+loc, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHospitals_ProviderIDRequired(t *testing.T) {
	e := hospitalEcho(newFakeHospitals())

	rec := do(e, http.MethodPost, "/hospitals", `{"name":"Nameless"}`, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperror.MsgMissingProviderID, decodeError(t, rec).Message)

	id := primitive.NewObjectID().Hex()
	rec = do(e, http.MethodPut, "/hospitals/"+id, `{"name":"Nameless"}`, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHospitals_PutCreatesThenReplaces(t *testing.T) {
	store := newFakeHospitals()
	e := hospitalEcho(store)
	id := primitive.NewObjectID()

	rec := do(e, http.MethodPut, "/hospitals/"+id.Hex(), `{"providerId":"1","name":"First"}`, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, id.Hex(), rec.Header().Get(echo.HeaderLocation))

	rec = do(e, http.MethodPut, "/hospitals/"+id.Hex(), `{"providerId":"1","name":"Second"}`, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Second", store.byID[id].Name)
}

func TestHospitals_PatchSendsOnlySuppliedFields(t *testing.T) {
	store := newFakeHospitals()
	e := hospitalEcho(store)
	id := primitive.NewObjectID()

	rec := do(e, http.MethodPatch, "/hospitals/"+id.Hex(), `{"name":"Patched","emergencyServices":false}`, echo.MIMEApplicationJSON)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, bson.M{"name": "Patched", "emergencyServices": false}, store.last)

	form := url.Values{"emergencyServices": {"true"}}.Encode()
	rec = do(e, http.MethodPatch, "/hospitals/"+id.Hex(), form, echo.MIMEApplicationForm)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, bson.M{"emergencyServices": true}, store.last)
}

func TestHospitals_BadIDAndMissing(t *testing.T) {
	e := hospitalEcho(newFakeHospitals())

	for _, method := range []string{http.MethodGet, http.MethodPatch, http.MethodDelete} {
		rec := do(e, method, "/hospitals/not-an-id", `{}`, echo.MIMEApplicationJSON)
		assert.Equal(t, http.StatusBadRequest, rec.Code, method)
		assert.Equal(t, apperror.MsgUnacceptableID, decodeError(t, rec).Message)
	}

	rec := do(e, http.MethodDelete, "/hospitals/"+primitive.NewObjectID().Hex(), "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperror.MsgHospitalAbsent, decodeError(t, rec).Message)
}

func TestHospitals_Delete(t *testing.T) {
	store := newFakeHospitals()
	h := &model.Hospital{ProviderID: "1"}
	require.NoError(t, store.Create(context.Background(), h))

	rec := do(hospitalEcho(store), http.MethodDelete, "/hospitals/"+h.ID.Hex(), "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, store.byID)
}

/************ users ************/

func userEcho(flows UserWorkflows) *echo.Echo {
	e := newEcho()
	h := NewUserHandler(flows, time.Second)
	e.POST("/users", h.Create)
	e.GET("/users", h.Read)
	e.PUT("/users", h.Replace)
	e.PATCH("/users", h.Modify)
	e.DELETE("/users", h.Delete)
	return e
}

func TestUsers_CreateHidesCredential(t *testing.T) {
	flows := &fakeUserFlows{}
	rec := do(userEcho(flows), http.MethodPost, "/users",
		`{"username":"alice","password":"pw","email":"a@example.com","role":"user"}`, echo.MIMEApplicationJSON)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderLocation))
	assert.NotContains(t, rec.Body.String(), `"salt"`)
	assert.NotContains(t, rec.Body.String(), `"hash"`)
	assert.Equal(t, "pw", flows.in.Password)
}

func TestUsers_Selectors(t *testing.T) {
	flows := &fakeUserFlows{}
	e := userEcho(flows)

	rec := do(e, http.MethodGet, "/users?username=Alice", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", flows.sel.Username)

	id := primitive.NewObjectID()
	do(e, http.MethodDelete, "/users?id="+id.Hex(), "", "")
	assert.Equal(t, id, flows.sel.ID)

	do(e, http.MethodPatch, "/users?email=A@Example.com", `{"lastname":"L"}`, echo.MIMEApplicationJSON)
	assert.Equal(t, "a@example.com", flows.sel.Email)
	assert.Equal(t, "L", flows.in.LastName)

	rec = do(e, http.MethodGet, "/users?id=zzz", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperror.MsgUnacceptableID, decodeError(t, rec).Message)
}

func TestUsers_ListFilters(t *testing.T) {
	flows := &fakeUserFlows{}
	rec := do(userEcho(flows), http.MethodGet, "/users?role=Admin&firstname=Ann", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.UserFilter{Role: "admin", FirstName: "Ann"}, flows.filter)
}

func TestUsers_ReplaceBranches(t *testing.T) {
	flows := &fakeUserFlows{}
	e := userEcho(flows)

	rec := do(e, http.MethodPut, "/users?username=alice", `{"username":"alice"}`, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodPut, "/users", `{"_id":"`+primitive.NewObjectID().Hex()+`","username":"carol"}`, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderLocation))

	flows.err = apperror.UnsupportedOption()
	rec = do(e, http.MethodPut, "/users", `{}`, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apperror.MsgUnsupportedOpt, decodeError(t, rec).Message)
}

/************ health ************/

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	e := newEcho()
	e.GET("/up", Health(pingFunc(func(context.Context) error { return nil })))
	e.GET("/down", Health(pingFunc(func(context.Context) error { return errors.New("no") })))

	rec := do(e, http.MethodGet, "/up", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = do(e, http.MethodGet, "/down", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
