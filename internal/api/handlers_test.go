package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eion/accounts/internal/health"
	"github.com/eion/accounts/internal/metrics"
	"github.com/eion/accounts/internal/mocks"
	"github.com/eion/accounts/internal/users"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(manager users.UserManager) *gin.Engine {
	return NewRouter(RouterConfig{
		Users:          manager,
		Logger:         zap.NewNop(),
		MaxRequestSize: 1024,
	})
}

func perform(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateUserHandler(t *testing.T) {
	manager := new(mocks.UserManager)
	manager.On("CreateUser", mock.Anything, mock.MatchedBy(func(u *users.User) bool {
		return u.UID == "u1" && u.Username == "alice" && u.DateOfBirth == "1990-01-01"
	})).Return(nil)

	w := perform(newTestRouter(manager), http.MethodPost, "/users",
		`{"uid":"u1","username":"alice","dateOfBirth":"1990-01-01"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "User created", w.Body.String())
	manager.AssertExpectations(t)
}

func TestCreateUserHandlerDuplicate(t *testing.T) {
	manager := new(mocks.UserManager)
	manager.On("CreateUser", mock.Anything, mock.AnythingOfType("*users.User")).
		Return(users.NewDuplicateUserError("u1"))

	w := perform(newTestRouter(manager), http.MethodPost, "/users", `{"uid":"u1"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User already exists", w.Body.String())
}

func TestCreateUserHandlerInvalidJSON(t *testing.T) {
	manager := new(mocks.UserManager)

	w := perform(newTestRouter(manager), http.MethodPost, "/users", `{"uid":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, w.Body.String())
	manager.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestCreateUserHandlerBodyTooLarge(t *testing.T) {
	manager := new(mocks.UserManager)
	body := `{"uid":"u1","photo":"` + strings.Repeat("x", 2048) + `"}`

	w := perform(newTestRouter(manager), http.MethodPost, "/users", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "too large")
	manager.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestListUsersHandler(t *testing.T) {
	manager := new(mocks.UserManager)
	manager.On("ListUsers", mock.Anything).Return([]*users.User{{UID: "u1"}, {UID: "u2"}}, nil)

	w := perform(newTestRouter(manager), http.MethodGet, "/users", "")

	require.Equal(t, http.StatusOK, w.Code)
	var got []users.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got, 2)
	assert.Equal(t, "u2", got[1].UID)
}

func TestListUsersHandlerEmpty(t *testing.T) {
	manager := new(mocks.UserManager)
	manager.On("ListUsers", mock.Anything).Return(nil, nil)

	w := perform(newTestRouter(manager), http.MethodGet, "/users", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestListUsersHandlerStoreFailure(t *testing.T) {
	manager := new(mocks.UserManager)
	storeErr := users.NewStoreConnectionError("find_all", "pg", errors.New("connection refused"))
	manager.On("ListUsers", mock.Anything).Return(nil, storeErr)

	w := perform(newTestRouter(manager), http.MethodGet, "/users", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, storeErr.Error(), w.Body.String())
}

func TestGetUserHandler(t *testing.T) {
	manager := new(mocks.UserManager)
	manager.On("GetUser", mock.Anything, "u1").Return(&users.User{UID: "u1", Email: "a@x.com"}, nil)
	manager.On("GetUser", mock.Anything, "nosuchuser").Return(nil, nil)

	router := newTestRouter(manager)

	w := perform(router, http.MethodGet, "/users/u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"uid":"u1","username":"","email":"a@x.com","dateOfBirth":"","gender":"","region":"","photo":""}`,
		w.Body.String())

	w = perform(router, http.MethodGet, "/users/nosuchuser", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestUpdateUserHandler(t *testing.T) {
	manager := new(mocks.UserManager)
	manager.On("UpdateUser", mock.Anything, "u1", users.UserUpdate{"region": "Kyiv"}).Return(nil)
	manager.On("UpdateUser", mock.Anything, "u1", users.UserUpdate{"uid": "u2"}).
		Return(users.NewValidationError("uid", "u2", "uid cannot be updated"))

	router := newTestRouter(manager)

	w := perform(router, http.MethodPatch, "/users/u1", `{"region":"Kyiv"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "User updated", w.Body.String())

	w = perform(router, http.MethodPatch, "/users/u1", `{"uid":"u2"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "uid cannot be updated")
}

func TestDeleteUserHandler(t *testing.T) {
	deletedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	manager := new(mocks.UserManager)
	manager.On("DeleteUser", mock.Anything, "u1").Return(deletedAt, nil)
	manager.On("DeleteUser", mock.Anything, "u2").Return(time.Time{}, nil)
	manager.On("DeleteUser", mock.Anything, "missing").Return(time.Time{}, users.NewNotFoundError("missing"))

	router := newTestRouter(manager)

	w := perform(router, http.MethodDelete, "/users/u1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deletedAt":"2024-05-01T12:00:00Z"}`, w.Body.String())

	w = perform(router, http.MethodDelete, "/users/u2", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deletedAt":""}`, w.Body.String())

	w = perform(router, http.MethodDelete, "/users/missing", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "user not found: missing", w.Body.String())
}

func TestRouterAllowsAnyOrigin(t *testing.T) {
	manager := new(mocks.UserManager)
	manager.On("ListUsers", mock.Anything).Return([]*users.User{}, nil)

	router := newTestRouter(manager)

	// httptest requests target example.com, so the origin must differ from it
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Origin", "http://client.test")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterPreflightAllowsMutatingMethods(t *testing.T) {
	router := newTestRouter(new(mocks.UserManager))

	req := httptest.NewRequest(http.MethodOptions, "/users", nil)
	req.Header.Set("Origin", "http://client.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	allowed := w.Header().Get("Access-Control-Allow-Methods")
	assert.Contains(t, allowed, http.MethodPatch)
	assert.Contains(t, allowed, http.MethodDelete)
}

func TestRouterCountsRecoveredPanics(t *testing.T) {
	router := newTestRouter(new(mocks.UserManager))
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/boom", "5xx")
	before := testutil.ToFloat64(counter)

	w := perform(router, http.MethodGet, "/boom", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestRouterRequestID(t *testing.T) {
	manager := new(mocks.UserManager)
	manager.On("ListUsers", mock.Anything).Return([]*users.User{}, nil)
	router := newTestRouter(manager)

	w := perform(router, http.MethodGet, "/users", "")
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set(requestIDHeader, "req-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(requestIDHeader))
}

func TestHealthEndpoint(t *testing.T) {
	healthy := new(mocks.UserStore)
	healthy.On("Backend").Return("sqlite")
	healthy.On("Ping", mock.Anything).Return(nil)

	manager := health.NewManager(zap.NewNop())
	manager.AddChecker(health.NewStoreHealthChecker(healthy))

	router := NewRouter(RouterConfig{Users: new(mocks.UserManager), Health: manager})

	w := perform(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "healthy", body["services"].(map[string]any)["store:sqlite"])

	broken := new(mocks.UserStore)
	broken.On("Backend").Return("pg")
	broken.On("Ping", mock.Anything).Return(errors.New("connection refused"))
	manager.AddChecker(health.NewStoreHealthChecker(broken))

	w = perform(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	manager := new(mocks.UserManager)
	manager.On("ListUsers", mock.Anything).Return([]*users.User{}, nil)
	router := newTestRouter(manager)

	perform(router, http.MethodGet, "/users", "")

	w := perform(router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "accounts_http_requests_total")
}

// TestUserLifecycle drives the router against a real relational store
func TestUserLifecycle(t *testing.T) {
	ctx := context.Background()

	db, err := users.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	require.NoError(t, users.CreateSchema(ctx, db))
	store := users.NewSQLStore(db)
	t.Cleanup(func() { _ = store.Close(ctx) })

	router := newTestRouter(users.NewService(store, zap.NewNop()))

	w := perform(router, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	payload, err := json.Marshal(users.User{UID: "u1", Username: "alice", Email: "a@x.com", Region: "Lviv"})
	require.NoError(t, err)

	w = perform(router, http.MethodPost, "/users", string(payload))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "User created", w.Body.String())

	w = perform(router, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []users.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0].Username)

	w = perform(router, http.MethodGet, "/users/u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got users.User
	require.NoError(t, json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&got))
	assert.Equal(t, "a@x.com", got.Email)

	w = perform(router, http.MethodPost, "/users", string(payload))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User already exists", w.Body.String())

	w = perform(router, http.MethodGet, "/users/nosuchuser", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	w = perform(router, http.MethodPatch, "/users/u1", `{"region":"Kyiv"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = perform(router, http.MethodGet, "/users/u1", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Kyiv", got.Region)

	w = perform(router, http.MethodDelete, "/users/u1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = perform(router, http.MethodGet, "/users/u1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}
