package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-api/internal/auth"
	"todo-api/internal/repository/sqlite"
	"todo-api/internal/service"
	"todo-api/internal/validation"
)

type testServer struct {
	router *gin.Engine
	tokens *auth.Tokens
	users  service.UserService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "todo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	todoRepo := sqlite.NewTodoRepository(db)
	userRepo := sqlite.NewUserRepository(db)
	require.NoError(t, todoRepo.Init(context.Background()))
	require.NoError(t, userRepo.Init(context.Background()))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	tokens := auth.NewTokens("test-secret", time.Hour)
	users := service.NewUserService(userRepo)
	todos := service.NewTodoService(todoRepo, service.TodoConfig{Logger: logger})

	router := gin.New()
	NewHandler(todos, users, tokens, logger).RegisterRoutes(router)
	return &testServer{router: router, tokens: tokens, users: users}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("x-auth-token", token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, name, email string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/user", "", gin.H{"name": name, "email": email, "password": "s3cret!"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

type createResponse struct {
	Msg     string       `json:"msg"`
	NewTodo TodoResponse `json:"newTodo"`
}

type updateResponse struct {
	Msg         string       `json:"msg"`
	UpdatedTodo TodoResponse `json:"updatedTodo"`
}

type msgResponse struct {
	Msg string `json:"msg"`
}

type errorsResponse struct {
	Errors validation.Errors `json:"errors"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestTodoLifecycle(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.register(t, "Alice", "alice@example.com")
	bob := srv.register(t, "Bob", "bob@example.com")
	aliceID, err := srv.tokens.Verify(alice)
	require.NoError(t, err)

	rec := srv.do(t, http.MethodPost, "/api/todo/", alice, gin.H{"title": "Buy milk", "description": "2% lowfat"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[createResponse](t, rec)
	assert.Equal(t, "Todo saved", created.Msg)
	assert.Equal(t, "Buy milk", created.NewTodo.Title)
	assert.Equal(t, aliceID, created.NewTodo.User)
	require.NotEmpty(t, created.NewTodo.ID)

	rec = srv.do(t, http.MethodGet, "/api/todo/", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]TodoResponse](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Buy milk", list[0].Title)
	assert.Equal(t, "2% lowfat", list[0].Description)

	rec = srv.do(t, http.MethodPut, "/api/todo/"+created.NewTodo.ID, bob, gin.H{"title": "Mine now", "description": "stolen item"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "You are not a valid user", decode[msgResponse](t, rec).Msg)

	rec = srv.do(t, http.MethodDelete, "/api/todo/"+created.NewTodo.ID, bob, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/todo", alice, nil)
	list = decode[[]TodoResponse](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Buy milk", list[0].Title)

	rec = srv.do(t, http.MethodPut, "/api/todo/"+created.NewTodo.ID, alice, gin.H{"title": "Buy oat milk", "description": "barista", "user": "someone-else"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[updateResponse](t, rec)
	assert.Equal(t, "todo updated", updated.Msg)
	assert.Equal(t, "Buy oat milk", updated.UpdatedTodo.Title)
	assert.Equal(t, aliceID, updated.UpdatedTodo.User)

	rec = srv.do(t, http.MethodDelete, "/api/todo/"+created.NewTodo.ID, alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "todo deleted", decode[msgResponse](t, rec).Msg)

	rec = srv.do(t, http.MethodGet, "/api/todo/", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListMineNeverShowsOtherUsersItems(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.register(t, "Alice", "alice@example.com")
	bob := srv.register(t, "Bob", "bob@example.com")

	for _, title := range []string{"alice one", "alice two"} {
		rec := srv.do(t, http.MethodPost, "/api/todo/", alice, gin.H{"title": title, "description": "details"})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := srv.do(t, http.MethodPost, "/api/todo/", bob, gin.H{"title": "bob one", "description": "details"})
	require.Equal(t, http.StatusCreated, rec.Code)

	list := decode[[]TodoResponse](t, srv.do(t, http.MethodGet, "/api/todo/", bob, nil))
	require.Len(t, list, 1)
	assert.Equal(t, "bob one", list[0].Title)

	list = decode[[]TodoResponse](t, srv.do(t, http.MethodGet, "/api/todo/", alice, nil))
	require.Len(t, list, 2)
	assert.Equal(t, "alice one", list[0].Title)
	assert.Equal(t, "alice two", list[1].Title)
}

func TestCreateValidation(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.register(t, "Alice", "alice@example.com")

	rec := srv.do(t, http.MethodPost, "/api/todo/", alice, gin.H{"title": "abc", "description": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errs := decode[errorsResponse](t, rec).Errors
	require.Len(t, errs, 2)
	assert.Equal(t, "title should contain atleast 4 characters", errs[0].Msg)
	assert.Equal(t, "title", errs[0].Param)
	assert.Equal(t, "description should not be empty", errs[1].Msg)

	rec = srv.do(t, http.MethodPost, "/api/todo/", alice, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, decode[errorsResponse](t, rec).Errors, 2)

	rec = srv.do(t, http.MethodPost, "/api/todo/", alice, "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.JSONEq(t, `[]`, srv.do(t, http.MethodGet, "/api/todo/", alice, nil).Body.String())
}

func TestUpdateValidationLeavesItemUnchanged(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.register(t, "Alice", "alice@example.com")

	created := decode[createResponse](t, srv.do(t, http.MethodPost, "/api/todo/", alice, gin.H{"title": "Buy milk", "description": "2% lowfat"}))

	rec := srv.do(t, http.MethodPut, "/api/todo/"+created.NewTodo.ID, alice, gin.H{"title": "no", "description": "ok"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, decode[errorsResponse](t, rec).Errors, 2)

	list := decode[[]TodoResponse](t, srv.do(t, http.MethodGet, "/api/todo/", alice, nil))
	require.Len(t, list, 1)
	assert.Equal(t, "Buy milk", list[0].Title)
}

func TestMissingTodoIsNotFound(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.register(t, "Alice", "alice@example.com")

	rec := srv.do(t, http.MethodPut, "/api/todo/does-not-exist", alice, gin.H{"title": "Buy milk", "description": "2% lowfat"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Todo not found", decode[msgResponse](t, rec).Msg)

	rec = srv.do(t, http.MethodDelete, "/api/todo/does-not-exist", alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/todo/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "No token, authorization denied", decode[msgResponse](t, rec).Msg)

	rec = srv.do(t, http.MethodGet, "/api/todo/", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token is not valid", decode[msgResponse](t, rec).Msg)

	forged, err := auth.NewTokens("other-secret", time.Hour).Issue("someone")
	require.NoError(t, err)
	rec = srv.do(t, http.MethodPost, "/api/todo/", forged, gin.H{"title": "Buy milk", "description": "2% lowfat"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := srv.register(t, "Alice", "alice@example.com")
	req := httptest.NewRequest(http.MethodGet, "/api/todo/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	bearer := httptest.NewRecorder()
	srv.router.ServeHTTP(bearer, req)
	assert.Equal(t, http.StatusOK, bearer.Code)
}

func TestRegisterLoginAndCurrentUser(t *testing.T) {
	srv := newTestServer(t)
	srv.register(t, "Alice", "alice@example.com")

	rec := srv.do(t, http.MethodPost, "/api/user", "", gin.H{"name": "Alice", "email": "alice@example.com", "password": "s3cret!"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User already exists", decode[errorsResponse](t, rec).Errors[0].Msg)

	rec = srv.do(t, http.MethodPost, "/api/user", "", gin.H{"name": "", "email": "bad", "password": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, decode[errorsResponse](t, rec).Errors, 3)

	rec = srv.do(t, http.MethodPost, "/api/auth", "", gin.H{"email": "alice@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid Credentials", decode[errorsResponse](t, rec).Errors[0].Msg)

	rec = srv.do(t, http.MethodPost, "/api/auth", "", gin.H{"email": "alice@example.com", "password": "s3cret!"})
	require.Equal(t, http.StatusOK, rec.Code)
	token := decode[struct {
		Token string `json:"token"`
	}](t, rec).Token

	rec = srv.do(t, http.MethodGet, "/api/auth", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	user := decode[UserResponse](t, rec)
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotContains(t, rec.Body.String(), "password")

	ghost, err := srv.tokens.Issue("ghost")
	require.NoError(t, err)
	rec = srv.do(t, http.MethodGet, "/api/auth", ghost, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportWithoutStorageIsUnavailable(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.register(t, "Alice", "alice@example.com")

	rec := srv.do(t, http.MethodPost, "/api/todo/export", alice, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = srv.do(t, http.MethodGet, "/api/todo/export", alice, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthAndCORS(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodOptions, "/api/todo/", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
