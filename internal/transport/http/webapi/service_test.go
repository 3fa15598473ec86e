package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"chat-server-go/internal/domain/auth"
	"chat-server-go/internal/domain/auth/store"
	"chat-server-go/internal/domain/chat"
	"chat-server-go/internal/domain/llm"
	"chat-server-go/internal/platform/config"
	"chat-server-go/internal/platform/logging"
	"chat-server-go/internal/platform/observability"
	"chat-server-go/internal/platform/storage"
	platformtesting "chat-server-go/internal/platform/testing"
	httptransport "chat-server-go/internal/transport/http"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testServer struct {
	handler http.Handler
	db      *gorm.DB
	clock   *testClock
}

type serverOptions struct {
	completer llm.Completer
	limiter   *httptransport.LoginLimiter
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()

	db := platformtesting.SetupTestDB(t)

	identities, err := store.NewSQL(db)
	require.NoError(t, err)
	hasher, err := auth.NewPasswordHasher(auth.HasherConfig{
		Algorithm: auth.AlgorithmArgon2id,
		Argon2:    auth.Argon2Params{Time: 1, MemoryKiB: 64, Threads: 1},
	})
	require.NoError(t, err)

	clock := &testClock{now: time.Now().UTC()}
	manager, err := auth.NewManager(auth.Options{
		Store:  identities,
		Hasher: hasher,
		Token:  auth.TokenConfig{Secret: "webapi-test-secret", TTL: 30 * time.Minute},
		Logger: logging.Nop(),
		Clock:  clock.Now,
	})
	require.NoError(t, err)

	metrics, err := observability.NewMetrics()
	require.NoError(t, err)
	router, err := httptransport.Build(httptransport.Options{
		Config:         config.DefaultConfig(),
		Logger:         logging.Nop(),
		Metrics:        metrics,
		AuthMiddleware: httptransport.BearerAuth(manager, logging.Nop(), metrics),
	})
	require.NoError(t, err)

	svc, err := NewService(Options{
		Users:        manager,
		Chats:        chat.NewService(storage.NewChatRepository(db), opts.completer, logging.Nop()),
		Health:       func(ctx context.Context) error { return storage.Ping(ctx, db) },
		LoginLimiter: opts.limiter,
		Metrics:      metrics,
		Logger:       logging.Nop(),
	})
	require.NoError(t, err)
	require.NoError(t, svc.Register(context.Background(), router.API, router.Secured))

	return &testServer{handler: router.Engine, db: db, clock: clock}
}

func (s *testServer) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, target, strings.NewReader(string(raw)))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"username": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, email, password string) uint {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/users", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var env struct {
		Data struct {
			ID uint `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Data.ID
}

func (s *testServer) token(t *testing.T, email, password string) string {
	t.Helper()
	rec := s.login(t, email, password)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "bearer", body.TokenType)
	require.NotEmpty(t, body.AccessToken)
	return body.AccessToken
}

func assertAuthFailure(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	assert.JSONEq(t, `{"detail":"Could not validate credentials"}`, rec.Body.String())
}

func TestLoginScenario(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	id := srv.register(t, "alice@example.com", "pw123")
	token := srv.token(t, "alice@example.com", "pw123")

	rec := srv.do(t, http.MethodGet, fmt.Sprintf("/users/%d", id), token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"email":"alice@example.com"`)
	assert.NotContains(t, rec.Body.String(), "argon2id")

	assertAuthFailure(t, srv.do(t, http.MethodGet, fmt.Sprintf("/users/%d", id), token[:len(token)-1], nil))

	srv.clock.Advance(31 * time.Minute)
	assertAuthFailure(t, srv.do(t, http.MethodGet, fmt.Sprintf("/users/%d", id), token, nil))
}

func TestLoginFailuresAreIdentical(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	srv.register(t, "alice@example.com", "pw123")

	unknown := srv.login(t, "nobody@example.com", "pw123")
	wrong := srv.login(t, "alice@example.com", "nope")
	missing := srv.login(t, "", "")

	for _, rec := range []*httptest.ResponseRecorder{unknown, wrong, missing} {
		assertAuthFailure(t, rec)
	}
	assert.Equal(t, unknown.Body.String(), wrong.Body.String())
	assert.Equal(t, unknown.Header().Get("WWW-Authenticate"), wrong.Header().Get("WWW-Authenticate"))
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	id := srv.register(t, "dormant@example.com", "pw123")
	token := srv.token(t, "dormant@example.com", "pw123")

	require.NoError(t, srv.db.Model(&storage.User{}).Where("id = ?", id).Update("is_active", false).Error)

	assertAuthFailure(t, srv.login(t, "dormant@example.com", "pw123"))
	assertAuthFailure(t, srv.do(t, http.MethodGet, "/users", token, nil))
}

func TestLoginRateLimited(t *testing.T) {
	srv := newTestServer(t, serverOptions{limiter: httptransport.NewLoginLimiter(0.001, 2)})
	srv.register(t, "alice@example.com", "pw123")

	srv.login(t, "alice@example.com", "wrong")
	srv.login(t, "alice@example.com", "wrong")
	rec := srv.login(t, "alice@example.com", "pw123")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRegisterErrors(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	srv.register(t, "alice@example.com", "pw123")

	rec := srv.do(t, http.MethodPost, "/users", "", map[string]string{"email": "alice@example.com", "password": "other"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email already registered")

	rec = srv.do(t, http.MethodPost, "/users", "", map[string]string{"email": "not-an-email", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/users", "", map[string]string{"email": "bob@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The original password still works after the conflicting attempt.
	srv.token(t, "alice@example.com", "pw123")
}

func TestUserRoutes(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	srv.register(t, "a@example.com", "pw")
	srv.register(t, "b@example.com", "pw")
	token := srv.token(t, "a@example.com", "pw")

	assertAuthFailure(t, srv.do(t, http.MethodGet, "/users", "", nil))

	rec := srv.do(t, http.MethodGet, "/users?skip=1&limit=5", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Data []struct {
			Email string `json:"email"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Len(t, env.Data, 1)
	assert.Equal(t, "b@example.com", env.Data[0].Email)

	assert.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodGet, "/users?skip=-1", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodGet, "/users/abc", token, nil).Code)

	rec = srv.do(t, http.MethodGet, "/users/999", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "User not found")
}

func TestChatRoutes(t *testing.T) {
	completer := llm.CompleterFunc(func(_ context.Context, prompt string) (llm.Completion, error) {
		return llm.Completion{Text: "echo: " + prompt, Model: "fake-model", Usage: llm.Usage{TotalTokens: 3}}, nil
	})
	srv := newTestServer(t, serverOptions{completer: completer})
	aliceID := srv.register(t, "alice@example.com", "pw")
	bobID := srv.register(t, "bob@example.com", "pw")
	alice := srv.token(t, "alice@example.com", "pw")
	bob := srv.token(t, "bob@example.com", "pw")

	rec := srv.do(t, http.MethodPost, fmt.Sprintf("/users/%d/chat", aliceID), alice,
		map[string]string{"prompt": "<b>Hello</b> there", "response": "hi <script>x()</script>"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"prompt":"Hello there"`)
	assert.Contains(t, rec.Body.String(), `"response":"hi"`)

	rec = srv.do(t, http.MethodPost, fmt.Sprintf("/users/%d/chat", bobID), alice,
		map[string]string{"prompt": "impersonate"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, http.MethodPost, "/chat?prompt=What+is+Go", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"response":"echo: What is Go"`)
	assert.Contains(t, rec.Body.String(), `"model":"fake-model"`)

	rec = srv.do(t, http.MethodPost, "/chat", bob, map[string]string{"prompt": "bob asks"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodPost, "/chat", alice, map[string]string{"prompt": strings.Repeat("x", 256)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "prompt is too long")

	rec = srv.do(t, http.MethodGet, "/chat", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Data []chat.Chat `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Len(t, env.Data, 2)
	for _, c := range env.Data {
		assert.Equal(t, aliceID, c.OwnerID)
	}

	rec = srv.do(t, http.MethodGet, "/chat?content=WHAT", alice, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Len(t, env.Data, 1)
	assert.Equal(t, "What is Go", env.Data[0].Prompt)

	assert.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodGet, "/chat?from=yesterday", alice, nil).Code)
	rec = srv.do(t, http.MethodGet, "/chat?from=2000-01-01&to=2000-12-31", alice, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Empty(t, env.Data)
}

func TestAskWithoutCompleter(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	srv.register(t, "alice@example.com", "pw")
	token := srv.token(t, "alice@example.com", "pw")

	rec := srv.do(t, http.MethodPost, "/chat?prompt=hello", token, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "text generation failed")

	var count int64
	require.NoError(t, srv.db.Model(&storage.Chat{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAskCompleterFailure(t *testing.T) {
	completer := llm.CompleterFunc(func(context.Context, string) (llm.Completion, error) {
		return llm.Completion{}, errors.New("provider said: invalid api key sk-secret")
	})
	srv := newTestServer(t, serverOptions{completer: completer})
	srv.register(t, "alice@example.com", "pw")
	token := srv.token(t, "alice@example.com", "pw")

	rec := srv.do(t, http.MethodPost, "/chat", token, map[string]string{"prompt": "hello"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sk-secret")
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	rec := srv.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(Options{})
	assert.Error(t, err)
}
