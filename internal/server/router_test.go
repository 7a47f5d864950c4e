package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/taskflow/internal/auth"
	"github.com/taskflow/taskflow/internal/cache"
	"github.com/taskflow/taskflow/internal/metrics"
	"github.com/taskflow/taskflow/internal/model"
	"github.com/taskflow/taskflow/internal/service"
	"github.com/taskflow/taskflow/internal/testutil"
	"github.com/taskflow/taskflow/internal/testutil/memstore"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type authData struct {
	Token string `json:"token"`
	User  struct {
		ID    string     `json:"id"`
		Email string     `json:"email"`
		Role  model.Role `json:"role"`
	} `json:"user"`
}

type taskData struct {
	Task struct {
		ID       string             `json:"id"`
		Title    string             `json:"title"`
		Status   model.TaskStatus   `json:"status"`
		Priority model.TaskPriority `json:"priority"`
		User     struct {
			ID string `json:"id"`
		} `json:"user"`
	} `json:"task"`
}

type testAPI struct {
	t       *testing.T
	handler http.Handler
	store   *memstore.Store
	hasher  *auth.PasswordHasher
	metrics *metrics.InMemoryRecorder
	redis   *miniredis.Miniredis
}

func newTestAPI(t *testing.T, mutate func(*RouterConfig)) *testAPI {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter := cache.NewFromClient(client)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()
	hasher := auth.NewPasswordHasher(auth.Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}, 2)
	tokens := auth.NewTokenService([]byte("0123456789abcdef0123456789abcdef"), time.Hour, "taskflow-test")
	recorder := metrics.NewInMemory()

	cfg := RouterConfig{
		CORSAllowedOrigins: []string{"https://app.example.com"},
		MaxRequestBodySize: 10 << 10,
		RateLimitEnabled:   true,
		RateLimitMax:       1000,
		RateLimitWindow:    time.Minute,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	router := NewRouter(Deps{
		Config:      cfg,
		Logger:      logger,
		Auth:        service.NewAuthService(store, hasher, tokens, nil, recorder, logger),
		Tasks:       service.NewTaskService(store, recorder),
		Users:       service.NewUserService(store, store, store, nil, recorder, logger),
		Tokens:      tokens,
		UserLoader:  store,
		RateLimiter: limiter,
		Metrics:     recorder,
		DB:          store,
		Cache:       limiter,
	})

	return &testAPI{
		t:       t,
		handler: router,
		store:   store,
		hasher:  hasher,
		metrics: recorder,
		redis:   mr,
	}
}

func (a *testAPI) do(method, path, token string, body any) (*httptest.ResponseRecorder, apiResponse) {
	a.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var resp apiResponse
	if rec.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec, resp
}

func (a *testAPI) register(name, email, password string) authData {
	a.t.Helper()
	rec, resp := a.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": name, "email": email, "password": password,
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())

	var data authData
	require.NoError(a.t, json.Unmarshal(resp.Data, &data))
	return data
}

// seedAdmin stores an active admin with password "adminpass" and logs in.
func (a *testAPI) seedAdmin() authData {
	a.t.Helper()
	admin := testutil.NewTestUser(a.t, "root", model.RoleAdmin)
	hash, err := a.hasher.Hash(context.Background(), "adminpass")
	require.NoError(a.t, err)
	admin.PasswordHash = hash
	require.NoError(a.t, a.store.CreateUser(context.Background(), admin))

	rec, resp := a.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": admin.Email, "password": "adminpass",
	})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())

	var data authData
	require.NoError(a.t, json.Unmarshal(resp.Data, &data))
	return data
}

func (a *testAPI) createTask(token string, body map[string]any) taskData {
	a.t.Helper()
	rec, resp := a.do(http.MethodPost, "/api/v1/tasks", token, body)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())

	var data taskData
	require.NoError(a.t, json.Unmarshal(resp.Data, &data))
	return data
}

func TestScenarioA_RegisterAndLogin(t *testing.T) {
	api := newTestAPI(t, nil)

	registered := api.register("Alice", "alice@x.com", "secret1")
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, "alice@x.com", registered.User.Email)
	assert.Equal(t, model.RoleUser, registered.User.Role)

	rec, resp := api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "alice@x.com", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Login successful", resp.Message)

	var loggedIn authData
	require.NoError(t, json.Unmarshal(resp.Data, &loggedIn))

	rec, _ = api.do(http.MethodGet, "/api/v1/auth/me", loggedIn.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "alice@x.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", resp.Message)
	assert.False(t, resp.Success)
}

func TestScenarioB_OwnershipGate(t *testing.T) {
	api := newTestAPI(t, nil)
	alice := api.register("Alice", "alice@x.com", "secret1")
	bob := api.register("Bob", "bob@x.com", "secret2")
	admin := api.seedAdmin()

	created := api.createTask(alice.Token, map[string]any{"title": "Ship v1", "priority": "high"})
	assert.Equal(t, model.TaskStatusPending, created.Task.Status)
	assert.Equal(t, model.TaskPriorityHigh, created.Task.Priority)
	assert.Equal(t, alice.User.ID, created.Task.User.ID)

	path := "/api/v1/tasks/" + created.Task.ID

	rec, resp := api.do(http.MethodGet, path, bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Access denied", resp.Message)

	rec, _ = api.do(http.MethodGet, path, admin.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = api.do(http.MethodGet, path, alice.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestScenarioC_DeactivatedTokenRejected(t *testing.T) {
	api := newTestAPI(t, nil)
	alice := api.register("Alice", "alice@x.com", "secret1")
	admin := api.seedAdmin()

	rec, resp := api.do(http.MethodPut, "/api/v1/admin/users/"+alice.User.ID, admin.Token, map[string]any{"isActive": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "User updated", resp.Message)

	rec, resp = api.do(http.MethodGet, "/api/v1/tasks", alice.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Account deactivated", resp.Message)
	assert.Equal(t, uint64(1), api.metrics.Snapshot().AuthFailures["account_deactivated"])
}

func TestDeactivationHoldsAgainstConcurrentProfileUpdates(t *testing.T) {
	api := newTestAPI(t, nil)
	alice := api.register("Alice", "alice@x.com", "secret1")
	admin := api.seedAdmin()

	const writers = 20
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			body := strings.NewReader(fmt.Sprintf(`{"name":"Alice %d"}`, i))
			req := httptest.NewRequest(http.MethodPut, "/api/v1/auth/me", body)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+alice.Token)
			api.handler.ServeHTTP(httptest.NewRecorder(), req)
		}(i)
	}
	close(start)
	rec, _ := api.do(http.MethodPut, "/api/v1/admin/users/"+alice.User.ID, admin.Token, map[string]any{"isActive": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	wg.Wait()

	stored, err := api.store.GetUserByID(context.Background(), alice.User.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	rec, resp := api.do(http.MethodGet, "/api/v1/auth/me", alice.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Account deactivated", resp.Message)
}

func TestScenarioD_DeleteCascades(t *testing.T) {
	api := newTestAPI(t, nil)
	alice := api.register("Alice", "alice@x.com", "secret1")
	admin := api.seedAdmin()

	api.createTask(alice.Token, map[string]any{"title": "First task"})
	api.createTask(alice.Token, map[string]any{"title": "Second task"})

	listPath := "/api/v1/tasks?userId=" + alice.User.ID

	var before struct {
		Pagination service.Pagination `json:"pagination"`
	}
	rec, resp := api.do(http.MethodGet, listPath, admin.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &before))
	assert.Equal(t, int64(2), before.Pagination.Total)

	rec, resp = api.do(http.MethodDelete, "/api/v1/admin/users/"+alice.User.ID, admin.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "User deleted", resp.Message)

	var after struct {
		Tasks      []json.RawMessage  `json:"tasks"`
		Pagination service.Pagination `json:"pagination"`
	}
	rec, resp = api.do(http.MethodGet, listPath, admin.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &after))
	assert.Empty(t, after.Tasks)
	assert.Equal(t, int64(0), after.Pagination.Total)
}

func TestNonOwnerForbiddenWhetherOrNotTaskExists(t *testing.T) {
	api := newTestAPI(t, nil)
	alice := api.register("Alice", "alice@x.com", "secret1")
	bob := api.register("Bob", "bob@x.com", "secret2")
	admin := api.seedAdmin()

	existing := api.createTask(alice.Token, map[string]any{"title": "Private task"}).Task.ID
	missing := model.NewID()

	requests := []struct {
		method string
		suffix string
		body   any
	}{
		{http.MethodGet, "", nil},
		{http.MethodPut, "", map[string]any{"title": "Hijacked"}},
		{http.MethodPatch, "/status", map[string]any{}},
		{http.MethodDelete, "", nil},
	}

	for _, id := range []string{existing, missing} {
		for _, req := range requests {
			rec, resp := api.do(req.method, "/api/v1/tasks/"+id+req.suffix, bob.Token, req.body)
			assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", req.method, id)
			assert.Equal(t, "Access denied", resp.Message)
		}
	}

	rec, _ := api.do(http.MethodGet, "/api/v1/tasks/"+missing, admin.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = api.do(http.MethodGet, "/api/v1/tasks/"+existing, alice.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminSelfGuards(t *testing.T) {
	api := newTestAPI(t, nil)
	admin := api.seedAdmin()
	path := "/api/v1/admin/users/" + admin.User.ID

	rec, resp := api.do(http.MethodDelete, path, admin.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Cannot delete own account", resp.Message)

	rec, _ = api.do(http.MethodPut, path, admin.Token, map[string]any{"role": "user"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = api.do(http.MethodGet, path, admin.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	api := newTestAPI(t, nil)
	alice := api.register("Alice", "alice@x.com", "secret1")

	for _, path := range []string{"/api/v1/admin/stats", "/api/v1/admin/users", "/api/v1/admin/activity"} {
		rec, _ := api.do(http.MethodGet, path, alice.Token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)

		rec, resp := api.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "No token provided", resp.Message)
	}
}

func TestDuplicateRegistrationIgnoresCase(t *testing.T) {
	api := newTestAPI(t, nil)
	api.register("Alice", "alice@x.com", "secret1")

	rec, resp := api.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Alice Again", "email": "  ALICE@X.com ", "password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Email already registered", resp.Message)
}

func TestRegisterAdminRoleNeedsAdminCaller(t *testing.T) {
	api := newTestAPI(t, nil)
	admin := api.seedAdmin()

	body := map[string]string{"name": "Eve", "email": "eve@x.com", "password": "secret1", "role": "admin"}
	rec, resp := api.do(http.MethodPost, "/api/v1/auth/register", "", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	var anon authData
	require.NoError(t, json.Unmarshal(resp.Data, &anon))
	assert.Equal(t, model.RoleUser, anon.User.Role)

	body["email"] = "carol@x.com"
	rec, resp = api.do(http.MethodPost, "/api/v1/auth/register", admin.Token, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	var promoted authData
	require.NoError(t, json.Unmarshal(resp.Data, &promoted))
	assert.Equal(t, model.RoleAdmin, promoted.User.Role)
}

func TestValidationMessages(t *testing.T) {
	api := newTestAPI(t, nil)

	rec, resp := api.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "A", "email": "not-an-email", "password": "123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Name 2-50 chars. Invalid email. Password min 6 chars", resp.Message)

	alice := api.register("Alice", "alice@x.com", "secret1")
	rec, resp = api.do(http.MethodPost, "/api/v1/tasks", alice.Token, map[string]any{"title": "ab", "status": "done"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Title 3-100 chars. Invalid status", resp.Message)

	rec, resp = api.do(http.MethodGet, "/api/v1/tasks/not-an-id", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid ID", resp.Message)
}

func TestStatusEndpointCycles(t *testing.T) {
	api := newTestAPI(t, nil)
	alice := api.register("Alice", "alice@x.com", "secret1")
	id := api.createTask(alice.Token, map[string]any{"title": "Cycle me"}).Task.ID
	path := "/api/v1/tasks/" + id + "/status"

	want := []model.TaskStatus{model.TaskStatusInProgress, model.TaskStatusCompleted, model.TaskStatusPending}
	for _, status := range want {
		rec, resp := api.do(http.MethodPatch, path, alice.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var data taskData
		require.NoError(t, json.Unmarshal(resp.Data, &data))
		assert.Equal(t, status, data.Task.Status)
	}

	rec, resp := api.do(http.MethodPatch, path, alice.Token, map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code)
	var data taskData
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, model.TaskStatusCompleted, data.Task.Status)
}

func TestRateLimitAppliesBeforeAuth(t *testing.T) {
	api := newTestAPI(t, func(cfg *RouterConfig) { cfg.RateLimitMax = 2 })

	for i := 0; i < 2; i++ {
		rec, _ := api.do(http.MethodGet, "/api/v1/tasks", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec, resp := api.do(http.MethodGet, "/api/v1/tasks", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests", resp.Message)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Health endpoints are outside /api.
	rec, _ = api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPublicEndpointsAndFallbacks(t *testing.T) {
	api := newTestAPI(t, nil)

	rec, resp := api.do(http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "TaskFlow API", resp.Message)

	rec, _ = api.do(http.MethodGet, "/api", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"1.0.0"`)

	rec, _ = api.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = api.do(http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route /nowhere not found", resp.Message)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestBodyLimit(t *testing.T) {
	api := newTestAPI(t, nil)

	big := map[string]string{"name": strings.Repeat("a", 11<<10), "email": "big@x.com", "password": "secret1"}
	rec, resp := api.do(http.MethodPost, "/api/v1/auth/register", "", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "Request body too large", resp.Message)
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/tasks", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/tasks", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestChangePasswordIssuesNewToken(t *testing.T) {
	api := newTestAPI(t, nil)
	alice := api.register("Alice", "alice@x.com", "secret1")

	rec, resp := api.do(http.MethodPut, "/api/v1/auth/change-password", alice.Token, map[string]string{
		"currentPassword": "wrong", "newPassword": "secret2",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Current password incorrect", resp.Message)

	rec, resp = api.do(http.MethodPut, "/api/v1/auth/change-password", alice.Token, map[string]string{
		"currentPassword": "secret1", "newPassword": "secret2",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Password changed", resp.Message)

	rec, _ = api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "alice@x.com", "password": "secret2",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}
