package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/usercache/internal/config"
	"github.com/unkn0wn-root/usercache/internal/users"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.DSN = filepath.Join(t.TempDir(), "users.db")
	cfg.Cache.Backend = backend
	cfg.Log.Backend = "slog"
	cfg.Log.Level = "error"
	require.NoError(t, cfg.Validate())
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func call(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMemoryBackendEndToEnd(t *testing.T) {
	a := newApp(t, testConfig(t, "memory"))

	rec := call(t, a.Handler, http.MethodPost, "/users", `{"username":"ada","email":"ada@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.Equal(t, http.StatusOK, call(t, a.Handler, http.MethodGet, "/users", "").Code)
	require.Equal(t, http.StatusOK, call(t, a.Handler, http.MethodGet, "/users/1", "").Code)

	rec = call(t, a.Handler, http.MethodGet, "/cache-stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st struct {
		Keys     []string `json:"keys"`
		KeyCount int      `json:"key_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 2, st.KeyCount)
	assert.ElementsMatch(t, []string{"user_list", "user_1"}, st.Keys)

	rec = call(t, a.Handler, http.MethodPut, "/users/1", `{"username":"ada","email":"ada@lovelace.dev"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = call(t, a.Handler, http.MethodGet, "/users/1", "")
	assert.Contains(t, rec.Body.String(), "ada@lovelace.dev")

	rec = call(t, a.Handler, http.MethodGet, "/metrics", "")
	assert.Contains(t, rec.Body.String(), "usercache_http_requests_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRedisBackendSharesGenerations(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, "redis")
	cfg.Redis.Host = mr.Host()
	cfg.Redis.Port, _ = strconv.Atoi(mr.Port())
	cfg.Redis.DB = 0
	cfg.Cache.GenStore = "redis"
	cfg.Cache.Codec = "msgpack"
	cfg.Cache.Breaker.Enabled = true

	a := newApp(t, cfg)
	ctx := context.Background()
	u, err := a.Users.Create(ctx, users.Input{Username: "ada", Email: "ada@example.com"})
	require.NoError(t, err)
	_, err = a.Users.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, mr.Exists("user_1"))

	_, err = a.Users.Update(ctx, u.ID, users.Input{Username: "ada", Email: "new@example.com"})
	require.NoError(t, err)
	assert.False(t, mr.Exists("user_1"))
	assert.True(t, mr.Exists("gen:user:user_1"), "generation lives in redis")

	// a second process sees the bumped generation
	b := newApp(t, cfg)
	got, err := b.Users.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", got.Email)

	st := a.Users.Stats(ctx)
	assert.Empty(t, st.Error)
	assert.NotContains(t, st.Keys, "gen:user:user_1")
}

func TestWarmThenStatsWithRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, "redis")
	cfg.Redis.Host = mr.Host()
	cfg.Redis.Port, _ = strconv.Atoi(mr.Port())

	a := newApp(t, cfg)
	ctx := context.Background()
	rep, err := a.Users.Warm(ctx)
	require.NoError(t, err)
	assert.True(t, rep.Collection)
	assert.Equal(t, 1, a.Users.Stats(ctx).KeyCount)

	mr.Close()
	st := a.Users.Stats(ctx)
	assert.NotEmpty(t, st.Error)
	assert.Zero(t, st.KeyCount)

	// reads degrade to the data source
	list, err := a.Users.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestInProcessBackends(t *testing.T) {
	for _, backend := range []string{"bigcache", "ristretto"} {
		t.Run(backend, func(t *testing.T) {
			a := newApp(t, testConfig(t, backend))
			ctx := context.Background()
			_, err := a.Users.Create(ctx, users.Input{Username: "ada", Email: "ada@example.com"})
			require.NoError(t, err)
			got, err := a.Users.Get(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, "ada", got.Username)
			got, err = a.Users.Get(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, "ada", got.Username)
		})
	}
}

func TestNewLoggerBackends(t *testing.T) {
	for _, b := range []string{"zap", "logrus", "slog"} {
		l, err := NewLogger(config.Log{Backend: b, Level: "info"})
		require.NoError(t, err, b)
		assert.NotNil(t, l)
	}
	_, err := NewLogger(config.Log{Backend: "stdout", Level: "info"})
	assert.Error(t, err)
}
