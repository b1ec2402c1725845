// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/counselkit/counsel-mcp/internal/assistant"
	"github.com/counselkit/counsel-mcp/internal/auth"
	"github.com/counselkit/counsel-mcp/internal/clock"
	"github.com/counselkit/counsel-mcp/internal/config"
	"github.com/counselkit/counsel-mcp/internal/database"
	"github.com/counselkit/counsel-mcp/internal/ratelimit"
	"github.com/counselkit/counsel-mcp/internal/store"
	"github.com/counselkit/counsel-mcp/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	http  *HTTPServer
	mux   *http.ServeMux
	db    *gorm.DB
	clock *clock.Fake
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Connect(&database.Config{
		Type:       "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
		LogLevel:   logger.Silent,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	kv := store.NewMemoryStore()

	authLimiter, err := ratelimit.NewAuthLimiter(kv, clk)
	require.NoError(t, err)
	apiLimiter, err := ratelimit.NewAPILimiter(kv, clk)
	require.NoError(t, err)
	resetLimiter, err := ratelimit.NewPasswordResetLimiter(kv, clk)
	require.NoError(t, err)

	manager := assistant.NewManager(kv, clk)
	toolCtx := tools.NewToolContext(manager, clk)

	cfg := config.DefaultConfig()
	mcpSrv, err := NewMCPServer(cfg, db, toolCtx)
	require.NoError(t, err)

	localAuth := auth.NewLocalAuthenticatorWithAccessingUser(mcpSrv.GetTokenManager())
	t.Setenv("ACCESSING_USER", "attorney")

	httpSrv := NewHTTPServer(mcpSrv, localAuth, Limiters{
		Auth:          authLimiter,
		API:           apiLimiter,
		PasswordReset: resetLimiter,
	})

	mux := http.NewServeMux()
	httpSrv.RegisterRoutes(mux)

	return &testEnv{http: httpSrv, mux: mux, db: db, clock: clk}
}

func (e *testEnv) post(path, remoteAddr string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleLocalAuth(t *testing.T) {
	env := setupTestServer(t)

	rec := env.post("/auth/local", "10.0.0.1:5000", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "attorney", body["username"])
	assert.NotEmpty(t, body["token"])
}

func TestLocalAuth_RateLimited(t *testing.T) {
	env := setupTestServer(t)

	// Auth policy allows five attempts per window
	for i := 0; i < 5; i++ {
		rec := env.post("/auth/local", "10.0.0.1:5000", url.Values{})
		require.Equal(t, http.StatusOK, rec.Code, "attempt %d", i+1)
	}

	rec := env.post("/auth/local", "10.0.0.1:5000", url.Values{})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "Too many requests")

	// A different host still gets through
	rec = env.post("/auth/local", "10.0.0.2:5000", url.Values{})
	assert.Equal(t, http.StatusOK, rec.Code)

	// The window eventually expires
	env.clock.Advance(15*time.Minute + time.Millisecond)
	rec = env.post("/auth/local", "10.0.0.1:5000", url.Values{})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPasswordReset(t *testing.T) {
	env := setupTestServer(t)

	// Authenticate to create the user and a token
	rec := env.post("/auth/local", "10.0.0.1:5000", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	token := body["token"]

	rec = env.post("/auth/password-reset", "10.0.0.1:5000", url.Values{"username": {"attorney"}})
	require.Equal(t, http.StatusOK, rec.Code)

	// The session was revoked
	_, err := env.http.mcpServer.GetTokenManager().ValidateToken(token)
	assert.Error(t, err)
}

func TestPasswordReset_UnknownUserSameResponse(t *testing.T) {
	env := setupTestServer(t)

	rec := env.post("/auth/password-reset", "10.0.0.1:5000", url.Values{"username": {"nobody"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "If the account exists")
}

func TestPasswordReset_RateLimited(t *testing.T) {
	env := setupTestServer(t)

	// Reset policy allows three attempts per hour
	for i := 0; i < 3; i++ {
		rec := env.post("/auth/password-reset", "10.0.0.1:5000", url.Values{"username": {"attorney"}})
		require.Equal(t, http.StatusOK, rec.Code, "attempt %d", i+1)
	}

	rec := env.post("/auth/password-reset", "10.0.0.1:5000", url.Values{"username": {"attorney"}})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestHandleMCP_RequiresAuth(t *testing.T) {
	env := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleMCP_Authenticated(t *testing.T) {
	env := setupTestServer(t)

	rec := env.post("/auth/local", "10.0.0.1:5000", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+body["token"])
	req.RemoteAddr = "10.0.0.1:5000"
	rec2 := httptest.NewRecorder()
	env.mux.ServeHTTP(rec2, req)

	require.Equal(t, http.StatusOK, rec2.Code)
	assert.Contains(t, rec2.Body.String(), "ok")
}

func TestHandleStatus_DoesNotConsumeBudget(t *testing.T) {
	env := setupTestServer(t)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		env.mux.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, float64(60), body["remaining"])
	}
}
