// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/counselkit/counsel-mcp/internal/clock"
	"github.com/counselkit/counsel-mcp/internal/database"
	"github.com/counselkit/counsel-mcp/internal/ratelimit"
	"github.com/counselkit/counsel-mcp/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth_MissingToken(t *testing.T) {
	db := setupTestDB(t)
	defer database.Close(db)

	m := NewMiddleware(NewTokenManager(db, 24))
	handler := m.RequireAuth(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_ValidToken(t *testing.T) {
	db := setupTestDB(t)
	defer database.Close(db)
	user := createTestUser(t, db)

	tm := NewTokenManager(db, 24)
	token, err := tm.GenerateToken(user.ID)
	require.NoError(t, err)

	var gotUserID uint
	handler := NewMiddleware(tm).RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = r.Context().Value(UserIDKey).(uint)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.ID, gotUserID)
}

func TestRequireAuth_QueryParamFallback(t *testing.T) {
	db := setupTestDB(t)
	defer database.Close(db)
	user := createTestUser(t, db)

	tm := NewTokenManager(db, 24)
	token, err := tm.GenerateToken(user.ID)
	require.NoError(t, err)

	handler := NewMiddleware(tm).RequireAuth(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/?access_token="+token.AccessToken, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOptionalAuth_InvalidTokenPassesThrough(t *testing.T) {
	db := setupTestDB(t)
	defer database.Close(db)

	handler := NewMiddleware(NewTokenManager(db, 24)).OptionalAuth(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_AllowsWithinBudget(t *testing.T) {
	limiter, err := ratelimit.New(ratelimit.Config{
		MaxRequests: 2,
		Window:      time.Minute,
		KeyPrefix:   "test",
	}, store.NewMemoryStore(), clock.System())
	require.NoError(t, err)

	handler := RateLimit(limiter, okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:55000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimit_DeniesOverBudget(t *testing.T) {
	limiter, err := ratelimit.New(ratelimit.Config{
		MaxRequests: 1,
		Window:      time.Minute,
		KeyPrefix:   "test",
	}, store.NewMemoryStore(), clock.System())
	require.NoError(t, err)

	handler := RateLimit(limiter, okHandler())

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "10.0.0.1:55000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.RemoteAddr = "10.0.0.1:55001"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "Too many requests")
}

func TestRateLimit_IdentifiersIndependent(t *testing.T) {
	limiter, err := ratelimit.New(ratelimit.Config{
		MaxRequests: 1,
		Window:      time.Minute,
		KeyPrefix:   "test",
	}, store.NewMemoryStore(), clock.System())
	require.NoError(t, err)

	handler := RateLimit(limiter, okHandler())

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "10.0.0.1:55000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.2:55000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}
