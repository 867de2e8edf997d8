// internal/services/token_service_test.go
package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropmart/storefront-backend/internal/config"
	"github.com/dropmart/storefront-backend/internal/marketplace"
	"github.com/dropmart/storefront-backend/internal/models"
)

// fakeAuthServer simulates the marketplace's authentication endpoints plus one
// protected endpoint, counting calls per route.
type fakeAuthServer struct {
	mu          sync.Mutex
	server      *httptest.Server
	tokenSeq    int
	obtainCalls int
	refreshCall int
	rejectKey   bool
	failRefresh bool
	lastToken   string
}

func newFakeAuthServer() *fakeAuthServer {
	f := &fakeAuthServer{}
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/authentication/getAccessToken", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.obtainCalls++
		if f.rejectKey {
			writeEnvelope(w, http.StatusUnauthorized, false, nil, "invalid api key")
			return
		}
		f.tokenSeq++
		f.lastToken = tokenName(f.tokenSeq)
		writeEnvelope(w, http.StatusOK, true, tokenPayload(f.lastToken), "")
	})

	mux.HandleFunc("/v1/authentication/refreshAccessToken", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.refreshCall++
		if f.failRefresh {
			writeEnvelope(w, http.StatusInternalServerError, false, nil, "refresh unavailable")
			return
		}
		f.tokenSeq++
		f.lastToken = tokenName(f.tokenSeq)
		writeEnvelope(w, http.StatusOK, true, tokenPayload(f.lastToken), "")
	})

	mux.HandleFunc("/v1/warehouse/list", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		current := f.lastToken
		f.mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer "+current {
			writeEnvelope(w, http.StatusUnauthorized, false, nil, "token expired")
			return
		}
		writeEnvelope(w, http.StatusOK, true, []map[string]string{{"id": "W1"}}, "")
	})

	f.server = httptest.NewServer(mux)
	return f
}

func tokenName(seq int) string {
	return "tok-" + string(rune('0'+seq))
}

func tokenPayload(token string) map[string]string {
	return map[string]string{
		"accessToken":           token,
		"accessTokenExpiryDate": time.Now().Add(time.Hour).Format(time.RFC3339),
		"refreshToken":          "refresh-" + token,
	}
}

func newTokenService(t *testing.T, baseURL string) (*TokenService, *config.Config) {
	cfg := newTestConfig(baseURL)
	client := marketplace.NewClient(baseURL)
	return NewTokenService(newTestDB(t), client, cfg), cfg
}

func TestObtainInitialToken(t *testing.T) {
	f := newFakeAuthServer()
	defer f.server.Close()

	svc, _ := newTokenService(t, f.server.URL)

	token, err := svc.ObtainInitialToken("test-api-key")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	status := svc.Status()
	assert.True(t, status.HasToken)
	assert.True(t, status.IsValid)
	assert.Greater(t, status.ExpiresInSeconds, int64(0))
}

func TestSingleCredentialRow(t *testing.T) {
	f := newFakeAuthServer()
	defer f.server.Close()

	cfg := newTestConfig(f.server.URL)
	db := newTestDB(t)
	svc := NewTokenService(db, marketplace.NewClient(f.server.URL), cfg)

	_, err := svc.ObtainInitialToken("test-api-key")
	require.NoError(t, err)
	_, err = svc.ObtainInitialToken("test-api-key")
	require.NoError(t, err)
	_, err = svc.ForceRefresh()
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.MarketplaceCredential{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestValidTokenSkipsNetwork(t *testing.T) {
	f := newFakeAuthServer()

	svc, _ := newTokenService(t, f.server.URL)
	_, err := svc.ObtainInitialToken("test-api-key")
	require.NoError(t, err)

	// The server is gone; a cached valid token must still be returned.
	f.server.Close()

	token, err := svc.GetValidToken()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
}

func TestStaleRefreshTokenFallsBackToAPIKey(t *testing.T) {
	f := newFakeAuthServer()
	defer f.server.Close()

	svc, _ := newTokenService(t, f.server.URL)
	_, err := svc.ObtainInitialToken("test-api-key")
	require.NoError(t, err)

	token, err := svc.RefreshToken("some-stale-token")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", token)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, 0, f.refreshCall, "a stale refresh token must not reach the refresh endpoint")
	assert.Equal(t, 2, f.obtainCalls)
}

func TestRefreshFailureFallsBackToAPIKey(t *testing.T) {
	f := newFakeAuthServer()
	defer f.server.Close()

	cfg := newTestConfig(f.server.URL)
	db := newTestDB(t)
	svc := NewTokenService(db, marketplace.NewClient(f.server.URL), cfg)

	_, err := svc.ObtainInitialToken("test-api-key")
	require.NoError(t, err)

	// Expire the stored credential so the next GetValidToken must refresh.
	require.NoError(t, db.Model(&models.MarketplaceCredential{}).
		Where("1 = 1").
		Update("expires_at", time.Now().Add(-time.Minute)).Error)
	svc.cached = nil

	f.mu.Lock()
	f.failRefresh = true
	f.mu.Unlock()

	token, err := svc.GetValidToken()
	require.NoError(t, err)
	assert.Equal(t, "tok-2", token)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, 1, f.refreshCall)
	assert.Equal(t, 2, f.obtainCalls)
}

func TestNoAPIKeyConfigured(t *testing.T) {
	f := newFakeAuthServer()
	defer f.server.Close()

	cfg := newTestConfig(f.server.URL)
	cfg.Marketplace.APIKey = ""
	svc := NewTokenService(newTestDB(t), marketplace.NewClient(f.server.URL), cfg)

	assert.False(t, svc.HasCredentialSource())

	_, err := svc.GetValidToken()
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestRejectedAPIKeyIsStillStored(t *testing.T) {
	f := newFakeAuthServer()
	defer f.server.Close()
	f.rejectKey = true

	cfg := newTestConfig(f.server.URL)
	cfg.Marketplace.APIKey = ""
	db := newTestDB(t)
	svc := NewTokenService(db, marketplace.NewClient(f.server.URL), cfg)

	require.NoError(t, svc.SetAPIKey("bad-key"))

	_, err := svc.ObtainInitialToken("bad-key")
	require.Error(t, err)
	var authErr *AuthConfigurationError
	assert.ErrorAs(t, err, &authErr)

	// The key survives the rejection for inspection and retry.
	var setting models.IntegrationSetting
	require.NoError(t, db.Where("category = ? AND key = ?",
		models.SettingCategoryMarketplace, models.SettingKeyAPIKey).
		First(&setting).Error)
	assert.Equal(t, "bad-key", setting.Value["value"])
}

func TestAPIKeyReadFromSettingsTable(t *testing.T) {
	f := newFakeAuthServer()
	defer f.server.Close()

	cfg := newTestConfig(f.server.URL)
	cfg.Marketplace.APIKey = ""
	db := newTestDB(t)
	svc := NewTokenService(db, marketplace.NewClient(f.server.URL), cfg)

	require.NoError(t, svc.SetAPIKey("stored-key"))
	assert.True(t, svc.HasCredentialSource())

	token, err := svc.GetValidToken()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
}

func TestWithTokenRetriesOnceAfterRejection(t *testing.T) {
	f := newFakeAuthServer()
	defer f.server.Close()

	svc, _ := newTokenService(t, f.server.URL)
	_, err := svc.ObtainInitialToken("test-api-key")
	require.NoError(t, err)

	// Invalidate the live token server-side only: the stored credential still
	// looks valid locally, so the first call goes out with a dead token.
	f.mu.Lock()
	f.lastToken = "rotated-elsewhere"
	f.mu.Unlock()

	data, err := svc.Request(http.MethodGet, "/v1/warehouse/list", nil)
	require.NoError(t, err)

	var warehouses []map[string]string
	require.NoError(t, json.Unmarshal(data, &warehouses))
	assert.Len(t, warehouses, 1)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, 1, f.refreshCall, "rejection should trigger exactly one refresh")
}

func TestDeleteToken(t *testing.T) {
	f := newFakeAuthServer()
	defer f.server.Close()

	cfg := newTestConfig(f.server.URL)
	db := newTestDB(t)
	svc := NewTokenService(db, marketplace.NewClient(f.server.URL), cfg)

	_, err := svc.ObtainInitialToken("test-api-key")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteToken())

	status := svc.Status()
	assert.False(t, status.HasToken)

	var count int64
	require.NoError(t, db.Unscoped().Model(&models.MarketplaceCredential{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
