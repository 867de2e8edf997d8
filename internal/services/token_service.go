// internal/services/token_service.go
package services

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/dropmart/storefront-backend/internal/config"
	"github.com/dropmart/storefront-backend/internal/marketplace"
	"github.com/dropmart/storefront-backend/internal/models"
)

// TokenService owns the marketplace credential lifecycle. It is the only
// writer of the MarketplaceCredential record. All token state transitions run
// under one mutex, so concurrent callers that observe an expired token share a
// single refresh instead of racing.
type TokenService struct {
	db     *gorm.DB
	client *marketplace.Client
	cfg    *config.Config

	mu         sync.Mutex
	cached     *models.MarketplaceCredential
	cachedKey  string
	keyChecked bool
}

func NewTokenService(db *gorm.DB, client *marketplace.Client, cfg *config.Config) *TokenService {
	return &TokenService{
		db:     db,
		client: client,
		cfg:    cfg,
	}
}

// HasCredentialSource reports whether an API key is available from the
// in-memory cache, the environment, or the settings table. The settings table
// is consulted at most once until the cache is invalidated.
func (s *TokenService) HasCredentialSource() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupAPIKey() != ""
}

// lookupAPIKey must be called with s.mu held.
func (s *TokenService) lookupAPIKey() string {
	if s.cachedKey != "" {
		return s.cachedKey
	}

	if s.cfg.Marketplace.APIKey != "" {
		s.cachedKey = s.cfg.Marketplace.APIKey
		return s.cachedKey
	}

	if s.keyChecked {
		return ""
	}
	s.keyChecked = true

	var setting models.IntegrationSetting
	err := s.db.Where("category = ? AND key = ?",
		models.SettingCategoryMarketplace, models.SettingKeyAPIKey).
		First(&setting).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithError(err).Error("Failed to read marketplace API key setting")
		}
		return ""
	}

	if v, ok := setting.Value["value"].(string); ok {
		s.cachedKey = v
	}
	return s.cachedKey
}

// SetAPIKey persists the admin-supplied API key. The key is stored before any
// token fetch is attempted, so a rejected key is not lost.
func (s *TokenService) SetAPIKey(apiKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var setting models.IntegrationSetting
	err := s.db.Where("category = ? AND key = ?",
		models.SettingCategoryMarketplace, models.SettingKeyAPIKey).
		First(&setting).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		setting = models.IntegrationSetting{
			Category:    models.SettingCategoryMarketplace,
			Key:         models.SettingKeyAPIKey,
			Value:       models.JSONB{"value": apiKey},
			DataType:    "string",
			Description: "Marketplace API key used to obtain access tokens",
		}
		if err := s.db.Create(&setting).Error; err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		setting.Value = models.JSONB{"value": apiKey}
		if err := s.db.Save(&setting).Error; err != nil {
			return err
		}
	}

	s.cachedKey = apiKey
	s.keyChecked = true
	return nil
}

// GetValidToken returns a usable access token, refreshing only when the
// cached credential has expired.
func (s *TokenService) GetValidToken() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred := s.loadCredential()
	if cred != nil && cred.Valid() {
		return cred.AccessToken, nil
	}

	refreshToken := ""
	if cred != nil {
		refreshToken = cred.RefreshToken
	}
	return s.refreshLocked(refreshToken)
}

// ObtainInitialToken exchanges the API key for a brand-new credential,
// replacing whatever was stored before.
func (s *TokenService) ObtainInitialToken(apiKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.obtainLocked(apiKey)
}

// RefreshToken refreshes with the supplied refresh token. An empty or stale
// token falls back to a fresh fetch with the API key; a remote refresh
// failure gets one fallback fetch, after which the original error propagates.
func (s *TokenService) RefreshToken(refreshToken string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(refreshToken)
}

// ForceRefresh discards the cached access token and refreshes unconditionally.
// Used after the marketplace rejects a token mid-flight.
func (s *TokenService) ForceRefresh() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	refreshToken := ""
	if cred := s.loadCredential(); cred != nil {
		refreshToken = cred.RefreshToken
	}
	return s.refreshLocked(refreshToken)
}

// refreshLocked must be called with s.mu held.
func (s *TokenService) refreshLocked(refreshToken string) (string, error) {
	if refreshToken == "" {
		return s.obtainLocked("")
	}

	stored := s.loadCredential()
	if stored == nil || stored.RefreshToken != refreshToken {
		logrus.Warn("Supplied refresh token does not match the stored credential, fetching a new token")
		return s.obtainLocked("")
	}

	data, err := s.client.RefreshAccessToken(refreshToken)
	if err != nil {
		logrus.WithError(err).Warn("Marketplace token refresh failed, falling back to initial fetch")
		token, fallbackErr := s.obtainLocked("")
		if fallbackErr != nil {
			return "", err
		}
		return token, nil
	}

	cred, err := s.replaceCredential(data)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

// obtainLocked must be called with s.mu held.
func (s *TokenService) obtainLocked(apiKey string) (string, error) {
	if apiKey == "" {
		apiKey = s.lookupAPIKey()
	}
	if apiKey == "" {
		logrus.Warn("Marketplace integration is not configured, no API key available")
		return "", ErrNoAPIKey
	}

	data, err := s.client.GetAccessToken(apiKey)
	if err != nil {
		logrus.WithError(err).Error("Marketplace rejected the API key")
		var apiErr *marketplace.APIError
		if errors.As(err, &apiErr) {
			return "", &AuthConfigurationError{Message: apiErr.Message}
		}
		return "", err
	}

	cred, err := s.replaceCredential(data)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

// replaceCredential supersedes the stored credential: hard delete, then
// insert, so exactly one row exists after any successful fetch.
func (s *TokenService) replaceCredential(data *marketplace.TokenData) (*models.MarketplaceCredential, error) {
	cred := &models.MarketplaceCredential{
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		TokenType:    "bearer",
		ExpiresAt:    data.AccessExpiry(),
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("1 = 1").Delete(&models.MarketplaceCredential{}).Error; err != nil {
			return err
		}
		return tx.Create(cred).Error
	})
	if err != nil {
		return nil, err
	}

	s.cached = cred
	logrus.WithField("expires_at", cred.ExpiresAt).Info("Marketplace credential stored")
	return cred, nil
}

// loadCredential must be called with s.mu held.
func (s *TokenService) loadCredential() *models.MarketplaceCredential {
	if s.cached != nil {
		return s.cached
	}

	var cred models.MarketplaceCredential
	if err := s.db.Order("created_at DESC").First(&cred).Error; err != nil {
		return nil
	}
	s.cached = &cred
	return s.cached
}

// DeleteToken removes the stored credential and clears all caches.
func (s *TokenService) DeleteToken() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Unscoped().Where("1 = 1").Delete(&models.MarketplaceCredential{}).Error; err != nil {
		return err
	}
	s.cached = nil
	s.cachedKey = ""
	s.keyChecked = false
	return nil
}

type TokenStatus struct {
	HasToken         bool       `json:"hasToken"`
	IsValid          bool       `json:"isValid"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
	ExpiresInSeconds int64      `json:"expiresInSeconds"`
}

// Status describes the stored credential without touching the network.
func (s *TokenService) Status() *TokenStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred := s.loadCredential()
	if cred == nil {
		return &TokenStatus{}
	}

	status := &TokenStatus{
		HasToken:  true,
		IsValid:   cred.Valid(),
		ExpiresAt: &cred.ExpiresAt,
	}
	if status.IsValid {
		status.ExpiresInSeconds = int64(time.Until(cred.ExpiresAt).Seconds())
	}
	return status
}

// WithToken runs fn with a valid access token. If the marketplace rejects the
// token, it refreshes once and retries exactly once; any further failure
// propagates unmodified.
func (s *TokenService) WithToken(fn func(token string) error) error {
	token, err := s.GetValidToken()
	if err != nil {
		return err
	}

	err = fn(token)
	if err != nil && marketplace.IsUnauthorized(err) {
		refreshed, refreshErr := s.ForceRefresh()
		if refreshErr != nil {
			return err
		}
		return fn(refreshed)
	}
	return err
}

// Request performs one authenticated call against an arbitrary marketplace
// path, with the same refresh-once-and-retry behavior as WithToken.
func (s *TokenService) Request(method, path string, body interface{}) (json.RawMessage, error) {
	var data json.RawMessage
	err := s.WithToken(func(token string) error {
		var reqErr error
		data, reqErr = s.client.Do(method, path, token, body)
		return reqErr
	})
	return data, err
}
