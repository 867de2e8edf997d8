// internal/models/integration.go
package models

import (
	"time"
)

// MarketplaceCredential holds the current marketplace token pair. At most one
// row exists; every successful fetch deletes the previous row and inserts a
// fresh one.
type MarketplaceCredential struct {
	BaseModel
	AccessToken  string    `json:"-" gorm:"type:text;not null"`
	RefreshToken string    `json:"-" gorm:"type:text"`
	TokenType    string    `json:"token_type" gorm:"size:32;default:'bearer'"`
	ExpiresAt    time.Time `json:"expires_at" gorm:"not null"`
}

// Valid reports whether the access token can still be used without a refresh.
func (c *MarketplaceCredential) Valid() bool {
	return c.AccessToken != "" && time.Now().Before(c.ExpiresAt)
}

// IntegrationSetting is an admin-managed configuration record, keyed by
// category and key. The marketplace API key and the webhook subscription
// configuration are stored here.
type IntegrationSetting struct {
	BaseModel
	Category    string `json:"category" gorm:"size:50;not null;index:idx_integration_settings_cat_key,unique"`
	Key         string `json:"key" gorm:"size:100;not null;index:idx_integration_settings_cat_key,unique"`
	Value       JSONB  `json:"value" gorm:"type:jsonb;not null"`
	DataType    string `json:"data_type" gorm:"size:20;not null"`
	Description string `json:"description" gorm:"type:text"`
}

const (
	SettingCategoryMarketplace = "marketplace"
	SettingKeyAPIKey           = "api_key"
	SettingKeyWebhookConfig    = "webhook_config"
)

// SyncRun records the outcome of one scheduled batch run.
type SyncRun struct {
	BaseModel
	TaskName   string     `json:"task_name" gorm:"size:64;not null;index"`
	StartedAt  time.Time  `json:"started_at" gorm:"not null"`
	FinishedAt *time.Time `json:"finished_at"`
	Processed  int        `json:"processed" gorm:"default:0"`
	Succeeded  int        `json:"succeeded" gorm:"default:0"`
	Failed     int        `json:"failed" gorm:"default:0"`
	Notes      string     `json:"notes" gorm:"type:text"`
}
