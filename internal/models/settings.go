package models

import "time"

// APISettings stores connector API keys. A single row is kept.
type APISettings struct {
	ID                int64     `json:"-" gorm:"primaryKey"`
	DomainAPIKey      string    `json:"domain_api_key"`
	CoreLogicAPIKey   string    `json:"corelogic_api_key"`
	RealEstateAPIKey  string    `json:"realestate_api_key"`
	PriceFinderAPIKey string    `json:"pricefinder_api_key"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// APISettingsRequest is used when saving connector API keys.
type APISettingsRequest struct {
	DomainAPIKey      string `json:"domain_api_key"`
	CoreLogicAPIKey   string `json:"corelogic_api_key"`
	RealEstateAPIKey  string `json:"realestate_api_key"`
	PriceFinderAPIKey string `json:"pricefinder_api_key"`
}

// NotifierConfig stores the Telegram bot credentials used for evaluation
// completion notifications.
type NotifierConfig struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	IsEnabled bool      `json:"is_enabled"`
	BotToken  string    `json:"bot_token"`
	ChatID    string    `json:"chat_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NotifierConfigRequest is used when updating the notifier configuration.
type NotifierConfigRequest struct {
	IsEnabled bool   `json:"is_enabled"`
	BotToken  string `json:"bot_token"`
	ChatID    string `json:"chat_id"`
}
