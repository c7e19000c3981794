package models

import "time"

// Connection -- подключение к кабинету маркетплейса (или к базе 1С) конкретной организации.
type Connection struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Marketplace    Marketplace `json:"marketplace"`
	MarketplaceID  string      `json:"marketplace_id"`
	OrganizationID string      `json:"organization_id"`
	ClientID       string      `json:"client_id,omitempty"`
	APIKey         string      `json:"-"`
	CampaignID     string      `json:"campaign_id,omitempty"`
	BaseURL        string      `json:"base_url,omitempty"`
	IsDeleted      bool        `json:"is_deleted"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
