package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gomarket_import/internal/core/models"
)

type ConnectionRepository struct {
	db *sql.DB
}

func NewConnectionRepository(db *sql.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

func (r *ConnectionRepository) GetByID(ctx context.Context, id string) (*models.Connection, error) {
	query := `
		SELECT id, name, marketplace, marketplace_id, organization_id, client_id, api_key,
			campaign_id, base_url, is_deleted, created_at, updated_at
		FROM marketplace_connections WHERE id = $1`
	var (
		c           models.Connection
		marketplace string
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &marketplace, &c.MarketplaceID, &c.OrganizationID, &c.ClientID, &c.APIKey,
		&c.CampaignID, &c.BaseURL, &c.IsDeleted, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get connection %s: %w", id, err)
	}
	c.Marketplace = models.ParseMarketplace(marketplace)
	return &c, nil
}

func (r *ConnectionRepository) Upsert(ctx context.Context, c models.Connection) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO marketplace_connections (id, name, marketplace, marketplace_id, organization_id,
			client_id, api_key, campaign_id, base_url, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			marketplace = EXCLUDED.marketplace,
			marketplace_id = EXCLUDED.marketplace_id,
			organization_id = EXCLUDED.organization_id,
			client_id = EXCLUDED.client_id,
			api_key = EXCLUDED.api_key,
			campaign_id = EXCLUDED.campaign_id,
			base_url = EXCLUDED.base_url,
			is_deleted = EXCLUDED.is_deleted,
			updated_at = EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.Name, c.Marketplace.String(), c.MarketplaceID, c.OrganizationID,
		c.ClientID, c.APIKey, c.CampaignID, c.BaseURL, c.IsDeleted, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert connection %s: %w", c.ID, err)
	}
	return nil
}
