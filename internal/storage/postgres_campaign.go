package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/gatewise/traffic-report/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCampaignRepo implements CampaignRepo using PostgreSQL.
type PostgresCampaignRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresCampaignRepo creates a new PostgreSQL-backed campaign repo.
func NewPostgresCampaignRepo(pool *pgxpool.Pool) *PostgresCampaignRepo {
	return &PostgresCampaignRepo{pool: pool}
}

const campaignColumns = `id, domain_id, name, target_url, param_key, param_value, is_active, created_at`

// GetCampaign returns the campaign with the given ID or nil if not found.
func (r *PostgresCampaignRepo) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns WHERE id = $1
	`, id)

	c, err := scanCampaign(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return c, nil
}

// ListCampaigns returns all campaigns, newest first.
func (r *PostgresCampaignRepo) ListCampaigns(ctx context.Context) ([]*models.Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func scanCampaign(row pgx.Row) (*models.Campaign, error) {
	var c models.Campaign
	var domainID, paramKey, paramValue *string

	err := row.Scan(&c.ID, &domainID, &c.Name, &c.TargetURL, &paramKey, &paramValue, &c.Active, &c.CreatedAt)
	if err != nil {
		return nil, err
	}

	if domainID != nil {
		c.DomainID = *domainID
	}
	if paramKey != nil {
		c.ParamKey = *paramKey
	}
	if paramValue != nil {
		c.ParamValue = *paramValue
	}
	return &c, nil
}
