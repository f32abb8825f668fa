package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/storesync/internal/domain"
)

// sourceColumns lists the columns returned by source SELECT queries.
const sourceColumns = `
	id, tenant_id, name, platform, url, active, frequency_minutes, config,
	last_crawled_at, last_item_count, last_error, created_at, updated_at
`

// SourceRepository handles database operations for sources.
type SourceRepository struct {
	db *sqlx.DB
}

// NewSourceRepository creates a new source repository.
func NewSourceRepository(db *sqlx.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

// Create inserts a new source.
func (r *SourceRepository) Create(ctx context.Context, source *domain.Source) error {
	if source.ID == "" {
		source.ID = uuid.NewString()
	}
	if source.FrequencyMinutes <= 0 {
		source.FrequencyMinutes = domain.DefaultFrequencyMinutes
	}

	query := `
		INSERT INTO sources (id, tenant_id, name, platform, url, active, frequency_minutes, config)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		source.ID,
		source.TenantID,
		source.Name,
		source.Platform,
		source.URL,
		source.Active,
		source.FrequencyMinutes,
		&source.Config,
	).Scan(&source.CreatedAt, &source.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}

	return nil
}

// GetByID retrieves a source by its ID.
func (r *SourceRepository) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	var source domain.Source
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE id = $1`

	err := r.db.GetContext(ctx, &source, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, id)
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	return &source, nil
}

// List retrieves sources, optionally filtered by tenant.
func (r *SourceRepository) List(ctx context.Context, tenantID string) ([]*domain.Source, error) {
	var sources []*domain.Source
	var err error

	if tenantID != "" {
		query := `SELECT ` + sourceColumns + ` FROM sources WHERE tenant_id = $1 ORDER BY name`
		err = r.db.SelectContext(ctx, &sources, query, tenantID)
	} else {
		query := `SELECT ` + sourceColumns + ` FROM sources ORDER BY name`
		err = r.db.SelectContext(ctx, &sources, query)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	if sources == nil {
		sources = []*domain.Source{}
	}

	return sources, nil
}

// FindDue retrieves active sources whose elapsed time since the last crawl
// meets or exceeds their configured frequency. Never-crawled sources are
// always due.
func (r *SourceRepository) FindDue(ctx context.Context, tenantID string, now time.Time) ([]*domain.Source, error) {
	var sources []*domain.Source
	var err error

	base := `SELECT ` + sourceColumns + ` FROM sources
		WHERE active
		  AND (last_crawled_at IS NULL
		       OR last_crawled_at <= $1 - (frequency_minutes * interval '1 minute'))`

	if tenantID != "" {
		query := base + ` AND tenant_id = $2 ORDER BY last_crawled_at NULLS FIRST`
		err = r.db.SelectContext(ctx, &sources, query, now, tenantID)
	} else {
		query := base + ` ORDER BY last_crawled_at NULLS FIRST`
		err = r.db.SelectContext(ctx, &sources, query, now)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find due sources: %w", err)
	}

	if sources == nil {
		sources = []*domain.Source{}
	}

	return sources, nil
}

// UpdateCrawlState records the outcome of a crawl on the source row.
// Called after every job regardless of outcome so a persistently failing
// source is not re-attempted every tick.
func (r *SourceRepository) UpdateCrawlState(
	ctx context.Context,
	id string,
	crawledAt time.Time,
	itemCount int,
	lastError *string,
) error {
	query := `
		UPDATE sources
		SET last_crawled_at = $1, last_item_count = $2, last_error = $3, updated_at = now()
		WHERE id = $4
	`

	result, err := r.db.ExecContext(ctx, query, crawledAt, itemCount, lastError, id)
	if execErr := requireRowsAffected(result, err, ErrSourceNotFound); execErr != nil {
		return fmt.Errorf("failed to update source crawl state: %w", execErr)
	}

	return nil
}

// SetActive flips a source's active flag.
func (r *SourceRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE sources SET active = $1, updated_at = now() WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, active, id)
	if execErr := requireRowsAffected(result, err, ErrSourceNotFound); execErr != nil {
		return fmt.Errorf("failed to set source active: %w", execErr)
	}

	return nil
}

// requireRowsAffected turns a zero-row UPDATE into notFound so callers can
// tell a missing row apart from a successful no-op. The repositories share
// it for every exec whose WHERE clause names a single id.
func requireRowsAffected(result sql.Result, err, notFound error) error {
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
