package database

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/storesync/internal/domain"
)

// entryColumns lists the columns returned by catalog entry SELECT queries.
const entryColumns = `
	id, tenant_id, sku, title, price, quantity, status, source_url, created_at, updated_at
`

// allowedUpdateFields restricts dynamic updates to columns the sync engine owns.
var allowedUpdateFields = map[string]bool{
	"title":    true,
	"price":    true,
	"quantity": true,
	"status":   true,
}

// CatalogRepository handles database operations for catalog entries.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new catalog repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListEligible retrieves a tenant's sync-eligible entries, i.e. those with a
// non-null source URL. Manually curated entries never appear here.
func (r *CatalogRepository) ListEligible(ctx context.Context, tenantID string) ([]*domain.CatalogEntry, error) {
	var entries []*domain.CatalogEntry
	query := `SELECT ` + entryColumns + ` FROM catalog_entries
		WHERE tenant_id = $1 AND source_url IS NOT NULL
		ORDER BY created_at`

	err := r.db.SelectContext(ctx, &entries, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible entries: %w", err)
	}

	if entries == nil {
		entries = []*domain.CatalogEntry{}
	}

	return entries, nil
}

// Create inserts a new catalog entry and returns its id.
func (r *CatalogRepository) Create(ctx context.Context, entry *domain.CatalogEntry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Status == "" {
		entry.Status = domain.EntryStatusDraft
	}

	query := `
		INSERT INTO catalog_entries (id, tenant_id, sku, title, price, quantity, status, source_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		entry.ID,
		entry.TenantID,
		entry.SKU,
		entry.Title,
		entry.Price,
		entry.Quantity,
		entry.Status,
		entry.SourceURL,
	).Scan(&entry.CreatedAt, &entry.UpdatedAt)

	if err != nil {
		return "", fmt.Errorf("failed to create catalog entry: %w", err)
	}

	return entry.ID, nil
}

// UpdateFields updates only the given columns of an entry. The field set is
// restricted to the columns the sync engine owns.
func (r *CatalogRepository) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return ErrNoFields
	}

	// Stable column order keeps generated SQL deterministic for tests.
	columns := make([]string, 0, len(fields))
	for column := range fields {
		if !allowedUpdateFields[column] {
			return fmt.Errorf("field %q is not updatable", column)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	assignments := make([]string, 0, len(columns)+1)
	args := make([]any, 0, len(columns)+1)
	for i, column := range columns {
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, i+1))
		args = append(args, fields[column])
	}
	assignments = append(assignments, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf(
		"UPDATE catalog_entries SET %s WHERE id = $%d",
		strings.Join(assignments, ", "),
		len(args),
	)

	result, err := r.db.ExecContext(ctx, query, args...)
	if execErr := requireRowsAffected(result, err, ErrEntryNotFound); execErr != nil {
		return fmt.Errorf("failed to update catalog entry: %w", execErr)
	}

	return nil
}

// MarkSold transitions the given entries to sold in one batch.
func (r *CatalogRepository) MarkSold(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE catalog_entries
		SET status = $1, updated_at = now()
		WHERE id = ANY($2)
	`

	_, err := r.db.ExecContext(ctx, query, domain.EntryStatusSold, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to mark entries sold: %w", err)
	}

	return nil
}

// RecordPriceHistory appends a price history row for an entry.
func (r *CatalogRepository) RecordPriceHistory(ctx context.Context, entryID string, price *float64, reason string) error {
	query := `
		INSERT INTO price_history (id, entry_id, price, reason)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query, uuid.NewString(), entryID, price, reason)
	if err != nil {
		return fmt.Errorf("failed to record price history: %w", err)
	}

	return nil
}

// NextItemNumber atomically increments and returns the tenant's item counter,
// used as the uniqueness suffix for generated SKUs.
func (r *CatalogRepository) NextItemNumber(ctx context.Context, tenantID string) (int, error) {
	var number int
	query := `
		INSERT INTO tenant_counters (tenant_id, item_counter)
		VALUES ($1, 1)
		ON CONFLICT (tenant_id) DO UPDATE SET item_counter = tenant_counters.item_counter + 1
		RETURNING item_counter
	`

	err := r.db.QueryRowContext(ctx, query, tenantID).Scan(&number)
	if err != nil {
		return 0, fmt.Errorf("failed to increment tenant item counter: %w", err)
	}

	return number, nil
}
