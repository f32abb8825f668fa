package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/storesync/internal/domain"
)

// newSourceRepo creates a repository backed by sqlmock.
func newSourceRepo(t *testing.T) (*SourceRepository, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}

	repo := NewSourceRepository(sqlx.NewDb(db, "sqlmock"))
	return repo, mock, func() { db.Close() }
}

// expectationsMet fails the test if any mock expectation is unmet.
func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func sourceRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "tenant_id", "name", "platform", "url", "active", "frequency_minutes",
		"config", "last_crawled_at", "last_item_count", "last_error", "created_at", "updated_at",
	})
	for _, id := range ids {
		rows.AddRow(
			id, "tenant-1", "Store "+id, "ebay", "https://www.ebay.com/sch/"+id, true, 60,
			[]byte(`{"max_pages": 5}`), nil, 0, nil, time.Now(), time.Now(),
		)
	}
	return rows
}

func TestSourceGetByID(t *testing.T) {
	repo, mock, cleanup := newSourceRepo(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM sources WHERE id = \$1`).
		WithArgs("src-1").
		WillReturnRows(sourceRows("src-1"))

	source, err := repo.GetByID(context.Background(), "src-1")
	if err != nil {
		t.Fatalf("GetByID() unexpected error: %v", err)
	}

	if source.ID != "src-1" {
		t.Errorf("ID = %q, want src-1", source.ID)
	}
	if source.Platform != domain.PlatformEBay {
		t.Errorf("Platform = %q, want ebay", source.Platform)
	}
	if source.Config["max_pages"] != float64(5) {
		t.Errorf("Config[max_pages] = %v, want 5", source.Config["max_pages"])
	}

	expectationsMet(t, mock)
}

func TestSourceGetByIDNotFound(t *testing.T) {
	repo, mock, cleanup := newSourceRepo(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM sources WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("GetByID() error = %v, want ErrSourceNotFound", err)
	}

	expectationsMet(t, mock)
}

func TestSourceCreate(t *testing.T) {
	repo, mock, cleanup := newSourceRepo(t)
	defer cleanup()

	mock.ExpectQuery(`INSERT INTO sources`).
		WithArgs(
			sqlmock.AnyArg(), "tenant-1", "My Store", "etsy",
			"https://www.etsy.com/shop/mystore", true, 60, sqlmock.AnyArg(),
		).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now(), time.Now()))

	source := &domain.Source{
		TenantID: "tenant-1",
		Name:     "My Store",
		Platform: domain.PlatformEtsy,
		URL:      "https://www.etsy.com/shop/mystore",
		Active:   true,
	}

	if err := repo.Create(context.Background(), source); err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}

	if source.ID == "" {
		t.Error("Create() left ID empty, want generated uuid")
	}
	if source.FrequencyMinutes != domain.DefaultFrequencyMinutes {
		t.Errorf("FrequencyMinutes = %d, want default %d", source.FrequencyMinutes, domain.DefaultFrequencyMinutes)
	}
	if source.CreatedAt.IsZero() {
		t.Error("CreatedAt not populated from RETURNING")
	}

	expectationsMet(t, mock)
}

func TestSourceList(t *testing.T) {
	repo, mock, cleanup := newSourceRepo(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM sources WHERE tenant_id = \$1 ORDER BY name`).
		WithArgs("tenant-1").
		WillReturnRows(sourceRows("src-1", "src-2"))

	sources, err := repo.List(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}
	if len(sources) != 2 {
		t.Errorf("List() returned %d sources, want 2", len(sources))
	}

	expectationsMet(t, mock)
}

func TestSourceListEmpty(t *testing.T) {
	repo, mock, cleanup := newSourceRepo(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM sources ORDER BY name`).
		WillReturnRows(sourceRows())

	sources, err := repo.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}
	if sources == nil {
		t.Error("List() = nil, want empty slice")
	}

	expectationsMet(t, mock)
}

func TestSourceFindDue(t *testing.T) {
	repo, mock, cleanup := newSourceRepo(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM sources\s+WHERE active`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sourceRows("src-1", "src-2"))

	due, err := repo.FindDue(context.Background(), "", time.Now())
	if err != nil {
		t.Fatalf("FindDue() unexpected error: %v", err)
	}
	if len(due) != 2 {
		t.Errorf("FindDue() returned %d sources, want 2", len(due))
	}

	expectationsMet(t, mock)
}

func TestSourceUpdateCrawlState(t *testing.T) {
	repo, mock, cleanup := newSourceRepo(t)
	defer cleanup()

	lastError := "connection refused"
	mock.ExpectExec(`UPDATE sources`).
		WithArgs(sqlmock.AnyArg(), 42, lastError, "src-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateCrawlState(context.Background(), "src-1", time.Now(), 42, &lastError)
	if err != nil {
		t.Fatalf("UpdateCrawlState() unexpected error: %v", err)
	}

	expectationsMet(t, mock)
}

func TestSourceUpdateCrawlStateNotFound(t *testing.T) {
	repo, mock, cleanup := newSourceRepo(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE sources`).
		WithArgs(sqlmock.AnyArg(), 0, nil, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateCrawlState(context.Background(), "missing", time.Now(), 0, nil)
	if !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("UpdateCrawlState() error = %v, want ErrSourceNotFound", err)
	}

	expectationsMet(t, mock)
}

func TestSourceSetActive(t *testing.T) {
	repo, mock, cleanup := newSourceRepo(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE sources SET active`).
		WithArgs(false, "src-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SetActive(context.Background(), "src-1", false); err != nil {
		t.Fatalf("SetActive() unexpected error: %v", err)
	}

	expectationsMet(t, mock)
}
