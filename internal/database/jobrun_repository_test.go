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

func newJobRunRepo(t *testing.T) (*JobRunRepository, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}

	repo := NewJobRunRepository(sqlx.NewDb(db, "sqlmock"))
	return repo, mock, func() { db.Close() }
}

func jobRunRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "source_id", "status", "items_found", "items_new", "items_updated",
		"items_removed", "errors", "started_at", "completed_at",
	})
	for _, id := range ids {
		rows.AddRow(
			id, "src-1", "completed", 10, 2, 1, 0,
			[]byte(`[{"stage":"crawl","type":"network","message":"reset"}]`),
			time.Now(), time.Now(),
		)
	}
	return rows
}

func TestJobRunCreate(t *testing.T) {
	repo, mock, cleanup := newJobRunRepo(t)
	defer cleanup()

	mock.ExpectQuery(`INSERT INTO job_runs`).
		WithArgs(sqlmock.AnyArg(), "src-1", "running").
		WillReturnRows(sqlmock.NewRows([]string{"started_at"}).AddRow(time.Now()))

	run, err := repo.Create(context.Background(), "src-1")
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}

	if run.ID == "" {
		t.Error("Create() returned empty run id")
	}
	if run.Status != domain.JobStatusRunning {
		t.Errorf("Status = %q, want running", run.Status)
	}
	if run.StartedAt.IsZero() {
		t.Error("StartedAt not populated from RETURNING")
	}

	expectationsMet(t, mock)
}

func TestJobRunComplete(t *testing.T) {
	repo, mock, cleanup := newJobRunRepo(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE job_runs`).
		WithArgs(
			"failed", 3, 0, 0, 0,
			sqlmock.AnyArg(), sqlmock.AnyArg(), "run-1",
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	run := &domain.JobRun{
		ID:         "run-1",
		SourceID:   "src-1",
		Status:     domain.JobStatusRunning,
		ItemsFound: 3,
		Errors: domain.JobErrorList{
			{Stage: domain.JobStageCrawl, Type: "network", Message: "reset"},
		},
	}

	if err := repo.Complete(context.Background(), run, domain.JobStatusFailed); err != nil {
		t.Fatalf("Complete() unexpected error: %v", err)
	}

	if run.Status != domain.JobStatusFailed {
		t.Errorf("Status = %q, want failed", run.Status)
	}
	if run.CompletedAt == nil {
		t.Error("CompletedAt = nil, want set")
	}

	expectationsMet(t, mock)
}

func TestJobRunUpdateNotFound(t *testing.T) {
	repo, mock, cleanup := newJobRunRepo(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE job_runs`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	run := &domain.JobRun{ID: "missing", Status: domain.JobStatusCompleted}
	err := repo.Update(context.Background(), run)
	if !errors.Is(err, ErrJobRunNotFound) {
		t.Errorf("Update() error = %v, want ErrJobRunNotFound", err)
	}

	expectationsMet(t, mock)
}

func TestJobRunGetLatest(t *testing.T) {
	repo, mock, cleanup := newJobRunRepo(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM job_runs\s+WHERE source_id = \$1`).
		WithArgs("src-1").
		WillReturnRows(jobRunRows("run-9"))

	run, err := repo.GetLatest(context.Background(), "src-1")
	if err != nil {
		t.Fatalf("GetLatest() unexpected error: %v", err)
	}

	if run.ID != "run-9" {
		t.Errorf("ID = %q, want run-9", run.ID)
	}
	if len(run.Errors) != 1 || run.Errors[0].Stage != domain.JobStageCrawl {
		t.Errorf("Errors = %+v, want one crawl-stage error", run.Errors)
	}

	expectationsMet(t, mock)
}

func TestJobRunGetLatestNotFound(t *testing.T) {
	repo, mock, cleanup := newJobRunRepo(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM job_runs`).
		WithArgs("src-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetLatest(context.Background(), "src-1")
	if !errors.Is(err, ErrJobRunNotFound) {
		t.Errorf("GetLatest() error = %v, want ErrJobRunNotFound", err)
	}

	expectationsMet(t, mock)
}

func TestJobRunListBySource(t *testing.T) {
	repo, mock, cleanup := newJobRunRepo(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM job_runs\s+WHERE source_id = \$1`).
		WithArgs("src-1", 20).
		WillReturnRows(jobRunRows("run-2", "run-1"))

	runs, err := repo.ListBySource(context.Background(), "src-1", 20)
	if err != nil {
		t.Fatalf("ListBySource() unexpected error: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("ListBySource() returned %d runs, want 2", len(runs))
	}

	expectationsMet(t, mock)
}
