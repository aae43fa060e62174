package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/trivsel-api/internal/models"
)

func newReportRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestReportRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	repo := NewReportRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO report_jobs")).
		WithArgs(sqlmock.AnyArg(), "student", sqlmock.AnyArg(), "QUEUED", nil, "user-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	studentID := "student-1"
	job := &models.ReportJob{
		Type:      models.ReportTypeStudent,
		Params:    models.ReportJobParams{StudentID: &studentID, Format: models.ReportFormatPDF},
		CreatedBy: "user-1",
	}
	require.NoError(t, repo.Create(context.Background(), job))

	rows := sqlmock.NewRows([]string{"id", "type", "params", "status", "result_url", "created_by", "created_at", "finished_at", "error_message"}).
		AddRow(job.ID, "student", `{"studentId":"student-1","format":"pdf"}`, "QUEUED", nil, "user-1", time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, type, params, status, result_url, created_by, created_at, finished_at, error_message FROM report_jobs WHERE id = $1")).
		WithArgs(job.ID).
		WillReturnRows(rows)

	fetched, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, job.ID, fetched.ID)
	require.NotNil(t, fetched.Params.StudentID)
	require.Equal(t, "student-1", *fetched.Params.StudentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	now := time.Now()
	status := models.ReportStatusFinished
	result := "/api/v1/reports/job-1/download?sig=abc"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE report_jobs SET status = $1, result_url = $2, finished_at = $3 WHERE id = $4")).
		WithArgs(status, result, now, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "job-1", UpdateReportJobParams{
		Status:     &status,
		ResultURL:  &result,
		FinishedAt: &now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListQueued(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	rows := sqlmock.NewRows([]string{"id", "type", "params", "status", "result_url", "created_by", "created_at", "finished_at", "error_message"}).
		AddRow("job-1", "weekly", `{"weekNumber":35,"year":2026,"format":"csv"}`, "QUEUED", nil, "user-1", time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, type, params, status, result_url, created_by, created_at, finished_at, error_message FROM report_jobs WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1")).
		WithArgs(20).
		WillReturnRows(rows)

	jobs, err := repo.ListQueued(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListFinishedBefore(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	rows := sqlmock.NewRows([]string{"id", "type", "params", "status", "result_url", "created_by", "created_at", "finished_at", "error_message"}).
		AddRow("job-1", "student", `{"studentId":"student-1","format":"pdf"}`, "FINISHED", "/api/v1/reports/job-1/download?sig=abc", "user-1", time.Now().Add(-48*time.Hour), time.Now().Add(-25*time.Hour), nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, type, params, status, result_url, created_by, created_at, finished_at, error_message FROM report_jobs WHERE status = 'FINISHED' AND finished_at IS NOT NULL AND finished_at < $1 ORDER BY finished_at ASC LIMIT $2")).
		WithArgs(sqlmock.AnyArg(), 50).
		WillReturnRows(rows)

	jobs, err := repo.ListFinishedBefore(context.Background(), time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
