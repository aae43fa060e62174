package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/trivsel-api/internal/models"
)

func newStudentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func studentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "internal_id", "name", "email", "phase", "status", "consent_status", "consent_date", "consent_token", "start_date", "created_at", "updated_at"}).
		AddRow("1", "STU-AB12CD34", "Mikkel Jensen", "mikkel@example.com", "indslusning", "active", true, time.Now(), "token", time.Now(), time.Now(), time.Now())
}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT s.id, s.internal_id, s.name, s.email, s.phase, s.status, s.consent_status, s.consent_date, s.consent_token, s.start_date, s.created_at, s.updated_at\n        FROM students s WHERE 1=1 ORDER BY s.created_at DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(studentRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT s.id) FROM students s WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListFiltersBySearch(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT s.id, s.internal_id, s.name, s.email, s.phase, s.status, s.consent_status, s.consent_date, s.consent_token, s.start_date, s.created_at, s.updated_at\n        FROM students s WHERE 1=1 AND (LOWER(s.name) LIKE $1 OR LOWER(s.internal_id) LIKE $1) ORDER BY s.created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("%mikkel%").
		WillReturnRows(studentRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT s.id) FROM students s WHERE 1=1 AND (LOWER(s.name) LIKE $1 OR LOWER(s.internal_id) LIKE $1)")).
		WithArgs("%mikkel%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{Search: "Mikkel"})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	start := time.Now()
	student := &models.Student{
		InternalID:   "STU-AB12CD34",
		Name:         "Mikkel Jensen",
		Email:        "mikkel@example.com",
		Phase:        models.PhaseIndslusning,
		Status:       models.StudentActive,
		ConsentToken: "token",
		StartDate:    &start,
	}
	err := repo.Create(context.Background(), student)
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpdateConsent(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	decidedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET consent_status = $2, consent_date = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("student-1", true, decidedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateConsent(context.Background(), "student-1", true, decidedAt)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryExistsByEmail(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM students WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("mikkel@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsByEmail(context.Background(), "mikkel@example.com", "")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM students WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err = repo.ExistsByEmail(context.Background(), "nobody@example.com", "")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDeactivate(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("student-1", models.StudentInactive, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Deactivate(context.Background(), "student-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
