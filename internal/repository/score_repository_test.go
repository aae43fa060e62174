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

func newScoreMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestScoreRepositoryListRecentTotals(t *testing.T) {
	db, mock, cleanup := newScoreMock(t)
	defer cleanup()
	repo := NewScoreRepository(db)

	rows := sqlmock.NewRows([]string{"id", "session_id", "student_id", "category", "value", "color", "is_total", "created_at"}).
		AddRow("score-2", "session-2", "student-1", nil, 3.5, "yellow", true, time.Now()).
		AddRow("score-1", "session-1", "student-1", nil, 4.5, "green", true, time.Now().Add(-7*24*time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, session_id, student_id, category, value, color, is_total, created_at FROM scores WHERE student_id = $1 AND is_total = true AND session_id <> $2 ORDER BY created_at DESC LIMIT 10")).
		WithArgs("student-1", "session-3").
		WillReturnRows(rows)

	totals, err := repo.ListRecentTotals(context.Background(), "student-1", "session-3", 0)
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, 3.5, totals[0].Value)
	assert.True(t, totals[0].IsTotal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScoreRepositoryListBySession(t *testing.T) {
	db, mock, cleanup := newScoreMock(t)
	defer cleanup()
	repo := NewScoreRepository(db)

	rows := sqlmock.NewRows([]string{"id", "session_id", "student_id", "category", "value", "color", "is_total", "created_at"}).
		AddRow("score-1", "session-1", "student-1", "trivsel", 4.0, "green", false, time.Now()).
		AddRow("score-2", "session-1", "student-1", nil, 4.0, "green", true, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, session_id, student_id, category, value, color, is_total, created_at FROM scores WHERE session_id = $1 ORDER BY is_total, category")).
		WithArgs("session-1").
		WillReturnRows(rows)

	scores, err := repo.ListBySession(context.Background(), "session-1")
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.False(t, scores[0].IsTotal)
	assert.True(t, scores[1].IsTotal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScoreRepositoryListHighRisk(t *testing.T) {
	db, mock, cleanup := newScoreMock(t)
	defer cleanup()
	repo := NewScoreRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "internal_id", "name", "phase", "value", "color", "session_status", "week_number", "year"}).
		AddRow("student-1", "STU-AB12CD34", "Mikkel Jensen", "hovedforloeb", 2.1, "red", "completed", 35, 2026).
		AddRow("student-2", "STU-99FFEE11", "Sofie Holm", "indslusning", 4.2, "green", "completed", 35, 2026).
		AddRow("student-3", "STU-12345678", "Ali Hassan", "udslusning", nil, nil, nil, nil, nil)
	mock.ExpectQuery("SELECT st.id AS student_id").
		WithArgs(models.StudentActive).
		WillReturnRows(rows)

	highRisk, err := repo.ListHighRisk(context.Background())
	require.NoError(t, err)
	require.Len(t, highRisk, 1)
	assert.Equal(t, "student-1", highRisk[0].StudentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
