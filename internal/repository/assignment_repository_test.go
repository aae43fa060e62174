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

func newAssignmentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAssignmentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec("INSERT INTO student_assignments").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assignment := &models.StudentAssignment{StudentID: "student-1", UserID: "mentor-1", Role: models.AssignmentPrimaryMentor}
	err := repo.Create(context.Background(), assignment)
	require.NoError(t, err)
	assert.NotEmpty(t, assignment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryExistsPair(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM student_assignments WHERE student_id = $1 AND user_id = $2 LIMIT 1")).
		WithArgs("student-1", "mentor-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsPair(context.Background(), "student-1", "mentor-1")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM student_assignments WHERE student_id = $1 AND user_id = $2 LIMIT 1")).
		WithArgs("student-1", "mentor-2").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err = repo.ExistsPair(context.Background(), "student-1", "mentor-2")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "user_id", "role", "created_at"}).
		AddRow("assignment-1", "student-1", "mentor-1", "primary_mentor", time.Now()).
		AddRow("assignment-2", "student-1", "fact-1", "team_member", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, user_id, role, created_at FROM student_assignments WHERE student_id = $1 ORDER BY created_at")).
		WithArgs("student-1").
		WillReturnRows(rows)

	assignments, err := repo.ListByStudent(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	assert.Equal(t, models.AssignmentPrimaryMentor, assignments[0].Role)
	assert.Equal(t, models.AssignmentTeamMember, assignments[1].Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM student_assignments WHERE id = $1")).
		WithArgs("assignment-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(context.Background(), "assignment-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
