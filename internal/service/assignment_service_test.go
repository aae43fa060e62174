package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/trivsel-api/internal/models"
	appErrors "github.com/noah-isme/trivsel-api/pkg/errors"
)

type mockAssignmentRepo struct {
	assignments map[string]*models.StudentAssignment
	pairs       map[string]bool
	created     []models.StudentAssignment
	deleted     []string
}

func (m *mockAssignmentRepo) Create(ctx context.Context, assignment *models.StudentAssignment) error {
	assignment.ID = "as-new"
	m.created = append(m.created, *assignment)
	return nil
}

func (m *mockAssignmentRepo) ExistsPair(ctx context.Context, studentID, userID string) (bool, error) {
	return m.pairs[studentID+"/"+userID], nil
}

func (m *mockAssignmentRepo) FindByID(ctx context.Context, id string) (*models.StudentAssignment, error) {
	assignment, ok := m.assignments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *assignment
	return &copied, nil
}

func (m *mockAssignmentRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockAssignmentRepo) ListByUser(ctx context.Context, userID string) ([]models.StudentAssignment, error) {
	var out []models.StudentAssignment
	for _, a := range m.assignments {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockAssignmentRepo) ListDetails(ctx context.Context, studentID string) ([]models.AssignmentDetail, error) {
	var out []models.AssignmentDetail
	for _, a := range m.assignments {
		if a.StudentID == studentID {
			out = append(out, models.AssignmentDetail{StudentAssignment: *a})
		}
	}
	return out, nil
}

type mockStudentReader struct {
	students map[string]*models.Student
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	student, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *student
	return &copied, nil
}

type mockUserReader struct {
	users map[string]*models.User
}

func (m *mockUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func assignmentFixtures() (*mockAssignmentRepo, *mockStudentReader, *mockUserReader) {
	repo := &mockAssignmentRepo{
		assignments: map[string]*models.StudentAssignment{
			"as-1": {ID: "as-1", StudentID: "student-1", UserID: "user-1", Role: models.AssignmentPrimaryMentor},
		},
		pairs: map[string]bool{"student-1/user-1": true},
	}
	students := &mockStudentReader{students: map[string]*models.Student{
		"student-1": {ID: "student-1", Name: "Mikkel Jensen", Status: models.StudentActive},
	}}
	users := &mockUserReader{users: map[string]*models.User{
		"user-1": {ID: "user-1", FullName: "Lene Holm", Role: models.RoleMentor, Active: true},
		"user-2": {ID: "user-2", FullName: "Per Dam", Role: models.RoleFactTeam, Active: true},
		"user-3": {ID: "user-3", FullName: "Inaktiv Ansat", Role: models.RoleMentor, Active: false},
	}}
	return repo, students, users
}

func TestAssignmentServiceCreate(t *testing.T) {
	repo, students, users := assignmentFixtures()
	svc := NewAssignmentService(repo, students, users, nil, nil)

	created, err := svc.Create(context.Background(), CreateAssignmentRequest{
		StudentID: "student-1",
		UserID:    "user-2",
		Role:      models.AssignmentTeamMember,
	})
	require.NoError(t, err)
	assert.Equal(t, "student-1", created.StudentID)
	assert.Equal(t, models.AssignmentTeamMember, created.Role)
	require.Len(t, repo.created, 1)
}

func TestAssignmentServiceCreateDuplicatePair(t *testing.T) {
	repo, students, users := assignmentFixtures()
	svc := NewAssignmentService(repo, students, users, nil, nil)

	_, err := svc.Create(context.Background(), CreateAssignmentRequest{
		StudentID: "student-1",
		UserID:    "user-1",
		Role:      models.AssignmentTeamMember,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestAssignmentServiceCreateInactiveUser(t *testing.T) {
	repo, students, users := assignmentFixtures()
	svc := NewAssignmentService(repo, students, users, nil, nil)

	_, err := svc.Create(context.Background(), CreateAssignmentRequest{
		StudentID: "student-1",
		UserID:    "user-3",
		Role:      models.AssignmentTeamMember,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAssignmentServiceCreateUnknownStudent(t *testing.T) {
	repo, students, users := assignmentFixtures()
	svc := NewAssignmentService(repo, students, users, nil, nil)

	_, err := svc.Create(context.Background(), CreateAssignmentRequest{
		StudentID: "missing",
		UserID:    "user-2",
		Role:      models.AssignmentPrimaryMentor,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAssignmentServiceDelete(t *testing.T) {
	repo, students, users := assignmentFixtures()
	svc := NewAssignmentService(repo, students, users, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "as-1"))
	assert.Equal(t, []string{"as-1"}, repo.deleted)

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAssignmentServiceListForStudent(t *testing.T) {
	repo, students, users := assignmentFixtures()
	svc := NewAssignmentService(repo, students, users, nil, nil)

	details, err := svc.ListForStudent(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "user-1", details[0].UserID)

	_, err = svc.ListForStudent(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
