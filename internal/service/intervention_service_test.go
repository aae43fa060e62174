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

type mockInterventionRepo struct {
	interventions map[string]*models.Intervention
}

func (m *mockInterventionRepo) Create(ctx context.Context, intervention *models.Intervention) error {
	if m.interventions == nil {
		m.interventions = make(map[string]*models.Intervention)
	}
	intervention.ID = "iv-new"
	copied := *intervention
	m.interventions[intervention.ID] = &copied
	return nil
}

func (m *mockInterventionRepo) FindByID(ctx context.Context, id string) (*models.Intervention, error) {
	intervention, ok := m.interventions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *intervention
	return &copied, nil
}

func (m *mockInterventionRepo) ListByStudent(ctx context.Context, studentID string) ([]models.Intervention, error) {
	var out []models.Intervention
	for _, iv := range m.interventions {
		if iv.StudentID == studentID {
			out = append(out, *iv)
		}
	}
	return out, nil
}

func (m *mockInterventionRepo) Update(ctx context.Context, intervention *models.Intervention) error {
	copied := *intervention
	m.interventions[intervention.ID] = &copied
	return nil
}

func interventionFixtures() (*mockInterventionRepo, *mockStudentReader) {
	repo := &mockInterventionRepo{interventions: map[string]*models.Intervention{
		"iv-1": {ID: "iv-1", StudentID: "student-1", UserID: "user-1", Status: models.InterventionContacted, Note: "Ringede til eleven"},
	}}
	students := &mockStudentReader{students: map[string]*models.Student{
		"student-1": {ID: "student-1", Name: "Mikkel Jensen"},
	}}
	return repo, students
}

func TestInterventionServiceCreate(t *testing.T) {
	repo, students := interventionFixtures()
	svc := NewInterventionService(repo, students, nil, nil)

	created, err := svc.Create(context.Background(), "user-2", CreateInterventionRequest{
		StudentID: "student-1",
		Status:    models.InterventionMeetingPlanned,
		Note:      "Møde aftalt til fredag",
	})
	require.NoError(t, err)
	assert.Equal(t, "user-2", created.UserID)
	assert.Equal(t, models.InterventionMeetingPlanned, created.Status)
}

func TestInterventionServiceCreateValidation(t *testing.T) {
	repo, students := interventionFixtures()
	svc := NewInterventionService(repo, students, nil, nil)

	_, err := svc.Create(context.Background(), "user-2", CreateInterventionRequest{
		StudentID: "student-1",
		Status:    models.InterventionStatus("afventer"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), "user-2", CreateInterventionRequest{
		StudentID: "missing",
		Status:    models.InterventionContacted,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestInterventionServiceUpdateOwnership(t *testing.T) {
	repo, students := interventionFixtures()
	svc := NewInterventionService(repo, students, nil, nil)

	status := models.InterventionStarted
	_, err := svc.Update(context.Background(), "iv-1", "user-2", false, UpdateInterventionRequest{Status: &status})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	updated, err := svc.Update(context.Background(), "iv-1", "user-1", false, UpdateInterventionRequest{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, models.InterventionStarted, updated.Status)

	// Admins may update interventions they did not log.
	note := "Overtaget af FACT-teamet"
	updated, err = svc.Update(context.Background(), "iv-1", "user-9", true, UpdateInterventionRequest{Note: &note})
	require.NoError(t, err)
	assert.Equal(t, note, updated.Note)
}

func TestInterventionServiceListForStudent(t *testing.T) {
	repo, students := interventionFixtures()
	svc := NewInterventionService(repo, students, nil, nil)

	interventions, err := svc.ListForStudent(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, interventions, 1)
	assert.Equal(t, models.InterventionContacted, interventions[0].Status)

	_, err = svc.ListForStudent(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
