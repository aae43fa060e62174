package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/trivsel-api/internal/models"
	appErrors "github.com/noah-isme/trivsel-api/pkg/errors"
)

type consentDecision struct {
	studentID string
	granted   bool
	decidedAt time.Time
}

type mockConsentStudents struct {
	byID      map[string]*models.Student
	byToken   map[string]*models.Student
	decisions []consentDecision
}

func (m *mockConsentStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	student, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *student
	return &copied, nil
}

func (m *mockConsentStudents) FindByConsentToken(ctx context.Context, token string) (*models.Student, error) {
	student, ok := m.byToken[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *student
	return &copied, nil
}

func (m *mockConsentStudents) UpdateConsent(ctx context.Context, id string, granted bool, decidedAt time.Time) error {
	m.decisions = append(m.decisions, consentDecision{studentID: id, granted: granted, decidedAt: decidedAt})
	if student, ok := m.byID[id]; ok {
		student.ConsentStatus = granted
		student.ConsentDate = &decidedAt
	}
	return nil
}

type mockConsentMailer struct {
	requested []string
}

func (m *mockConsentMailer) ConsentRequest(student models.Student) error {
	m.requested = append(m.requested, student.ID)
	return nil
}

type mockAuditWriter struct {
	entries []models.AuditLog
}

func (m *mockAuditWriter) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	m.entries = append(m.entries, *entry)
	return nil
}

func consentFixtures() (*mockConsentStudents, *models.Student) {
	student := &models.Student{ID: "student-1", Name: "Mikkel Jensen", Email: "mikkel@example.com", Status: models.StudentActive, ConsentToken: "consent-tok"}
	store := &mockConsentStudents{
		byID:    map[string]*models.Student{"student-1": student},
		byToken: map[string]*models.Student{"consent-tok": student},
	}
	return store, student
}

func TestConsentServiceStatus(t *testing.T) {
	store, student := consentFixtures()
	decided := time.Now().UTC()
	student.ConsentStatus = true
	student.ConsentDate = &decided
	svc := NewConsentService(store, &mockConsentMailer{}, nil, nil, nil)

	status, err := svc.Status(context.Background(), "consent-tok")
	require.NoError(t, err)
	assert.Equal(t, "Mikkel Jensen", status.StudentName)
	assert.True(t, status.ConsentStatus)
	assert.True(t, status.AlreadyResponded)
}

func TestConsentServiceStatusUnknownToken(t *testing.T) {
	store, _ := consentFixtures()
	svc := NewConsentService(store, &mockConsentMailer{}, nil, nil, nil)

	_, err := svc.Status(context.Background(), "bogus")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(t, err))
}

func TestConsentServiceDecideAccept(t *testing.T) {
	store, _ := consentFixtures()
	audit := &mockAuditWriter{}
	cache := &mockCacheInvalidator{}
	svc := NewConsentService(store, &mockConsentMailer{}, audit, cache, nil)

	message, err := svc.Decide(context.Background(), "consent-tok", true)
	require.NoError(t, err)
	assert.Equal(t, "Tak! Dit samtykke er registreret. Du vil modtage dit første trivselstjek snart.", message)
	require.Len(t, store.decisions, 1)
	assert.True(t, store.decisions[0].granted)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionConsentDecision, audit.entries[0].Action)
	assert.Nil(t, audit.entries[0].UserID)
	assert.Contains(t, cache.patterns, "dashboard:*")
}

func TestConsentServiceDecideIsSwitchable(t *testing.T) {
	store, student := consentFixtures()
	svc := NewConsentService(store, &mockConsentMailer{}, nil, nil, nil)

	_, err := svc.Decide(context.Background(), "consent-tok", true)
	require.NoError(t, err)
	message, err := svc.Decide(context.Background(), "consent-tok", false)
	require.NoError(t, err)
	assert.Equal(t, "Dit valg er registreret. Du vil ikke modtage trivselstjek.", message)
	require.Len(t, store.decisions, 2)
	assert.False(t, student.ConsentStatus)
	assert.False(t, store.decisions[1].decidedAt.Before(store.decisions[0].decidedAt))
}

func TestConsentServiceRequestConsent(t *testing.T) {
	store, _ := consentFixtures()
	mailer := &mockConsentMailer{}
	svc := NewConsentService(store, mailer, nil, nil, nil)

	require.NoError(t, svc.RequestConsent(context.Background(), "student-1"))
	assert.Equal(t, []string{"student-1"}, mailer.requested)
}

func TestConsentServiceRequestConsentRejectsInactive(t *testing.T) {
	store, student := consentFixtures()
	student.Status = models.StudentInactive
	mailer := &mockConsentMailer{}
	svc := NewConsentService(store, mailer, nil, nil, nil)

	err := svc.RequestConsent(context.Background(), "student-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(t, err))
	assert.Empty(t, mailer.requested)
}
