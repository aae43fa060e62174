package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/trivsel-api/internal/dto"
	"github.com/noah-isme/trivsel-api/internal/models"
	"github.com/noah-isme/trivsel-api/pkg/config"
	appErrors "github.com/noah-isme/trivsel-api/pkg/errors"
)

type mockSessionStore struct {
	byToken          map[string]*models.SurveySession
	latest           map[string]*models.SurveySession
	pending          []models.SurveySession
	sweepable        []models.SurveySession
	alreadyClosed    map[string]bool
	created          []models.SurveySession
	markedInProgress []string
	markedExpired    []string
	markedNonResp    []string
	reminderBumps    []string
	completeCalls    int
	completeDenied   bool
	savedResponses   []models.SurveyResponse
	savedScores      []models.Score
}

func (m *mockSessionStore) Create(ctx context.Context, session *models.SurveySession) error {
	if session.ID == "" {
		session.ID = fmt.Sprintf("session-%d", len(m.created)+1)
	}
	m.created = append(m.created, *session)
	return nil
}

func (m *mockSessionStore) FindByToken(ctx context.Context, token string) (*models.SurveySession, error) {
	session, ok := m.byToken[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *session
	return &copied, nil
}

func (m *mockSessionStore) LatestByStudent(ctx context.Context, studentID string) (*models.SurveySession, error) {
	return m.latest[studentID], nil
}

func (m *mockSessionStore) ListPending(ctx context.Context, now time.Time) ([]models.SurveySession, error) {
	return m.pending, nil
}

func (m *mockSessionStore) ListSweepable(ctx context.Context, now time.Time) ([]models.SurveySession, error) {
	return m.sweepable, nil
}

func (m *mockSessionStore) MarkInProgress(ctx context.Context, id string) error {
	m.markedInProgress = append(m.markedInProgress, id)
	return nil
}

func (m *mockSessionStore) MarkExpired(ctx context.Context, id string) error {
	m.markedExpired = append(m.markedExpired, id)
	return nil
}

func (m *mockSessionStore) MarkNonResponse(ctx context.Context, id string) (bool, error) {
	if m.alreadyClosed[id] {
		return false, nil
	}
	m.markedNonResp = append(m.markedNonResp, id)
	return true, nil
}

func (m *mockSessionStore) IncrementReminder(ctx context.Context, id string) error {
	m.reminderBumps = append(m.reminderBumps, id)
	return nil
}

func (m *mockSessionStore) Complete(ctx context.Context, sessionID string, completedAt time.Time, responses []models.SurveyResponse, scores []models.Score) (bool, error) {
	m.completeCalls++
	if m.completeDenied {
		return false, nil
	}
	m.savedResponses = responses
	m.savedScores = scores
	return true, nil
}

type mockSurveyStudents struct {
	students map[string]*models.Student
	eligible []models.Student
}

func (m *mockSurveyStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	student, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *student
	return &copied, nil
}

func (m *mockSurveyStudents) ListEligibleForSurvey(ctx context.Context) ([]models.Student, error) {
	return m.eligible, nil
}

type mockQuestionCatalog struct {
	questions []models.SurveyQuestion
}

func (m *mockQuestionCatalog) ActiveForPhase(ctx context.Context, phase models.StudentPhase) ([]models.SurveyQuestion, error) {
	return m.questions, nil
}

type droppedScore struct {
	previous float64
	current  float64
}

type mockAlertNotifier struct {
	critical     []models.ScoreSet
	drops        []droppedScore
	nonResponses []string
}

func (m *mockAlertNotifier) CriticalScore(ctx context.Context, student *models.Student, set models.ScoreSet) ([]models.Notification, error) {
	m.critical = append(m.critical, set)
	return nil, nil
}

func (m *mockAlertNotifier) ScoreDrop(ctx context.Context, student *models.Student, previous, current float64) ([]models.Notification, error) {
	m.drops = append(m.drops, droppedScore{previous: previous, current: current})
	return nil, nil
}

func (m *mockAlertNotifier) NonResponse(ctx context.Context, student *models.Student, session *models.SurveySession) ([]models.Notification, error) {
	m.nonResponses = append(m.nonResponses, session.ID)
	return nil, nil
}

type mockSurveyMailer struct {
	invitations []string
	reminders   []int
	err         error
}

func (m *mockSurveyMailer) SurveyInvitation(student models.Student, session models.SurveySession) error {
	if m.err != nil {
		return m.err
	}
	m.invitations = append(m.invitations, student.ID)
	return nil
}

func (m *mockSurveyMailer) SurveyReminder(student models.Student, session models.SurveySession, reminderNumber int) error {
	if m.err != nil {
		return m.err
	}
	m.reminders = append(m.reminders, reminderNumber)
	return nil
}

type mockCacheInvalidator struct {
	patterns []string
}

func (m *mockCacheInvalidator) Invalidate(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	return nil
}

type surveyMocks struct {
	sessions  *mockSessionStore
	students  *mockSurveyStudents
	questions *mockQuestionCatalog
	alerts    *mockAlertNotifier
	mailer    *mockSurveyMailer
	cache     *mockCacheInvalidator
	scores    *mockScoreReader
}

func newSurveyMocks() *surveyMocks {
	return &surveyMocks{
		sessions:  &mockSessionStore{byToken: map[string]*models.SurveySession{}, latest: map[string]*models.SurveySession{}, alreadyClosed: map[string]bool{}},
		students:  &mockSurveyStudents{students: map[string]*models.Student{}},
		questions: &mockQuestionCatalog{questions: scoringQuestions()},
		alerts:    &mockAlertNotifier{},
		mailer:    &mockSurveyMailer{},
		cache:     &mockCacheInvalidator{},
		scores:    &mockScoreReader{},
	}
}

func newTestSurveyService(m *surveyMocks) *SurveyService {
	cfg := config.SurveyConfig{GreenMin: 4.0, YellowMin: 3.0, DropThreshold: 1.0, TokenExpiryDays: 7, MaxReminders: 2}
	scoring := NewScoringService(m.scores, cfg, zap.NewNop())
	return NewSurveyService(m.sessions, m.students, m.questions, scoring, m.alerts, m.mailer, m.cache, nil, cfg, nil, zap.NewNop())
}

func surveyStudent() *models.Student {
	return &models.Student{ID: "student-1", Name: "Mikkel Jensen", Email: "mikkel@example.com", Phase: models.PhaseHovedforloeb, Status: models.StudentActive, ConsentStatus: true}
}

func openSurveySession(status models.SessionStatus) *models.SurveySession {
	return &models.SurveySession{
		ID:              "session-1",
		StudentID:       "student-1",
		Token:           "tok-1",
		TokenExpiresAt:  time.Now().UTC().Add(24 * time.Hour),
		Status:          status,
		WeekNumber:      34,
		Year:            2026,
		CustomQuestions: models.CustomQuestions{"Hvordan gik praktikken?"},
	}
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	return appErr.Code
}

func TestSurveyServiceAccessByTokenUnknown(t *testing.T) {
	m := newSurveyMocks()
	svc := newTestSurveyService(m)

	_, err := svc.AccessByToken(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(t, err))
}

func TestSurveyServiceAccessByTokenOpensPendingSession(t *testing.T) {
	m := newSurveyMocks()
	m.sessions.byToken["tok-1"] = openSurveySession(models.SessionPending)
	m.students.students["student-1"] = surveyStudent()
	svc := newTestSurveyService(m)

	view, err := svc.AccessByToken(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"session-1"}, m.sessions.markedInProgress)
	assert.Equal(t, "Mikkel Jensen", view.StudentName)
	assert.Equal(t, 34, view.WeekNumber)
	require.Len(t, view.Questions, 3)
	assert.Equal(t, "q1", view.Questions[0].ID)
	assert.Equal(t, []string{"Hvordan gik praktikken?"}, view.CustomQuestions)
}

func TestSurveyServiceAccessByTokenIdempotent(t *testing.T) {
	m := newSurveyMocks()
	m.sessions.byToken["tok-1"] = openSurveySession(models.SessionInProgress)
	m.students.students["student-1"] = surveyStudent()
	svc := newTestSurveyService(m)

	_, err := svc.AccessByToken(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Empty(t, m.sessions.markedInProgress)
}

func TestSurveyServiceAccessByTokenCompleted(t *testing.T) {
	m := newSurveyMocks()
	m.sessions.byToken["tok-1"] = openSurveySession(models.SessionCompleted)
	svc := newTestSurveyService(m)

	_, err := svc.AccessByToken(context.Background(), "tok-1")
	assert.ErrorIs(t, err, appErrors.ErrAlreadyCompleted)
}

func TestSurveyServiceAccessByTokenLazilyExpires(t *testing.T) {
	m := newSurveyMocks()
	session := openSurveySession(models.SessionPending)
	session.TokenExpiresAt = time.Now().UTC().Add(-time.Hour)
	m.sessions.byToken["tok-1"] = session
	m.students.students["student-1"] = surveyStudent()
	svc := newTestSurveyService(m)

	_, err := svc.AccessByToken(context.Background(), "tok-1")
	assert.ErrorIs(t, err, appErrors.ErrTokenExpired)
	assert.Equal(t, []string{"session-1"}, m.sessions.markedExpired)
	// Lazy expiry never alerts; that stays with the sweep.
	assert.Empty(t, m.alerts.nonResponses)
}

func TestSurveyServiceAccessByTokenConsentRevoked(t *testing.T) {
	m := newSurveyMocks()
	m.sessions.byToken["tok-1"] = openSurveySession(models.SessionPending)
	student := surveyStudent()
	student.ConsentStatus = false
	m.students.students["student-1"] = student
	svc := newTestSurveyService(m)

	_, err := svc.AccessByToken(context.Background(), "tok-1")
	assert.ErrorIs(t, err, appErrors.ErrConsentMissing)
}

func TestSurveyServiceSubmitPersistsResponsesAndScores(t *testing.T) {
	m := newSurveyMocks()
	m.sessions.byToken["tok-1"] = openSurveySession(models.SessionInProgress)
	m.students.students["student-1"] = surveyStudent()
	svc := newTestSurveyService(m)

	resp, err := svc.Submit(context.Background(), "tok-1", dto.SurveySubmitRequest{
		Answers:       map[string]int{"q1": 4, "q2": 4, "q3": 5},
		CustomAnswers: map[int]int{0: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, m.sessions.completeCalls)
	assert.Len(t, m.sessions.savedResponses, 4)
	assert.Len(t, m.sessions.savedScores, 3)

	var total *models.Score
	for i := range m.sessions.savedScores {
		if m.sessions.savedScores[i].IsTotal {
			total = &m.sessions.savedScores[i]
		}
	}
	require.NotNil(t, total)
	assert.Equal(t, 4.5, total.Value)
	assert.Equal(t, models.ColorGreen, total.Color)

	assert.Equal(t, 4.5, resp.Total)
	assert.Equal(t, models.ColorGreen, resp.TotalColor)
	assert.NotEmpty(t, resp.CompletedAt)
	assert.Empty(t, m.alerts.critical)
	assert.Empty(t, m.alerts.drops)
	assert.Contains(t, m.cache.patterns, "dashboard:*")
}

func TestSurveyServiceSubmitRejectsMismatchedAnswers(t *testing.T) {
	cases := []struct {
		name    string
		answers map[string]int
	}{
		{name: "missing question", answers: map[string]int{"q1": 4, "q2": 4}},
		{name: "unknown question", answers: map[string]int{"q1": 4, "q2": 4, "q3": 4, "q9": 4}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newSurveyMocks()
			m.sessions.byToken["tok-1"] = openSurveySession(models.SessionInProgress)
			m.students.students["student-1"] = surveyStudent()
			svc := newTestSurveyService(m)

			_, err := svc.Submit(context.Background(), "tok-1", dto.SurveySubmitRequest{Answers: tc.answers})
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, errorCode(t, err))
			assert.Zero(t, m.sessions.completeCalls)
		})
	}
}

func TestSurveyServiceSubmitRejectsUnknownCustomSlot(t *testing.T) {
	m := newSurveyMocks()
	m.sessions.byToken["tok-1"] = openSurveySession(models.SessionInProgress)
	m.students.students["student-1"] = surveyStudent()
	svc := newTestSurveyService(m)

	_, err := svc.Submit(context.Background(), "tok-1", dto.SurveySubmitRequest{
		Answers:       map[string]int{"q1": 4, "q2": 4, "q3": 4},
		CustomAnswers: map[int]int{5: 3},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(t, err))
	assert.Zero(t, m.sessions.completeCalls)
}

func TestSurveyServiceSubmitRejectsOutOfScaleAnswer(t *testing.T) {
	m := newSurveyMocks()
	svc := newTestSurveyService(m)

	_, err := svc.Submit(context.Background(), "tok-1", dto.SurveySubmitRequest{Answers: map[string]int{"q1": 6, "q2": 4, "q3": 4}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(t, err))
	assert.Zero(t, m.sessions.completeCalls)
}

func TestSurveyServiceSubmitLoserGetsAlreadyCompleted(t *testing.T) {
	m := newSurveyMocks()
	m.sessions.byToken["tok-1"] = openSurveySession(models.SessionInProgress)
	m.students.students["student-1"] = surveyStudent()
	m.sessions.completeDenied = true
	svc := newTestSurveyService(m)

	_, err := svc.Submit(context.Background(), "tok-1", dto.SurveySubmitRequest{Answers: map[string]int{"q1": 4, "q2": 4, "q3": 4}})
	assert.ErrorIs(t, err, appErrors.ErrAlreadyCompleted)
	assert.Empty(t, m.alerts.critical)
	assert.Empty(t, m.alerts.drops)
	assert.Empty(t, m.cache.patterns)
}

func TestSurveyServiceSubmitFiresCriticalAndDropAlerts(t *testing.T) {
	m := newSurveyMocks()
	m.sessions.byToken["tok-1"] = openSurveySession(models.SessionInProgress)
	m.students.students["student-1"] = surveyStudent()
	m.scores.totals = []models.Score{{Value: 4.5, IsTotal: true}}
	svc := newTestSurveyService(m)

	resp, err := svc.Submit(context.Background(), "tok-1", dto.SurveySubmitRequest{Answers: map[string]int{"q1": 2, "q2": 2, "q3": 2}})
	require.NoError(t, err)
	assert.Equal(t, 2.0, resp.Total)
	assert.Equal(t, models.ColorRed, resp.TotalColor)
	require.Len(t, m.alerts.critical, 1)
	require.Len(t, m.alerts.drops, 1)
	assert.Equal(t, 4.5, m.alerts.drops[0].previous)
	assert.Equal(t, 2.0, m.alerts.drops[0].current)
}

func TestSurveyServiceSendWeeklySkipsCurrentWeek(t *testing.T) {
	m := newSurveyMocks()
	now := time.Now().UTC()
	year, week := now.ISOWeek()

	covered := *surveyStudent()
	fresh := models.Student{ID: "student-2", Name: "Sofie Lund", Email: "sofie@example.com", Phase: models.PhaseIndslusning, Status: models.StudentActive, ConsentStatus: true}
	m.students.eligible = []models.Student{covered, fresh}
	m.sessions.latest["student-1"] = &models.SurveySession{ID: "session-old", StudentID: "student-1", WeekNumber: week, Year: year}
	svc := newTestSurveyService(m)

	result, err := svc.SendWeekly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Failed)

	require.Len(t, m.sessions.created, 1)
	created := m.sessions.created[0]
	assert.Equal(t, "student-2", created.StudentID)
	assert.Equal(t, models.SessionPending, created.Status)
	assert.Equal(t, week, created.WeekNumber)
	assert.Equal(t, year, created.Year)
	assert.NotEmpty(t, created.Token)
	require.NotNil(t, created.SentAt)
	assert.True(t, created.TokenExpiresAt.After(now.Add(6*24*time.Hour)))
	assert.Equal(t, []string{"student-2"}, m.mailer.invitations)
}

func TestSurveyServiceSendToStudent(t *testing.T) {
	m := newSurveyMocks()
	m.students.students["student-1"] = surveyStudent()
	svc := newTestSurveyService(m)

	session, err := svc.SendToStudent(context.Background(), "student-1", []string{"Hvordan gik ugen?"})
	require.NoError(t, err)
	assert.Equal(t, models.CustomQuestions{"Hvordan gik ugen?"}, session.CustomQuestions)
	assert.Equal(t, []string{"student-1"}, m.mailer.invitations)
}

func TestSurveyServiceSendToStudentGuards(t *testing.T) {
	m := newSurveyMocks()
	inactive := surveyStudent()
	inactive.Status = models.StudentInactive
	m.students.students["student-1"] = inactive
	unconsented := surveyStudent()
	unconsented.ID = "student-2"
	unconsented.ConsentStatus = false
	m.students.students["student-2"] = unconsented
	svc := newTestSurveyService(m)

	_, err := svc.SendToStudent(context.Background(), "student-1", nil)
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(t, err))

	_, err = svc.SendToStudent(context.Background(), "student-2", nil)
	assert.ErrorIs(t, err, appErrors.ErrConsentMissing)

	_, err = svc.SendToStudent(context.Background(), "student-1", []string{"a?", "b?", "c?"})
	assert.Equal(t, appErrors.ErrValidation.Code, errorCode(t, err))

	assert.Empty(t, m.sessions.created)
}

func TestSurveyServiceSendRemindersRespectsCap(t *testing.T) {
	m := newSurveyMocks()
	m.students.students["student-1"] = surveyStudent()
	unconsented := surveyStudent()
	unconsented.ID = "student-2"
	unconsented.ConsentStatus = false
	m.students.students["student-2"] = unconsented

	m.sessions.pending = []models.SurveySession{
		{ID: "s-1", StudentID: "student-1", Status: models.SessionPending, ReminderCount: 0},
		{ID: "s-2", StudentID: "student-1", Status: models.SessionPending, ReminderCount: 2},
		{ID: "s-3", StudentID: "student-2", Status: models.SessionPending, ReminderCount: 0},
	}
	svc := newTestSurveyService(m)

	result, err := svc.SendReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, []string{"s-1"}, m.sessions.reminderBumps)
	assert.Equal(t, []int{1}, m.mailer.reminders)
}

func TestSurveyServiceProcessExpiredSweepsOnce(t *testing.T) {
	m := newSurveyMocks()
	m.students.students["student-1"] = surveyStudent()
	past := time.Now().UTC().Add(-48 * time.Hour)
	m.sessions.sweepable = []models.SurveySession{
		{ID: "s-1", StudentID: "student-1", Status: models.SessionPending, TokenExpiresAt: past, WeekNumber: 33, Year: 2026},
		{ID: "s-2", StudentID: "student-1", Status: models.SessionExpired, TokenExpiresAt: past, WeekNumber: 32, Year: 2026},
		{ID: "s-3", StudentID: "student-gone", Status: models.SessionInProgress, TokenExpiresAt: past, WeekNumber: 33, Year: 2026},
	}
	// s-2 was already promoted by an earlier sweep run.
	m.sessions.alreadyClosed["s-2"] = true
	svc := newTestSurveyService(m)

	result, err := svc.ProcessExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Swept)
	assert.Equal(t, 1, result.Alerted)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, []string{"s-1", "s-3"}, m.sessions.markedNonResp)
	assert.Equal(t, []string{"s-1"}, m.alerts.nonResponses)
	assert.Contains(t, m.cache.patterns, "dashboard:*")
}

func TestSurveyServiceProcessExpiredEmpty(t *testing.T) {
	m := newSurveyMocks()
	svc := newTestSurveyService(m)

	result, err := svc.ProcessExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Swept)
	assert.Empty(t, m.cache.patterns)
}
