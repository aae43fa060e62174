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

type mockDashboardScores struct {
	overview []models.StudentLatestScore
	highRisk []models.StudentLatestScore
}

func (m *mockDashboardScores) LatestTotalOverview(ctx context.Context) ([]models.StudentLatestScore, error) {
	return m.overview, nil
}

func (m *mockDashboardScores) ListHighRisk(ctx context.Context) ([]models.StudentLatestScore, error) {
	return m.highRisk, nil
}

type mockNotificationStore struct {
	notifications map[string]*models.Notification
	details       []models.NotificationDetail
	unread        map[models.NotificationType]int
	marked        []string
}

func (m *mockNotificationStore) List(ctx context.Context, filter models.NotificationFilter) ([]models.NotificationDetail, int, error) {
	return m.details, len(m.details), nil
}

func (m *mockNotificationStore) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	notification, ok := m.notifications[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *notification
	return &copied, nil
}

func (m *mockNotificationStore) MarkRead(ctx context.Context, id string, readAt time.Time) error {
	m.marked = append(m.marked, id)
	if notification, ok := m.notifications[id]; ok {
		notification.Read = true
		notification.ReadAt = &readAt
	}
	return nil
}

func (m *mockNotificationStore) CountUnreadByType(ctx context.Context, userID string) (map[models.NotificationType]int, error) {
	return m.unread, nil
}

func floatPtr(v float64) *float64 { return &v }

func colorPtr(c models.ScoreColor) *models.ScoreColor { return &c }

func statusPtr(s models.SessionStatus) *models.SessionStatus { return &s }

func intPtr(v int) *int { return &v }

func overviewFixture() []models.StudentLatestScore {
	return []models.StudentLatestScore{
		{StudentID: "s1", InternalID: "STU-1", Name: "Mikkel", Phase: models.PhaseIndslusning, Value: floatPtr(4.2), Color: colorPtr(models.ColorGreen), SessionStatus: statusPtr(models.SessionCompleted), WeekNumber: intPtr(34)},
		{StudentID: "s2", InternalID: "STU-2", Name: "Sofie", Phase: models.PhaseHovedforloeb, Value: floatPtr(3.1), Color: colorPtr(models.ColorYellow), SessionStatus: statusPtr(models.SessionCompleted), WeekNumber: intPtr(34)},
		{StudentID: "s3", InternalID: "STU-3", Name: "Anders", Phase: models.PhaseHovedforloeb, Value: floatPtr(2.4), Color: colorPtr(models.ColorRed), SessionStatus: statusPtr(models.SessionCompleted), WeekNumber: intPtr(34)},
		{StudentID: "s4", InternalID: "STU-4", Name: "Freja", Phase: models.PhaseUdslusning, SessionStatus: statusPtr(models.SessionNonResponse)},
		{StudentID: "s5", InternalID: "STU-5", Name: "Emil", Phase: models.PhaseIndslusning},
	}
}

func TestDashboardOverviewCounts(t *testing.T) {
	scores := &mockDashboardScores{overview: overviewFixture()}
	svc := NewDashboardService(scores, &mockNotificationStore{}, nil, nil, DashboardServiceConfig{})

	overview, cacheHit, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Len(t, overview.Students, 5)
	assert.Equal(t, 1, overview.Counts.Green)
	assert.Equal(t, 1, overview.Counts.Yellow)
	assert.Equal(t, 1, overview.Counts.Red)
	assert.Equal(t, 1, overview.Counts.NonResponse)
}

func TestDashboardHighRiskSortsWorstFirst(t *testing.T) {
	scores := &mockDashboardScores{highRisk: []models.StudentLatestScore{
		{StudentID: "s3", InternalID: "STU-3", Name: "Anders", Value: floatPtr(2.4), WeekNumber: intPtr(34), Year: intPtr(2025)},
		{StudentID: "s9", InternalID: "STU-9", Name: "Ida", Value: floatPtr(1.8), WeekNumber: intPtr(34), Year: intPtr(2025)},
	}}
	svc := NewDashboardService(scores, &mockNotificationStore{}, nil, nil, DashboardServiceConfig{})

	entries, _, err := svc.HighRisk(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "s9", entries[0].StudentID)
	assert.Equal(t, 1.8, entries[0].Score)
	assert.Equal(t, 34, entries[0].WeekNumber)
}

func TestDashboardAlertSummary(t *testing.T) {
	notifications := &mockNotificationStore{unread: map[models.NotificationType]int{
		models.NotificationCriticalScore: 2,
		models.NotificationNonResponse:   1,
	}}
	svc := NewDashboardService(&mockDashboardScores{}, notifications, nil, nil, DashboardServiceConfig{})

	summary, err := svc.AlertSummary(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.CriticalScore)
	assert.Equal(t, 1, summary.NonResponse)
	assert.Equal(t, 3, summary.Total)
}

func TestDashboardMarkAlertRead(t *testing.T) {
	notifications := &mockNotificationStore{notifications: map[string]*models.Notification{
		"n1": {ID: "n1", UserID: "user-1", Type: models.NotificationCriticalScore},
		"n2": {ID: "n2", UserID: "user-2", Type: models.NotificationScoreDrop},
		"n3": {ID: "n3", UserID: "user-1", Read: true},
	}}
	svc := NewDashboardService(&mockDashboardScores{}, notifications, nil, nil, DashboardServiceConfig{})

	require.NoError(t, svc.MarkAlertRead(context.Background(), "n1", "user-1"))
	assert.Equal(t, []string{"n1"}, notifications.marked)

	err := svc.MarkAlertRead(context.Background(), "n2", "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// Already read: success without another write.
	require.NoError(t, svc.MarkAlertRead(context.Background(), "n3", "user-1"))
	assert.Len(t, notifications.marked, 1)

	err = svc.MarkAlertRead(context.Background(), "missing", "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDashboardAlertsRequireUser(t *testing.T) {
	svc := NewDashboardService(&mockDashboardScores{}, &mockNotificationStore{}, nil, nil, DashboardServiceConfig{})
	_, _, err := svc.Alerts(context.Background(), models.NotificationFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
