package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/trivsel-api/internal/models"
	appErrors "github.com/noah-isme/trivsel-api/pkg/errors"
)

// nonResponseStreakWindow bounds the backwards scan for consecutive missed
// check-ins.
const nonResponseStreakWindow = 5

type assignmentReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.StudentAssignment, error)
}

type notificationWriter interface {
	CreateBatch(ctx context.Context, notifications []models.Notification) error
	CountUnreadByType(ctx context.Context, userID string) (map[models.NotificationType]int, error)
}

type staffReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type sessionHistoryReader interface {
	ListByStudent(ctx context.Context, studentID string, limit int) ([]models.SurveySession, error)
}

type alertMailer interface {
	MentorNotification(user models.User, studentName string, notificationType models.NotificationType, message string) error
}

// AlertService fans alert conditions out to the staff assigned to a student:
// one in-app notification per assignment plus a mirrored email. A student
// without assignments produces a warning log and no notifications.
type AlertService struct {
	assignments   assignmentReader
	notifications notificationWriter
	users         staffReader
	sessions      sessionHistoryReader
	emails        alertMailer
	metrics       *MetricsService
	logger        *zap.Logger
}

// NewAlertService constructs AlertService.
func NewAlertService(assignments assignmentReader, notifications notificationWriter, users staffReader, sessions sessionHistoryReader, emails alertMailer, metrics *MetricsService, logger *zap.Logger) *AlertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertService{
		assignments:   assignments,
		notifications: notifications,
		users:         users,
		sessions:      sessions,
		emails:        emails,
		metrics:       metrics,
		logger:        logger,
	}
}

// CriticalScore alerts on a red total or red categories in a fresh
// submission.
func (s *AlertService) CriticalScore(ctx context.Context, student *models.Student, set models.ScoreSet) ([]models.Notification, error) {
	message := fmt.Sprintf("Eleven har en kritisk trivselsscore på %.2f.", set.Total)
	if red := set.RedCategories(); len(red) > 0 {
		names := make([]string, len(red))
		for i, category := range red {
			names[i] = string(category)
		}
		message += fmt.Sprintf(" Kritiske kategorier: %s.", strings.Join(names, ", "))
	}
	title := fmt.Sprintf("Kritisk score: %s", student.Name)
	return s.fanOut(ctx, student, models.NotificationCriticalScore, title, message)
}

// ScoreDrop alerts on a week-over-week decline at or past the threshold.
func (s *AlertService) ScoreDrop(ctx context.Context, student *models.Student, previous, current float64) ([]models.Notification, error) {
	drop := math.RoundToEven((previous-current)*10) / 10
	message := fmt.Sprintf("Elevens trivselsscore er faldet med %.1f point (fra %.2f til %.2f).", drop, previous, current)
	title := fmt.Sprintf("Fald i trivsel: %s", student.Name)
	return s.fanOut(ctx, student, models.NotificationScoreDrop, title, message)
}

// NonResponse alerts when the sweep closes a missed check-in. Consecutive
// missed weeks are counted over the recent session history, so the message
// escalates with the streak.
func (s *AlertService) NonResponse(ctx context.Context, student *models.Student, session *models.SurveySession) ([]models.Notification, error) {
	streak, err := s.consecutiveNonResponses(ctx, student.ID)
	if err != nil {
		s.logger.Sugar().Warnw("failed to count non-response streak", "student_id", student.ID, "error", err)
		streak = 0
	}

	message := fmt.Sprintf("Eleven har ikke besvaret trivselstjekket for uge %d.", session.WeekNumber)
	if streak > 1 {
		message += fmt.Sprintf(" Dette er %d. uge i træk uden svar.", streak)
	}
	title := fmt.Sprintf("Manglende besvarelse: %s", student.Name)
	return s.fanOut(ctx, student, models.NotificationNonResponse, title, message)
}

// Summary aggregates a staff member's unread alerts per type.
func (s *AlertService) Summary(ctx context.Context, userID string) (*models.AlertSummary, error) {
	counts, err := s.notifications.CountUnreadByType(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count alerts")
	}
	summary := &models.AlertSummary{
		CriticalScore: counts[models.NotificationCriticalScore],
		ScoreDrop:     counts[models.NotificationScoreDrop],
		NonResponse:   counts[models.NotificationNonResponse],
		WeeklySummary: counts[models.NotificationWeeklySummary],
	}
	for _, count := range counts {
		summary.Total += count
	}
	return summary, nil
}

func (s *AlertService) fanOut(ctx context.Context, student *models.Student, notificationType models.NotificationType, title, message string) ([]models.Notification, error) {
	assignments, err := s.assignments.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	if len(assignments) == 0 {
		s.logger.Sugar().Warnw("no staff assigned to student", "student_id", student.ID, "type", notificationType)
		return nil, nil
	}

	studentID := student.ID
	notifications := make([]models.Notification, 0, len(assignments))
	for _, assignment := range assignments {
		notifications = append(notifications, models.Notification{
			UserID:    assignment.UserID,
			StudentID: &studentID,
			Type:      notificationType,
			Title:     title,
			Message:   message,
		})
	}
	if err := s.notifications.CreateBatch(ctx, notifications); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notifications")
	}
	s.metrics.RecordNotificationsCreated(notificationType, len(notifications))

	// Email mirroring is best effort; a dead mailbox never blocks the alert.
	if s.emails != nil {
		for _, assignment := range assignments {
			user, err := s.users.FindByID(ctx, assignment.UserID)
			if err != nil {
				s.logger.Sugar().Warnw("failed to load staff for alert email", "user_id", assignment.UserID, "error", err)
				continue
			}
			if err := s.emails.MentorNotification(*user, student.Name, notificationType, message); err != nil {
				s.logger.Sugar().Warnw("failed to queue alert email", "user_id", user.ID, "error", err)
			}
		}
	}

	s.logger.Sugar().Infow("alert dispatched",
		"student_id", student.ID, "type", notificationType, "recipients", len(notifications))
	return notifications, nil
}

func (s *AlertService) consecutiveNonResponses(ctx context.Context, studentID string) (int, error) {
	sessions, err := s.sessions.ListByStudent(ctx, studentID, nonResponseStreakWindow)
	if err != nil {
		return 0, err
	}
	streak := 0
	for _, session := range sessions {
		if session.Status == models.SessionNonResponse || session.Status == models.SessionExpired {
			streak++
			continue
		}
		break
	}
	return streak, nil
}
