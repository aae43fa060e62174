package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/trivsel-api/internal/dto"
	"github.com/noah-isme/trivsel-api/internal/models"
	"github.com/noah-isme/trivsel-api/pkg/config"
	appErrors "github.com/noah-isme/trivsel-api/pkg/errors"
)

type sessionStore interface {
	Create(ctx context.Context, session *models.SurveySession) error
	FindByToken(ctx context.Context, token string) (*models.SurveySession, error)
	LatestByStudent(ctx context.Context, studentID string) (*models.SurveySession, error)
	ListPending(ctx context.Context, now time.Time) ([]models.SurveySession, error)
	ListSweepable(ctx context.Context, now time.Time) ([]models.SurveySession, error)
	MarkInProgress(ctx context.Context, id string) error
	MarkExpired(ctx context.Context, id string) error
	MarkNonResponse(ctx context.Context, id string) (bool, error)
	IncrementReminder(ctx context.Context, id string) error
	Complete(ctx context.Context, sessionID string, completedAt time.Time, responses []models.SurveyResponse, scores []models.Score) (bool, error)
}

type surveyStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListEligibleForSurvey(ctx context.Context) ([]models.Student, error)
}

type activeQuestionReader interface {
	ActiveForPhase(ctx context.Context, phase models.StudentPhase) ([]models.SurveyQuestion, error)
}

type alertNotifier interface {
	CriticalScore(ctx context.Context, student *models.Student, set models.ScoreSet) ([]models.Notification, error)
	ScoreDrop(ctx context.Context, student *models.Student, previous, current float64) ([]models.Notification, error)
	NonResponse(ctx context.Context, student *models.Student, session *models.SurveySession) ([]models.Notification, error)
}

type surveyMailer interface {
	SurveyInvitation(student models.Student, session models.SurveySession) error
	SurveyReminder(student models.Student, session models.SurveySession, reminderNumber int) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// SurveyService drives the survey session lifecycle: weekly issuance,
// tokenized access, submission and the non-response sweep. Alerting and
// email never roll a committed submission back.
type SurveyService struct {
	sessions     sessionStore
	students     surveyStudentReader
	questions    activeQuestionReader
	scoring      *ScoringService
	alerts       alertNotifier
	emails       surveyMailer
	cache        cacheInvalidator
	metrics      *MetricsService
	validate     *validator.Validate
	logger       *zap.Logger
	tokenTTL     time.Duration
	maxReminders int
}

// NewSurveyService constructs SurveyService.
func NewSurveyService(
	sessions sessionStore,
	students surveyStudentReader,
	questions activeQuestionReader,
	scoring *ScoringService,
	alerts alertNotifier,
	emails surveyMailer,
	cache cacheInvalidator,
	metrics *MetricsService,
	cfg config.SurveyConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *SurveyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	expiryDays := cfg.TokenExpiryDays
	if expiryDays <= 0 {
		expiryDays = 7
	}
	return &SurveyService{
		sessions:     sessions,
		students:     students,
		questions:    questions,
		scoring:      scoring,
		alerts:       alerts,
		emails:       emails,
		cache:        cache,
		metrics:      metrics,
		validate:     validate,
		logger:       logger,
		tokenTTL:     time.Duration(expiryDays) * 24 * time.Hour,
		maxReminders: cfg.MaxReminders,
	}
}

// AccessByToken loads the survey behind a token for rendering. First access
// moves a pending session to in_progress; repeat access is idempotent.
func (s *SurveyService) AccessByToken(ctx context.Context, token string) (*dto.SurveyViewResponse, error) {
	session, student, err := s.openSession(ctx, token)
	if err != nil {
		return nil, err
	}

	if session.Status == models.SessionPending {
		if err := s.sessions.MarkInProgress(ctx, session.ID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open survey")
		}
	}

	questions, err := s.questions.ActiveForPhase(ctx, student.Phase)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}

	view := &dto.SurveyViewResponse{
		StudentName:     student.Name,
		WeekNumber:      session.WeekNumber,
		Year:            session.Year,
		Questions:       make([]dto.SurveyQuestionView, 0, len(questions)),
		CustomQuestions: session.CustomQuestions,
	}
	for _, q := range questions {
		view.Questions = append(view.Questions, dto.SurveyQuestionView{ID: q.ID, Category: q.Category, Text: q.TextDA})
	}
	return view, nil
}

// Submit validates and persists a survey submission, then runs the
// post-commit alert checks. The answer set must match the assigned questions
// exactly; nothing persists on a mismatch.
func (s *SurveyService) Submit(ctx context.Context, token string, req dto.SurveySubmitRequest) (*dto.SurveySubmitResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	session, student, err := s.openSession(ctx, token)
	if err != nil {
		return nil, err
	}

	questions, err := s.questions.ActiveForPhase(ctx, student.Phase)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}
	if err := matchAnswerSet(questions, req.Answers); err != nil {
		return nil, err
	}
	for index := range req.CustomAnswers {
		if index < 0 || index >= len(session.CustomQuestions) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("custom answer index %d has no question", index))
		}
	}

	set := s.scoring.ComputeScores(questions, req.Answers)
	scores := s.scoring.BuildScoreRows(session, set)
	responses := buildResponseRows(session, questions, req)

	completedAt := time.Now().UTC()
	completed, err := s.sessions.Complete(ctx, session.ID, completedAt, responses, scores)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save submission")
	}
	if !completed {
		return nil, appErrors.ErrAlreadyCompleted
	}

	s.logger.Sugar().Infow("survey submitted",
		"session_id", session.ID, "student_id", student.ID, "week", session.WeekNumber, "total", set.Total)

	s.afterSubmission(ctx, student, session, set)

	resp := &dto.SurveySubmitResponse{
		Total:       set.Total,
		TotalColor:  set.TotalColor,
		Categories:  make([]dto.CategoryScoreView, 0, len(set.Categories)),
		CompletedAt: completedAt.Format(time.RFC3339),
	}
	for _, c := range set.Categories {
		resp.Categories = append(resp.Categories, dto.CategoryScoreView{Category: c.Category, Value: c.Value, Color: c.Color})
	}
	return resp, nil
}

// SendWeekly issues the current ISO week's survey to every active consented
// student who does not already have one.
func (s *SurveyService) SendWeekly(ctx context.Context) (*dto.SurveyDispatchResult, error) {
	now := time.Now().UTC()
	year, week := now.ISOWeek()

	eligible, err := s.students.ListEligibleForSurvey(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}

	result := &dto.SurveyDispatchResult{}
	for i := range eligible {
		student := eligible[i]
		latest, err := s.sessions.LatestByStudent(ctx, student.ID)
		if err != nil {
			s.logger.Sugar().Warnw("failed to check latest session", "student_id", student.ID, "error", err)
			result.Failed++
			continue
		}
		if latest != nil && latest.WeekNumber == week && latest.Year == year {
			result.Skipped++
			continue
		}
		if _, err := s.issueSession(ctx, student, week, year, nil); err != nil {
			s.logger.Sugar().Warnw("failed to issue survey", "student_id", student.ID, "error", err)
			result.Failed++
			continue
		}
		result.Sent++
	}

	s.logger.Sugar().Infow("weekly surveys dispatched",
		"week", week, "year", year, "sent", result.Sent, "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

// SendToStudent issues a survey to one student outside the weekly batch,
// optionally carrying staff-supplied custom questions.
func (s *SurveyService) SendToStudent(ctx context.Context, studentID string, customQuestions []string) (*models.SurveySession, error) {
	if len(customQuestions) > models.MaxCustomQuestions {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d custom questions allowed", models.MaxCustomQuestions))
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Status != models.StudentActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is not active")
	}
	if !student.ConsentStatus {
		return nil, appErrors.ErrConsentMissing
	}

	now := time.Now().UTC()
	year, week := now.ISOWeek()
	return s.issueSession(ctx, *student, week, year, customQuestions)
}

// SendReminders emails students with open pending sessions, bounded by the
// configured reminder cap.
func (s *SurveyService) SendReminders(ctx context.Context) (*dto.SurveyDispatchResult, error) {
	now := time.Now().UTC()
	pending, err := s.sessions.ListPending(ctx, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending sessions")
	}

	result := &dto.SurveyDispatchResult{}
	for i := range pending {
		session := pending[i]
		if s.maxReminders > 0 && session.ReminderCount >= s.maxReminders {
			result.Skipped++
			continue
		}
		student, err := s.students.FindByID(ctx, session.StudentID)
		if err != nil {
			s.logger.Sugar().Warnw("failed to load student for reminder", "session_id", session.ID, "error", err)
			result.Failed++
			continue
		}
		if student.Status != models.StudentActive || !student.ConsentStatus {
			result.Skipped++
			continue
		}
		if err := s.emails.SurveyReminder(*student, session, session.ReminderCount+1); err != nil {
			s.logger.Sugar().Warnw("failed to queue reminder", "session_id", session.ID, "error", err)
			result.Failed++
			continue
		}
		if err := s.sessions.IncrementReminder(ctx, session.ID); err != nil {
			s.logger.Sugar().Warnw("failed to count reminder", "session_id", session.ID, "error", err)
			result.Failed++
			continue
		}
		result.Sent++
	}

	s.logger.Sugar().Infow("reminders dispatched", "sent", result.Sent, "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

// ProcessExpired sweeps sessions past their token expiry into non_response
// and fires the non-response alerts. The rows-affected check on the
// transition keeps the sweep idempotent: a session alerts at most once even
// across overlapping sweeps.
func (s *SurveyService) ProcessExpired(ctx context.Context) (*dto.SweepResult, error) {
	now := time.Now().UTC()
	sweepable, err := s.sessions.ListSweepable(ctx, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load expired sessions")
	}

	result := &dto.SweepResult{}
	for i := range sweepable {
		session := sweepable[i]
		transitioned, err := s.sessions.MarkNonResponse(ctx, session.ID)
		if err != nil {
			s.logger.Sugar().Warnw("failed to close expired session", "session_id", session.ID, "error", err)
			result.Failed++
			continue
		}
		if !transitioned {
			continue
		}
		result.Swept++
		s.metrics.RecordSessionSwept()

		student, err := s.students.FindByID(ctx, session.StudentID)
		if err != nil {
			s.logger.Sugar().Warnw("failed to load student for non-response alert", "session_id", session.ID, "error", err)
			continue
		}
		if _, err := s.alerts.NonResponse(ctx, student, &session); err != nil {
			s.logger.Sugar().Warnw("failed to dispatch non-response alert", "session_id", session.ID, "error", err)
			continue
		}
		result.Alerted++
	}

	if result.Swept > 0 {
		s.invalidateCaches(ctx)
	}
	s.logger.Sugar().Infow("expired sessions processed",
		"swept", result.Swept, "alerted", result.Alerted, "failed", result.Failed)
	return result, nil
}

// openSession resolves a token to a live session and its consented student,
// lazily expiring sessions discovered past their deadline.
func (s *SurveyService) openSession(ctx context.Context, token string) (*models.SurveySession, *models.Student, error) {
	session, err := s.sessions.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "survey not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load survey")
	}

	switch session.Status {
	case models.SessionCompleted:
		return nil, nil, appErrors.ErrAlreadyCompleted
	case models.SessionExpired, models.SessionNonResponse:
		return nil, nil, appErrors.ErrTokenExpired
	}
	if time.Now().UTC().After(session.TokenExpiresAt) {
		if err := s.sessions.MarkExpired(ctx, session.ID); err != nil {
			s.logger.Sugar().Warnw("failed to expire session", "session_id", session.ID, "error", err)
		}
		return nil, nil, appErrors.ErrTokenExpired
	}

	student, err := s.students.FindByID(ctx, session.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.ConsentStatus {
		return nil, nil, appErrors.ErrConsentMissing
	}
	return session, student, nil
}

func (s *SurveyService) issueSession(ctx context.Context, student models.Student, week, year int, customQuestions []string) (*models.SurveySession, error) {
	token, err := newOpaqueToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate survey token")
	}

	now := time.Now().UTC()
	session := &models.SurveySession{
		StudentID:       student.ID,
		Token:           token,
		TokenExpiresAt:  now.Add(s.tokenTTL),
		Status:          models.SessionPending,
		WeekNumber:      week,
		Year:            year,
		CustomQuestions: models.CustomQuestions(customQuestions),
		SentAt:          &now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	s.metrics.RecordSurveySent()

	if err := s.emails.SurveyInvitation(student, *session); err != nil {
		s.logger.Sugar().Warnw("failed to queue invitation", "session_id", session.ID, "error", err)
	}
	return session, nil
}

// afterSubmission runs the post-commit checks. Failures here are logged and
// swallowed; the submission is already durable.
func (s *SurveyService) afterSubmission(ctx context.Context, student *models.Student, session *models.SurveySession, set models.ScoreSet) {
	if s.alerts != nil {
		if set.HasRed() {
			if _, err := s.alerts.CriticalScore(ctx, student, set); err != nil {
				s.logger.Sugar().Warnw("failed to dispatch critical alert", "session_id", session.ID, "error", err)
			}
		}
		previous, err := s.scoring.PreviousTotal(ctx, student.ID, session.ID)
		if err != nil {
			s.logger.Sugar().Warnw("failed to load previous total", "student_id", student.ID, "error", err)
		} else if s.scoring.DetectScoreDrop(set.Total, previous) {
			if _, err := s.alerts.ScoreDrop(ctx, student, *previous, set.Total); err != nil {
				s.logger.Sugar().Warnw("failed to dispatch drop alert", "session_id", session.ID, "error", err)
			}
		}
	}
	s.invalidateCaches(ctx)
}

func (s *SurveyService) invalidateCaches(ctx context.Context) {
	if s.cache == nil {
		return
	}
	for _, pattern := range []string{"dashboard:*", "analytics:*"} {
		if err := s.cache.Invalidate(ctx, pattern); err != nil {
			s.logger.Sugar().Warnw("failed to invalidate cache", "pattern", pattern, "error", err)
		}
	}
}

// matchAnswerSet requires the submitted answers to cover the assigned fixed
// questions exactly. Unknown or missing question IDs reject the submission
// before anything persists.
func matchAnswerSet(questions []models.SurveyQuestion, answers map[string]int) error {
	expected := make(map[string]bool, len(questions))
	for _, q := range questions {
		expected[q.ID] = true
	}
	for id := range answers {
		if !expected[id] {
			return appErrors.Clone(appErrors.ErrValidation, "answers do not match the assigned questions")
		}
	}
	if len(answers) != len(expected) {
		return appErrors.Clone(appErrors.ErrValidation, "answers do not match the assigned questions")
	}
	return nil
}

func buildResponseRows(session *models.SurveySession, questions []models.SurveyQuestion, req dto.SurveySubmitRequest) []models.SurveyResponse {
	rows := make([]models.SurveyResponse, 0, len(questions)+len(req.CustomAnswers))
	for i := range questions {
		questionID := questions[i].ID
		rows = append(rows, models.SurveyResponse{
			SessionID:  session.ID,
			QuestionID: &questionID,
			Answer:     req.Answers[questionID],
		})
	}
	for index := 0; index < len(session.CustomQuestions); index++ {
		answer, ok := req.CustomAnswers[index]
		if !ok {
			continue
		}
		slot := index
		rows = append(rows, models.SurveyResponse{
			SessionID:           session.ID,
			CustomQuestionIndex: &slot,
			Answer:              answer,
		})
	}
	return rows
}

func newOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
