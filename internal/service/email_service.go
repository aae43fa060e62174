package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/trivsel-api/internal/models"
	"github.com/noah-isme/trivsel-api/pkg/config"
	"github.com/noah-isme/trivsel-api/pkg/jobs"
	"github.com/noah-isme/trivsel-api/pkg/mailer"
)

// Email job types carried on the queue payloads.
const (
	emailJobInvitation = "survey_invitation"
	emailJobReminder   = "survey_reminder"
	emailJobMentor     = "mentor_notification"
	emailJobConsent    = "consent_request"
)

var notificationTypeLabels = map[models.NotificationType]string{
	models.NotificationCriticalScore: "Kritisk score",
	models.NotificationScoreDrop:     "Fald i trivsel",
	models.NotificationNonResponse:   "Manglende besvarelse",
	models.NotificationWeeklySummary: "Ugentlig opsummering",
}

// EmailService composes the Danish program emails and hands them to the
// background queue. Delivery never runs on the request path.
type EmailService struct {
	queue      jobDispatcher
	baseURL    string
	expiryDays int
	logger     *zap.Logger
}

// NewEmailService constructs EmailService.
func NewEmailService(queue jobDispatcher, cfg config.SurveyConfig, logger *zap.Logger) *EmailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailService{
		queue:      queue,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		expiryDays: cfg.TokenExpiryDays,
		logger:     logger,
	}
}

// SurveyInvitation queues the weekly check-in email with the tokenized link.
func (s *EmailService) SurveyInvitation(student models.Student, session models.SurveySession) error {
	link := fmt.Sprintf("%s/survey/%s", s.baseURL, session.Token)
	text := fmt.Sprintf(`Hej %s,

Det er tid til dit ugentlige trivselstjek.

Klik på linket herunder for at besvare spørgeskemaet (tager under 1 minut):

%s

Linket er gyldigt i %d dage.

Venlig hilsen,
TrivselsTracker
`, student.Name, link, s.expiryDays)
	html := fmt.Sprintf(`<p>Hej %s,</p>
<p>Det er tid til dit ugentlige trivselstjek.</p>
<p><a href="%s">Start trivselstjek</a></p>
<p>Det tager under 1 minut at besvare. Linket er gyldigt i %d dage.</p>
<p>Venlig hilsen,<br>TrivselsTracker</p>`, firstName(student.Name), link, s.expiryDays)

	return s.enqueue(emailJobInvitation, mailer.Message{
		To:      student.Email,
		ToName:  student.Name,
		Subject: fmt.Sprintf("Trivselstjek - Uge %d", session.WeekNumber),
		Text:    text,
		HTML:    html,
	})
}

// SurveyReminder queues a nudge for an unanswered check-in.
func (s *EmailService) SurveyReminder(student models.Student, session models.SurveySession, reminderNumber int) error {
	link := fmt.Sprintf("%s/survey/%s", s.baseURL, session.Token)
	text := fmt.Sprintf(`Hej %s,

Vi mangler stadig dit svar på denne uges trivselstjek.

Klik på linket herunder for at besvare (tager under 1 minut):

%s

Dit svar hjælper os med at støtte dig bedst muligt.

Venlig hilsen,
TrivselsTracker
`, student.Name, link)
	html := fmt.Sprintf(`<p>Hej <strong>%s</strong>,</p>
<p>Vi mangler stadig dit svar på denne uges trivselstjek.</p>
<p><a href="%s">Besvar nu</a></p>
<p>Det tager under 1 minut, og dit svar hjælper os med at støtte dig bedst muligt.</p>
<p>Venlig hilsen,<br>TrivselsTracker</p>`, student.Name, link)

	s.logger.Sugar().Infow("queueing survey reminder",
		"student_id", student.ID, "week", session.WeekNumber, "reminder", reminderNumber)
	return s.enqueue(emailJobReminder, mailer.Message{
		To:      student.Email,
		ToName:  student.Name,
		Subject: fmt.Sprintf("Påmindelse: Trivselstjek - Uge %d", session.WeekNumber),
		Text:    text,
		HTML:    html,
	})
}

// MentorNotification queues the alert email mirrored to assigned staff.
func (s *EmailService) MentorNotification(user models.User, studentName string, notificationType models.NotificationType, message string) error {
	label, ok := notificationTypeLabels[notificationType]
	if !ok {
		label = string(notificationType)
	}
	text := fmt.Sprintf(`Hej %s,

Der er en opdatering om %s:

%s
%s

Log ind på TrivselsTracker for at se flere detaljer og registrere din indsats.

Venlig hilsen,
TrivselsTracker
`, user.FullName, studentName, label, message)
	html := fmt.Sprintf(`<p>Hej <strong>%s</strong>,</p>
<p>Der er en opdatering om %s:</p>
<p><strong>%s</strong><br>%s</p>
<p>Log ind på TrivselsTracker for at se flere detaljer og registrere din indsats.</p>
<p>Venlig hilsen,<br>TrivselsTracker</p>`, user.FullName, studentName, label, message)

	return s.enqueue(emailJobMentor, mailer.Message{
		To:      user.Email,
		ToName:  user.FullName,
		Subject: fmt.Sprintf("TrivselsTracker: %s - %s", label, studentName),
		Text:    text,
		HTML:    html,
	})
}

// ConsentRequest queues the welcome email with accept and decline links.
func (s *EmailService) ConsentRequest(student models.Student) error {
	acceptLink := fmt.Sprintf("%s/consent/%s/accept", s.baseURL, student.ConsentToken)
	declineLink := fmt.Sprintf("%s/consent/%s/decline", s.baseURL, student.ConsentToken)
	text := fmt.Sprintf(`Hej %s,

Du er blevet inviteret til TrivselsTracker.

Hver uge sender vi dig et kort trivselstjek (under 1 minut), så vi bedre kan støtte dig i dit forløb.

Vil du deltage?

Ja, jeg vil gerne deltage: %s

Nej tak: %s

Venlig hilsen,
TrivselsTracker
`, student.Name, acceptLink, declineLink)
	html := fmt.Sprintf(`<p>Hej %s,</p>
<p>Du er inviteret til TrivselsTracker. Hver uge sender vi dig et kort trivselstjek, så vi bedre kan støtte dig i dit forløb. Det tager under 1 minut.</p>
<p>Vil du deltage?</p>
<p><a href="%s">Ja, jeg vil gerne deltage</a></p>
<p><a href="%s">Nej tak, jeg ønsker ikke at deltage</a></p>
<p>Venlig hilsen,<br>TrivselsTracker</p>`, student.Name, acceptLink, declineLink)

	return s.enqueue(emailJobConsent, mailer.Message{
		To:      student.Email,
		ToName:  student.Name,
		Subject: "Velkommen til TrivselsTracker",
		Text:    text,
		HTML:    html,
	})
}

func (s *EmailService) enqueue(jobType string, msg mailer.Message) error {
	if msg.To == "" {
		return fmt.Errorf("email job %s: empty recipient", jobType)
	}
	return s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: jobType, Payload: msg})
}

func firstName(name string) string {
	if idx := strings.IndexByte(name, ' '); idx > 0 {
		return name[:idx]
	}
	return name
}

// EmailWorker bridges queue jobs to the mailer transport.
type EmailWorker struct {
	mailer mailer.Mailer
	logger *zap.Logger
}

// NewEmailWorker constructs a worker.
func NewEmailWorker(m mailer.Mailer, logger *zap.Logger) *EmailWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailWorker{mailer: m, logger: logger}
}

// Handle delivers one queued email.
func (w *EmailWorker) Handle(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(mailer.Message)
	if !ok {
		w.logger.Sugar().Errorw("unexpected email payload", "job_id", job.ID, "type", job.Type)
		return fmt.Errorf("email job %s: unexpected payload %T", job.ID, job.Payload)
	}
	return w.mailer.Send(ctx, msg)
}
