package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SessionStatus tracks the survey session lifecycle. Completed, expired and
// non_response are terminal; expired sessions may still be promoted to
// non_response by the sweep so the alert fires exactly once.
type SessionStatus string

const (
	SessionPending     SessionStatus = "pending"
	SessionInProgress  SessionStatus = "in_progress"
	SessionCompleted   SessionStatus = "completed"
	SessionExpired     SessionStatus = "expired"
	SessionNonResponse SessionStatus = "non_response"
)

// Terminal reports whether no further student interaction is possible.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionCompleted, SessionExpired, SessionNonResponse:
		return true
	}
	return false
}

// MaxCustomQuestions bounds the free-form questions staff may attach to a
// single survey issuance.
const MaxCustomQuestions = 2

// CustomQuestions stores up to two free-form question texts as JSONB.
type CustomQuestions []string

// Value marshals the question list to JSON for persistence.
func (q CustomQuestions) Value() (driver.Value, error) {
	if q == nil {
		q = CustomQuestions{}
	}
	data, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("marshal custom questions: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the question list.
func (q *CustomQuestions) Scan(value interface{}) error {
	if value == nil {
		*q = CustomQuestions{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for CustomQuestions", value)
	}
	if len(data) == 0 {
		*q = CustomQuestions{}
		return nil
	}
	if err := json.Unmarshal(data, q); err != nil {
		return fmt.Errorf("unmarshal custom questions: %w", err)
	}
	return nil
}

// SurveySession is one survey issuance for one (student, week) pair. The
// token is the student's only credential: unique, opaque and valid strictly
// before TokenExpiresAt.
type SurveySession struct {
	ID              string          `db:"id" json:"id"`
	StudentID       string          `db:"student_id" json:"student_id"`
	Token           string          `db:"token" json:"-"`
	TokenExpiresAt  time.Time       `db:"token_expires_at" json:"token_expires_at"`
	Status          SessionStatus   `db:"status" json:"status"`
	WeekNumber      int             `db:"week_number" json:"week_number"`
	Year            int             `db:"year" json:"year"`
	ReminderCount   int             `db:"reminder_count" json:"reminder_count"`
	CustomQuestions CustomQuestions `db:"custom_questions" json:"custom_questions"`
	SentAt          *time.Time      `db:"sent_at" json:"sent_at,omitempty"`
	CompletedAt     *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// SessionFilter selects sessions for listing.
type SessionFilter struct {
	StudentID  string
	Status     *SessionStatus
	WeekNumber *int
	Year       *int
	Page       int
	PageSize   int
}
