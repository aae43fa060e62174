package models

import "time"

// SurveyResponse is one answer within a session. It references either a fixed
// question or one of the session's custom-question slots, never both.
type SurveyResponse struct {
	ID                  string    `db:"id" json:"id"`
	SessionID           string    `db:"session_id" json:"session_id"`
	QuestionID          *string   `db:"question_id" json:"question_id,omitempty"`
	CustomQuestionIndex *int      `db:"custom_question_index" json:"custom_question_index,omitempty"`
	Answer              int       `db:"answer" json:"answer"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}
