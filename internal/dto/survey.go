package dto

import "github.com/noah-isme/trivsel-api/internal/models"

// SurveyViewResponse is the public payload behind GET /survey/:token. It
// carries everything the survey page renders; the token itself is never
// echoed back.
type SurveyViewResponse struct {
	StudentName     string               `json:"student_name"`
	WeekNumber      int                  `json:"week_number"`
	Year            int                  `json:"year"`
	Questions       []SurveyQuestionView `json:"questions"`
	CustomQuestions []string             `json:"custom_questions"`
}

// SurveyQuestionView is one fixed question as shown to the student.
type SurveyQuestionView struct {
	ID       string                `json:"id"`
	Category models.SurveyCategory `json:"category"`
	Text     string                `json:"text"`
}

// SurveySubmitRequest captures POST /survey/:token/submit. Answers maps fixed
// question IDs to Likert values; CustomAnswers maps custom-question slots
// (0-based) to values.
type SurveySubmitRequest struct {
	Answers       map[string]int `json:"answers" validate:"required,min=1,dive,min=1,max=5"`
	CustomAnswers map[int]int    `json:"custom_answers,omitempty" validate:"omitempty,dive,min=1,max=5"`
}

// SurveySubmitResponse confirms a completed submission with the computed
// scores.
type SurveySubmitResponse struct {
	Total       float64             `json:"total"`
	TotalColor  models.ScoreColor   `json:"total_color"`
	Categories  []CategoryScoreView `json:"categories"`
	CompletedAt string              `json:"completed_at"`
}

// CategoryScoreView is one category score in API shape.
type CategoryScoreView struct {
	Category models.SurveyCategory `json:"category"`
	Value    float64               `json:"value"`
	Color    models.ScoreColor     `json:"color"`
}

// SendSurveyRequest optionally narrows POST /system/send-surveys to a single
// student, with up to two extra free-form questions for that issuance.
type SendSurveyRequest struct {
	StudentID       *string  `json:"student_id,omitempty"`
	CustomQuestions []string `json:"custom_questions,omitempty" validate:"omitempty,max=2,dive,min=3,max=500"`
}

// SurveyDispatchResult reports the outcome of a bulk send or reminder run.
type SurveyDispatchResult struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// SweepResult reports the outcome of a process-expired run.
type SweepResult struct {
	Swept   int `json:"swept"`
	Alerted int `json:"alerted"`
	Failed  int `json:"failed"`
}
