package models

import "time"

// SurveyCategory is one of the five fixed wellbeing dimensions.
type SurveyCategory string

const (
	CategoryTrivsel         SurveyCategory = "trivsel"
	CategoryMotivation      SurveyCategory = "motivation"
	CategoryFaellesskab     SurveyCategory = "faellesskab"
	CategorySelvindsigt     SurveyCategory = "selvindsigt"
	CategoryArbejdsparathed SurveyCategory = "arbejdsparathed"
)

// Valid reports whether the category is one of the fixed wellbeing dimensions.
func (c SurveyCategory) Valid() bool {
	switch c {
	case CategoryTrivsel, CategoryMotivation, CategoryFaellesskab, CategorySelvindsigt, CategoryArbejdsparathed:
		return true
	}
	return false
}

// AllCategories lists the fixed wellbeing dimensions in canonical order.
func AllCategories() []SurveyCategory {
	return []SurveyCategory{
		CategoryTrivsel,
		CategoryMotivation,
		CategoryFaellesskab,
		CategorySelvindsigt,
		CategoryArbejdsparathed,
	}
}

// QuestionPhase scopes a question to every phase or to one specific phase.
type QuestionPhase string

const (
	QuestionPhaseAll QuestionPhase = "all"
)

// Valid reports whether the phase is "all" or a known student phase.
func (p QuestionPhase) Valid() bool {
	if p == QuestionPhaseAll {
		return true
	}
	return StudentPhase(p).Valid()
}

// AppliesTo reports whether a question scoped to this phase should be shown
// to a student in the given program stage.
func (p QuestionPhase) AppliesTo(phase StudentPhase) bool {
	return p == QuestionPhaseAll || string(p) == string(phase)
}

// SurveyQuestion is admin-managed reference data: the fixed Likert questions
// each weekly survey is assembled from.
type SurveyQuestion struct {
	ID           string         `db:"id" json:"id"`
	Category     SurveyCategory `db:"category" json:"category"`
	Phase        QuestionPhase  `db:"phase" json:"phase"`
	TextDA       string         `db:"text_da" json:"text_da"`
	DisplayOrder int            `db:"display_order" json:"display_order"`
	Active       bool           `db:"active" json:"active"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// QuestionFilter selects questions for listing and survey assembly.
type QuestionFilter struct {
	Category *SurveyCategory
	Phase    *QuestionPhase
	Active   *bool
}
