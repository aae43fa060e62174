package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/trivsel-api/internal/models"
	appErrors "github.com/noah-isme/trivsel-api/pkg/errors"
)

type mockQuestionRepo struct {
	questions map[string]*models.SurveyQuestion
	reordered []string
	deleteErr error
}

func (m *mockQuestionRepo) List(ctx context.Context, filter models.QuestionFilter) ([]models.SurveyQuestion, error) {
	var out []models.SurveyQuestion
	for _, q := range m.questions {
		if filter.Active != nil && q.Active != *filter.Active {
			continue
		}
		if filter.Category != nil && q.Category != *filter.Category {
			continue
		}
		out = append(out, *q)
	}
	return out, nil
}

func (m *mockQuestionRepo) FindByID(ctx context.Context, id string) (*models.SurveyQuestion, error) {
	question, ok := m.questions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *question
	return &copied, nil
}

func (m *mockQuestionRepo) Create(ctx context.Context, question *models.SurveyQuestion) error {
	if m.questions == nil {
		m.questions = make(map[string]*models.SurveyQuestion)
	}
	question.ID = "q-new"
	copied := *question
	m.questions[question.ID] = &copied
	return nil
}

func (m *mockQuestionRepo) Update(ctx context.Context, question *models.SurveyQuestion) error {
	copied := *question
	m.questions[question.ID] = &copied
	return nil
}

func (m *mockQuestionRepo) Delete(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.questions, id)
	return nil
}

func (m *mockQuestionRepo) Reorder(ctx context.Context, orderedIDs []string) error {
	m.reordered = orderedIDs
	return nil
}

func questionFixture() *mockQuestionRepo {
	return &mockQuestionRepo{questions: map[string]*models.SurveyQuestion{
		"q-1": {ID: "q-1", Category: models.CategoryTrivsel, Phase: models.QuestionPhaseAll, TextDA: "Hvordan har du haft det i denne uge?", DisplayOrder: 1, Active: true},
		"q-2": {ID: "q-2", Category: models.CategoryMotivation, Phase: models.QuestionPhaseAll, TextDA: "Hvor motiveret har du været for at møde op?", DisplayOrder: 2, Active: false},
	}}
}

func TestQuestionServiceCreateDefaults(t *testing.T) {
	repo := questionFixture()
	svc := NewQuestionService(repo, nil, nil)

	created, err := svc.Create(context.Background(), CreateQuestionRequest{
		Category: models.CategorySelvindsigt,
		TextDA:   "Hvor godt kender du dine egne styrker?",
	})
	require.NoError(t, err)
	assert.Equal(t, models.QuestionPhaseAll, created.Phase)
	assert.True(t, created.Active)
}

func TestQuestionServiceCreateRejectsUnknownCategory(t *testing.T) {
	svc := NewQuestionService(questionFixture(), nil, nil)

	_, err := svc.Create(context.Background(), CreateQuestionRequest{
		Category: models.SurveyCategory("humor"),
		TextDA:   "Hvor sjovt var det?",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestQuestionServiceUpdatePartial(t *testing.T) {
	repo := questionFixture()
	svc := NewQuestionService(repo, nil, nil)

	active := true
	text := "Hvor motiveret har du været i denne uge?"
	updated, err := svc.Update(context.Background(), "q-2", UpdateQuestionRequest{TextDA: &text, Active: &active})
	require.NoError(t, err)
	assert.Equal(t, text, updated.TextDA)
	assert.True(t, updated.Active)
	assert.Equal(t, models.CategoryMotivation, updated.Category)
}

func TestQuestionServiceDeleteConflict(t *testing.T) {
	repo := questionFixture()
	repo.deleteErr = sql.ErrTxDone
	svc := NewQuestionService(repo, nil, nil)

	err := svc.Delete(context.Background(), "q-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestQuestionServiceReorder(t *testing.T) {
	repo := questionFixture()
	svc := NewQuestionService(repo, nil, nil)

	require.NoError(t, svc.Reorder(context.Background(), []string{"q-2", "q-1"}))
	assert.Equal(t, []string{"q-2", "q-1"}, repo.reordered)

	err := svc.Reorder(context.Background(), []string{"q-1", "q-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	err = svc.Reorder(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
