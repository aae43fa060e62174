package service

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/noah-isme/trivsel-api/internal/models"
	"github.com/noah-isme/trivsel-api/pkg/config"
	appErrors "github.com/noah-isme/trivsel-api/pkg/errors"
)

type scoreReader interface {
	ListRecentTotals(ctx context.Context, studentID, excludeSessionID string, limit int) ([]models.Score, error)
}

// trendWindow is the number of recent totals the trend analysis considers.
const trendWindow = 4

// trendDeadBand is the half-to-half difference below which the trajectory
// counts as stable.
const trendDeadBand = 0.3

// ScoringService turns raw 1-5 answers into category scores, a total score
// and traffic-light colors. Category score is the mean of that category's
// answers, the total is the mean of the category means, so categories with
// fewer questions are not underweighted.
type ScoringService struct {
	scores       scoreReader
	greenMin     float64
	yellowMin    float64
	dropMin      float64
	logger       *zap.Logger
	roundingMode func(float64) float64
}

// NewScoringService constructs ScoringService with thresholds from config.
func NewScoringService(scores scoreReader, cfg config.SurveyConfig, logger *zap.Logger) *ScoringService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoringService{
		scores:       scores,
		greenMin:     cfg.GreenMin,
		yellowMin:    cfg.YellowMin,
		dropMin:      cfg.DropThreshold,
		logger:       logger,
		roundingMode: func(v float64) float64 { return math.RoundToEven(v*100) / 100 },
	}
}

// Classify maps a score value onto the traffic-light scale.
func (s *ScoringService) Classify(value float64) models.ScoreColor {
	switch {
	case value >= s.greenMin:
		return models.ColorGreen
	case value >= s.yellowMin:
		return models.ColorYellow
	default:
		return models.ColorRed
	}
}

// ComputeScores calculates the per-category means and the total for one
// submission. Answers are keyed by question ID; questions carry the category.
// Questions without an answer are skipped, and an empty result yields a red
// 0.0 total.
func (s *ScoringService) ComputeScores(questions []models.SurveyQuestion, answers map[string]int) models.ScoreSet {
	sums := make(map[models.SurveyCategory]int)
	counts := make(map[models.SurveyCategory]int)
	for _, question := range questions {
		answer, ok := answers[question.ID]
		if !ok {
			continue
		}
		sums[question.Category] += answer
		counts[question.Category]++
	}

	set := models.ScoreSet{}
	categoryTotal := 0.0
	for _, category := range models.AllCategories() {
		count := counts[category]
		if count == 0 {
			continue
		}
		mean := float64(sums[category]) / float64(count)
		set.Categories = append(set.Categories, models.CategoryScore{
			Category: category,
			Value:    s.roundingMode(mean),
			Color:    s.Classify(mean),
		})
		categoryTotal += mean
	}

	total := 0.0
	if len(set.Categories) > 0 {
		total = categoryTotal / float64(len(set.Categories))
	}
	set.Total = s.roundingMode(total)
	set.TotalColor = s.Classify(total)
	return set
}

// BuildScoreRows converts a computed set into persistable rows for one
// session, category scores first and the total last.
func (s *ScoringService) BuildScoreRows(session *models.SurveySession, set models.ScoreSet) []models.Score {
	rows := make([]models.Score, 0, len(set.Categories)+1)
	for _, categoryScore := range set.Categories {
		category := categoryScore.Category
		rows = append(rows, models.Score{
			SessionID: session.ID,
			StudentID: session.StudentID,
			Category:  &category,
			Value:     categoryScore.Value,
			Color:     categoryScore.Color,
			IsTotal:   false,
		})
	}
	rows = append(rows, models.Score{
		SessionID: session.ID,
		StudentID: session.StudentID,
		Value:     set.Total,
		Color:     set.TotalColor,
		IsTotal:   true,
	})
	return rows
}

// DetectScoreDrop reports whether the week-over-week decline reaches the
// alert threshold. No previous measurement means no drop.
func (s *ScoringService) DetectScoreDrop(current float64, previous *float64) bool {
	if previous == nil {
		return false
	}
	return *previous-current >= s.dropMin
}

// PreviousTotal returns the student's most recent total score strictly before
// the given session, or nil when the submission is their first.
func (s *ScoringService) PreviousTotal(ctx context.Context, studentID, excludeSessionID string) (*float64, error) {
	totals, err := s.scores.ListRecentTotals(ctx, studentID, excludeSessionID, 1)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load previous total")
	}
	if len(totals) == 0 {
		return nil, nil
	}
	value := totals[0].Value
	return &value, nil
}

// AnalyzeTrend summarises the trajectory of the student's recent totals.
// The newest half of the window is compared against the older half; moves
// inside the dead band count as stable.
func (s *ScoringService) AnalyzeTrend(ctx context.Context, studentID string) (*models.TrendAnalysis, error) {
	totals, err := s.scores.ListRecentTotals(ctx, studentID, "", trendWindow)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load score history")
	}

	values := make([]float64, 0, len(totals))
	for _, total := range totals {
		values = append(values, total.Value)
	}

	analysis := &models.TrendAnalysis{Scores: values, Trend: models.TrendStable}
	if len(values) == 0 {
		return analysis, nil
	}

	sum := 0.0
	for _, value := range values {
		sum += value
	}
	analysis.Average = s.roundingMode(sum / float64(len(values)))

	if len(values) >= 2 {
		mid := len(values) / 2
		recentAvg := mean(values[:mid])
		olderAvg := mean(values[mid:])
		switch {
		case recentAvg-olderAvg > trendDeadBand:
			analysis.Trend = models.TrendImproving
		case olderAvg-recentAvg > trendDeadBand:
			analysis.Trend = models.TrendDeclining
		}
	}
	return analysis, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, value := range values {
		sum += value
	}
	return sum / float64(len(values))
}
