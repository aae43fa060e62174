package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/trivsel-api/internal/models"
	appErrors "github.com/noah-isme/trivsel-api/pkg/errors"
	"github.com/noah-isme/trivsel-api/pkg/export"
)

type analyticsRepository interface {
	StudentCounts(ctx context.Context) (total, active, consented int, err error)
	SessionCounts(ctx context.Context, filter models.AnalyticsExportFilter) (sent, completed int, err error)
	AverageTotalScore(ctx context.Context, filter models.AnalyticsExportFilter) (float64, error)
	ColorDistribution(ctx context.Context, filter models.AnalyticsExportFilter) (map[string]int, error)
	ExportRows(ctx context.Context, filter models.AnalyticsExportFilter) ([]models.ScoreExportRow, error)
}

type sessionCounter interface {
	CountByStatuses(ctx context.Context, statuses ...models.SessionStatus) (map[models.SessionStatus]int, error)
	CountCompletedInWeek(ctx context.Context, week, year int) (int, error)
}

// AnalyticsService serves pseudonymized aggregates and exports. Nothing it
// returns contains student names or email addresses.
type AnalyticsService struct {
	repo     analyticsRepository
	sessions sessionCounter
	cache    *CacheService
	metrics  *MetricsService
	csv      *export.CSVExporter
	logger   *zap.Logger
	now      func() time.Time
	cacheTTL time.Duration
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(
	repo analyticsRepository,
	sessions sessionCounter,
	cache *CacheService,
	metrics *MetricsService,
	logger *zap.Logger,
	cacheTTL time.Duration,
) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &AnalyticsService{
		repo:     repo,
		sessions: sessions,
		cache:    cache,
		metrics:  metrics,
		csv:      export.NewCSVExporter(),
		logger:   logger,
		now:      time.Now,
		cacheTTL: cacheTTL,
	}
}

// Summary returns program-wide wellbeing statistics. The boolean indicates
// whether data originated from cache.
func (s *AnalyticsService) Summary(ctx context.Context, filter models.AnalyticsExportFilter) (*models.AnalyticsSummary, bool, error) {
	cacheKey := makeAnalyticsCacheKey("summary", formatTime(filter.DateFrom), formatTime(filter.DateTo))
	if s.cache != nil {
		var cached models.AnalyticsSummary
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			s.logger.Warn("analytics cache read failed", zap.Error(err))
		} else if hit {
			return &cached, true, nil
		}
	}

	start := time.Now()
	total, active, consented, err := s.repo.StudentCounts(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	sent, completed, err := s.repo.SessionCounts(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count sessions")
	}
	average, err := s.repo.AverageTotalScore(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute average score")
	}
	colors, err := s.repo.ColorDistribution(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute color distribution")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("analytics_summary", time.Since(start))
	}

	summary := &models.AnalyticsSummary{
		TotalStudents:     total,
		ActiveStudents:    active,
		ConsentedStudents: consented,
		SessionsSent:      sent,
		SessionsCompleted: completed,
		AverageScore:      average,
		ColorCounts:       colors,
		GeneratedAt:       s.now().UTC(),
	}
	if sent > 0 {
		summary.ResponseRate = float64(completed) / float64(sent) * 100
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, summary, s.cacheTTL); err != nil {
			s.logger.Warn("analytics cache write failed", zap.Error(err))
		}
	}
	return summary, false, nil
}

// ExportRows returns the pseudonymized score rows for the given range.
func (s *AnalyticsService) ExportRows(ctx context.Context, filter models.AnalyticsExportFilter) ([]models.ScoreExportRow, error) {
	rows, err := s.repo.ExportRows(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export rows")
	}
	return rows, nil
}

// ExportCSV renders the pseudonymized score export as CSV bytes.
func (s *AnalyticsService) ExportCSV(ctx context.Context, filter models.AnalyticsExportFilter) ([]byte, error) {
	rows, err := s.ExportRows(ctx, filter)
	if err != nil {
		return nil, err
	}
	dataset := export.Dataset{
		Headers: []string{"internal_id", "phase", "week_number", "year", "category", "value", "color", "is_total", "recorded_at"},
	}
	for _, row := range rows {
		category := ""
		if row.Category != nil {
			category = *row.Category
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"internal_id": row.InternalID,
			"phase":       row.Phase,
			"week_number": strconv.Itoa(row.WeekNumber),
			"year":        strconv.Itoa(row.Year),
			"category":    category,
			"value":       fmt.Sprintf("%.2f", row.Value),
			"color":       row.Color,
			"is_total":    strconv.FormatBool(row.IsTotal),
			"recorded_at": row.RecordedAt.UTC().Format(time.RFC3339),
		})
	}
	data, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
	}
	return data, nil
}

// Stats returns the operational snapshot served to admins.
func (s *AnalyticsService) Stats(ctx context.Context) (*models.SystemStats, error) {
	total, active, _, err := s.repo.StudentCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	counts, err := s.sessions.CountByStatuses(ctx, models.SessionPending, models.SessionInProgress)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count sessions")
	}

	now := s.now().UTC()
	year, week := now.ISOWeek()
	completed, err := s.sessions.CountCompletedInWeek(ctx, week, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count completed sessions")
	}

	return &models.SystemStats{
		ActiveStudents:    active,
		TotalStudents:     total,
		PendingSessions:   counts[models.SessionPending] + counts[models.SessionInProgress],
		CompletedThisWeek: completed,
		CurrentWeek:       week,
		CurrentYear:       year,
	}, nil
}

// SystemMetrics returns the instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.AnalyticsSystemMetrics {
	if s.metrics == nil {
		return models.AnalyticsSystemMetrics{}
	}
	return s.metrics.Snapshot()
}

func makeAnalyticsCacheKey(parts ...string) string {
	var builder strings.Builder
	builder.Grow(len(parts) * 16)
	builder.WriteString("analytics")
	for _, part := range parts {
		if part == "" {
			continue
		}
		builder.WriteByte(':')
		builder.WriteString(strings.ReplaceAll(part, ":", "|"))
	}
	return builder.String()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
