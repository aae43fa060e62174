package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/trivsel-api/internal/dto"
	"github.com/noah-isme/trivsel-api/internal/models"
	appErrors "github.com/noah-isme/trivsel-api/pkg/errors"
)

const (
	dashboardOverviewCacheKey = "dashboard:overview"
	dashboardHighRiskCacheKey = "dashboard:highrisk"
)

type dashboardScoreReader interface {
	LatestTotalOverview(ctx context.Context) ([]models.StudentLatestScore, error)
	ListHighRisk(ctx context.Context) ([]models.StudentLatestScore, error)
}

type notificationStore interface {
	List(ctx context.Context, filter models.NotificationFilter) ([]models.NotificationDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	MarkRead(ctx context.Context, id string, readAt time.Time) error
	CountUnreadByType(ctx context.Context, userID string) (map[models.NotificationType]int, error)
}

// DashboardServiceConfig tunes dashboard caching.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardService composes the mentor landing view: the color-coded student
// overview, the high-risk list and the per-user alert inbox.
type DashboardService struct {
	scores        dashboardScoreReader
	notifications notificationStore
	cache         *CacheService
	logger        *zap.Logger
	now           func() time.Time
	cfg           DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(
	scores dashboardScoreReader,
	notifications notificationStore,
	cache *CacheService,
	logger *zap.Logger,
	cfg DashboardServiceConfig,
) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		scores:        scores,
		notifications: notifications,
		cache:         cache,
		logger:        logger,
		now:           time.Now,
		cfg:           cfg,
	}
}

// Overview returns one entry per active consented student with their latest
// total score, plus aggregate color counts. The second return value reports
// cache utilisation.
func (s *DashboardService) Overview(ctx context.Context) (*dto.DashboardOverviewResponse, bool, error) {
	if s.cache != nil {
		var cached dto.DashboardOverviewResponse
		hit, err := s.cache.Get(ctx, dashboardOverviewCacheKey, &cached)
		if err != nil {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		} else if hit {
			return &cached, true, nil
		}
	}

	latest, err := s.scores.LatestTotalOverview(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load overview")
	}

	overview := composeOverview(latest)
	s.persistCache(ctx, dashboardOverviewCacheKey, overview)
	return overview, false, nil
}

// HighRisk lists students whose latest total score is red, worst first.
func (s *DashboardService) HighRisk(ctx context.Context) ([]dto.HighRiskEntry, bool, error) {
	if s.cache != nil {
		var cached []dto.HighRiskEntry
		hit, err := s.cache.Get(ctx, dashboardHighRiskCacheKey, &cached)
		if err != nil {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		} else if hit {
			return cached, true, nil
		}
	}

	rows, err := s.scores.ListHighRisk(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load high-risk students")
	}

	entries := make([]dto.HighRiskEntry, 0, len(rows))
	for _, row := range rows {
		if row.Value == nil {
			continue
		}
		entry := dto.HighRiskEntry{
			StudentID:  row.StudentID,
			InternalID: row.InternalID,
			Name:       row.Name,
			Score:      *row.Value,
		}
		if row.WeekNumber != nil {
			entry.WeekNumber = *row.WeekNumber
		}
		if row.Year != nil {
			entry.Year = *row.Year
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score < entries[j].Score })

	s.persistCache(ctx, dashboardHighRiskCacheKey, entries)
	return entries, false, nil
}

// Alerts lists the requesting staff member's notifications, newest first.
func (s *DashboardService) Alerts(ctx context.Context, filter models.NotificationFilter) ([]models.NotificationDetail, *models.Pagination, error) {
	if filter.UserID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "user id required")
	}
	alerts, total, err := s.notifications.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list alerts")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return alerts, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// AlertSummary aggregates the user's unread notifications by type.
func (s *DashboardService) AlertSummary(ctx context.Context, userID string) (*models.AlertSummary, error) {
	counts, err := s.notifications.CountUnreadByType(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise alerts")
	}
	summary := &models.AlertSummary{
		CriticalScore: counts[models.NotificationCriticalScore],
		ScoreDrop:     counts[models.NotificationScoreDrop],
		NonResponse:   counts[models.NotificationNonResponse],
		WeeklySummary: counts[models.NotificationWeeklySummary],
	}
	summary.Total = summary.CriticalScore + summary.ScoreDrop + summary.NonResponse + summary.WeeklySummary
	return summary, nil
}

// MarkAlertRead marks one of the user's own notifications read. Marking an
// already-read notification again is a no-op.
func (s *DashboardService) MarkAlertRead(ctx context.Context, id, userID string) error {
	notification, err := s.notifications.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}
	if notification.UserID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "notification belongs to another user")
	}
	if notification.Read {
		return nil
	}
	if err := s.notifications.MarkRead(ctx, id, s.now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

func (s *DashboardService) persistCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func composeOverview(latest []models.StudentLatestScore) *dto.DashboardOverviewResponse {
	overview := &dto.DashboardOverviewResponse{Students: make([]dto.StudentOverviewEntry, 0, len(latest))}
	for _, row := range latest {
		entry := dto.StudentOverviewEntry{
			StudentID:     row.StudentID,
			InternalID:    row.InternalID,
			Name:          row.Name,
			Phase:         row.Phase,
			LatestScore:   row.Value,
			LatestColor:   row.Color,
			SessionStatus: row.SessionStatus,
			WeekNumber:    row.WeekNumber,
		}
		overview.Students = append(overview.Students, entry)

		if row.SessionStatus != nil && *row.SessionStatus == models.SessionNonResponse {
			overview.Counts.NonResponse++
			continue
		}
		if row.Color == nil {
			continue
		}
		switch *row.Color {
		case models.ColorGreen:
			overview.Counts.Green++
		case models.ColorYellow:
			overview.Counts.Yellow++
		case models.ColorRed:
			overview.Counts.Red++
		}
	}
	return overview
}
