package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/trivsel-api/internal/dto"
	"github.com/noah-isme/trivsel-api/internal/middleware"
	"github.com/noah-isme/trivsel-api/internal/models"
	appErrors "github.com/noah-isme/trivsel-api/pkg/errors"
	"github.com/noah-isme/trivsel-api/pkg/response"
)

type dashboardService interface {
	Overview(ctx context.Context) (*dto.DashboardOverviewResponse, bool, error)
	HighRisk(ctx context.Context) ([]dto.HighRiskEntry, bool, error)
	Alerts(ctx context.Context, filter models.NotificationFilter) ([]models.NotificationDetail, *models.Pagination, error)
	AlertSummary(ctx context.Context, userID string) (*models.AlertSummary, error)
	MarkAlertRead(ctx context.Context, id, userID string) error
}

// DashboardHandler wires the dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Overview godoc
// @Summary Wellbeing overview
// @Description Latest total score, color and session status per active consented student
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/overview [get]
func (h *DashboardHandler) Overview(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	start := time.Now()
	overview, cacheHit, err := h.service.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, overview, nil, meta)
}

// HighRisk godoc
// @Summary High-risk students
// @Description Students whose latest total score is red, worst first
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/high-risk [get]
func (h *DashboardHandler) HighRisk(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	start := time.Now()
	entries, cacheHit, err := h.service.HighRisk(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, entries, nil, meta)
}

// Alerts godoc
// @Summary List the caller's notifications
// @Tags Dashboard
// @Produce json
// @Param unread query bool false "Unread only"
// @Param type query string false "Filter by notification type"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /dashboard/alerts [get]
func (h *DashboardHandler) Alerts(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.NotificationFilter{UserID: claims.UserID}
	if unread := c.Query("unread"); unread != "" {
		if val, err := strconv.ParseBool(unread); err == nil {
			filter.UnreadOnly = val
		}
	}
	if typ := c.Query("type"); typ != "" {
		nt := models.NotificationType(typ)
		filter.Type = &nt
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	alerts, pagination, err := h.service.Alerts(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alerts, pagination)
}

// AlertSummary godoc
// @Summary Unread notification counts by type
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/alerts/summary [get]
func (h *DashboardHandler) AlertSummary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summary, err := h.service.AlertSummary(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// MarkAlertRead godoc
// @Summary Mark a notification as read
// @Tags Dashboard
// @Produce json
// @Param id path string true "Notification ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /dashboard/alerts/{id}/read [post]
func (h *DashboardHandler) MarkAlertRead(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.MarkAlertRead(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
