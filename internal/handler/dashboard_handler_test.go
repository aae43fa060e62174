package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/trivsel-api/internal/dto"
	"github.com/noah-isme/trivsel-api/internal/middleware"
	"github.com/noah-isme/trivsel-api/internal/models"
)

type fakeDashboardSrv struct {
	overviewResp *dto.DashboardOverviewResponse
	overviewErr  error
	overviewHit  bool
	highRiskResp []dto.HighRiskEntry
	highRiskHit  bool
	summaryResp  *models.AlertSummary
	markErr      error
	lastFilter   models.NotificationFilter
	lastRead     struct {
		id     string
		userID string
	}
}

func (f *fakeDashboardSrv) Overview(context.Context) (*dto.DashboardOverviewResponse, bool, error) {
	return f.overviewResp, f.overviewHit, f.overviewErr
}

func (f *fakeDashboardSrv) HighRisk(context.Context) ([]dto.HighRiskEntry, bool, error) {
	return f.highRiskResp, f.highRiskHit, nil
}

func (f *fakeDashboardSrv) Alerts(_ context.Context, filter models.NotificationFilter) ([]models.NotificationDetail, *models.Pagination, error) {
	f.lastFilter = filter
	return []models.NotificationDetail{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, nil
}

func (f *fakeDashboardSrv) AlertSummary(context.Context, string) (*models.AlertSummary, error) {
	return f.summaryResp, nil
}

func (f *fakeDashboardSrv) MarkAlertRead(_ context.Context, id, userID string) error {
	f.lastRead.id = id
	f.lastRead.userID = userID
	return f.markErr
}

func TestDashboardHandlerOverviewSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{
		overviewResp: &dto.DashboardOverviewResponse{Counts: dto.OverviewCounts{Green: 3, Red: 1}},
		overviewHit:  true,
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/overview", nil)

	handler.Overview(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")
}

func TestDashboardHandlerAlertsRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/alerts", nil)

	handler.Alerts(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDashboardHandlerAlertsScopedToCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeDashboardSrv{}
	handler := NewDashboardHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/alerts?unread=true&type=critical_score&page=2", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "mentor-1", Role: models.RoleMentor})

	handler.Alerts(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mentor-1", service.lastFilter.UserID)
	assert.True(t, service.lastFilter.UnreadOnly)
	if assert.NotNil(t, service.lastFilter.Type) {
		assert.Equal(t, models.NotificationCriticalScore, *service.lastFilter.Type)
	}
	assert.Equal(t, 2, service.lastFilter.Page)
}

func TestDashboardHandlerMarkAlertRead(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeDashboardSrv{}
	handler := NewDashboardHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/dashboard/alerts/alert-7/read", nil)
	c.Params = gin.Params{{Key: "id", Value: "alert-7"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "mentor-1", Role: models.RoleMentor})

	handler.MarkAlertRead(c)
	// Flush the status the engine would write after the handler chain; a bare
	// c.Status on a test context is deferred until WriteHeaderNow.
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "alert-7", service.lastRead.id)
	assert.Equal(t, "mentor-1", service.lastRead.userID)
}

type responseEnvelope struct {
	Data map[string]interface{} `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}
