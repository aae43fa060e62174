package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/trivsel-api/internal/middleware"
	"github.com/noah-isme/trivsel-api/internal/models"
	"github.com/noah-isme/trivsel-api/internal/service"
	appErrors "github.com/noah-isme/trivsel-api/pkg/errors"
	"github.com/noah-isme/trivsel-api/pkg/response"
)

// AnalyticsHandler exposes aggregated, pseudonymized analytics endpoints.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Summary godoc
// @Summary Program-wide wellbeing summary
// @Description Student counts, response rate, average total score and color distribution
// @Tags Analytics
// @Produce json
// @Param date_from query string false "RFC3339 lower bound"
// @Param date_to query string false "RFC3339 upper bound"
// @Success 200 {object} response.Envelope
// @Router /analytics/summary [get]
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	filter, err := parseAnalyticsFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	start := time.Now()
	summary, cacheHit, err := h.analytics.Summary(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = make(map[string]interface{})
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, summary, nil, meta)
}

// Export godoc
// @Summary Pseudonymized score export
// @Description Streams score rows keyed by internal ID only. format=csv downloads a file, format=json returns rows inline.
// @Tags Analytics
// @Produce json
// @Produce text/csv
// @Param format query string false "csv or json (default json)"
// @Param date_from query string false "RFC3339 lower bound"
// @Param date_to query string false "RFC3339 upper bound"
// @Success 200 {object} response.Envelope
// @Router /analytics/export [get]
func (h *AnalyticsHandler) Export(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	filter, err := parseAnalyticsFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := c.DefaultQuery("format", "json")
	switch format {
	case "csv":
		payload, err := h.analytics.ExportCSV(c.Request.Context(), filter)
		if err != nil {
			response.Error(c, err)
			return
		}
		filename := fmt.Sprintf("wellbeing_export_%s.csv", time.Now().UTC().Format("20060102"))
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		c.Data(http.StatusOK, "text/csv; charset=utf-8", payload)
	case "json":
		rows, err := h.analytics.ExportRows(c.Request.Context(), filter)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, rows, nil)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or json"))
	}
}

func parseAnalyticsFilter(c *gin.Context) (models.AnalyticsExportFilter, error) {
	var filter models.AnalyticsExportFilter
	if raw := c.Query("date_from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid date_from parameter")
		}
		filter.DateFrom = &parsed
	}
	if raw := c.Query("date_to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid date_to parameter")
		}
		filter.DateTo = &parsed
	}
	return filter, nil
}
