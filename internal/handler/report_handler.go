package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/trivsel-api/internal/dto"
	"github.com/noah-isme/trivsel-api/internal/service"
	appErrors "github.com/noah-isme/trivsel-api/pkg/errors"
	"github.com/noah-isme/trivsel-api/pkg/response"
)

// ReportHandler exposes asynchronous report job endpoints.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs the handler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Create godoc
// @Summary Queue a report job
// @Description Queues a per-student wellbeing PDF or a weekly summary CSV/PDF
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body dto.ReportRequest true "Report request"
// @Success 202 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	job, err := h.reports.CreateJob(c.Request.Context(), req, claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// List godoc
// @Summary List report jobs
// @Description Newest first. Admins see every job, other staff their own.
// @Tags Reports
// @Produce json
// @Param limit query int false "Max rows"
// @Success 200 {object} response.Envelope
// @Router /reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.reports.ListJobs(c.Request.Context(), claims.UserID, claims.Role, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Status godoc
// @Summary Report job status
// @Tags Reports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) Status(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	status, err := h.reports.GetStatus(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Download a finished report
// @Description Streams the artifact behind a signed, expiring token
// @Tags Reports
// @Produce application/pdf
// @Produce text/csv
// @Param id path string true "Job ID"
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /reports/{id}/download [get]
func (h *ReportHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.reports.ResolveDownload(c.Request.Context(), c.Param("id"), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file"))
		return
	}
	contentType := "application/pdf"
	if download.Format == "csv" {
		contentType = "text/csv; charset=utf-8"
	}
	extraHeaders := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", download.Filename),
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentType, download.File, extraHeaders)
}
