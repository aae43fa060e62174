package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/trivsel-api/internal/dto"
	"github.com/noah-isme/trivsel-api/internal/service"
	appErrors "github.com/noah-isme/trivsel-api/pkg/errors"
	"github.com/noah-isme/trivsel-api/pkg/response"
)

// SystemHandler exposes the admin-only operational endpoints that external
// cron invokes: weekly survey dispatch, reminders and the expiry sweep.
type SystemHandler struct {
	surveys   *service.SurveyService
	analytics *service.AnalyticsService
}

// NewSystemHandler constructs SystemHandler.
func NewSystemHandler(surveys *service.SurveyService, analytics *service.AnalyticsService) *SystemHandler {
	return &SystemHandler{surveys: surveys, analytics: analytics}
}

// SendSurveys godoc
// @Summary Dispatch weekly surveys
// @Description Issues sessions for all active consented students, or for one student when student_id is given
// @Tags System
// @Accept json
// @Produce json
// @Param payload body dto.SendSurveyRequest false "Optional single-student dispatch"
// @Success 200 {object} response.Envelope
// @Router /system/send-surveys [post]
func (h *SystemHandler) SendSurveys(c *gin.Context) {
	var req dto.SendSurveyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	if req.StudentID != nil && *req.StudentID != "" {
		session, err := h.surveys.SendToStudent(c.Request.Context(), *req.StudentID, req.CustomQuestions)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, gin.H{"session_id": session.ID, "expires_at": session.TokenExpiresAt}, nil)
		return
	}
	result, err := h.surveys.SendWeekly(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// SendReminders godoc
// @Summary Send reminder emails
// @Description Reminds students with open sessions; two reminders per session at most
// @Tags System
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /system/send-reminders [post]
func (h *SystemHandler) SendReminders(c *gin.Context) {
	result, err := h.surveys.SendReminders(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ProcessExpired godoc
// @Summary Sweep expired sessions
// @Description Marks overdue sessions non_response and raises non-response alerts
// @Tags System
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /system/process-expired [post]
func (h *SystemHandler) ProcessExpired(c *gin.Context) {
	result, err := h.surveys.ProcessExpired(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Stats godoc
// @Summary Operational statistics
// @Tags System
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /system/stats [get]
func (h *SystemHandler) Stats(c *gin.Context) {
	stats, err := h.analytics.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
