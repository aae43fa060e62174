package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/trivsel-api/internal/models"
	"github.com/noah-isme/trivsel-api/internal/service"
	appErrors "github.com/noah-isme/trivsel-api/pkg/errors"
	"github.com/noah-isme/trivsel-api/pkg/response"
)

// StudentHandler exposes student roster endpoints.
type StudentHandler struct {
	students *service.StudentService
	consents *service.ConsentService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students *service.StudentService, consents *service.ConsentService) *StudentHandler {
	return &StudentHandler{students: students, consents: consents}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param search query string false "Search by name, email or internal ID"
// @Param phase query string false "Filter by phase"
// @Param status query string false "Filter by status (active|inactive)"
// @Param consent query bool false "Filter by consent state"
// @Param groupId query string false "Filter by group membership"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	var filter models.StudentFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.GroupID = c.Query("groupId")
	if phase := c.Query("phase"); phase != "" {
		p := models.StudentPhase(phase)
		filter.Phase = &p
	}
	if status := c.Query("status"); status != "" {
		st := models.StudentStatus(status)
		filter.Status = &st
	}
	if consent := c.Query("consent"); consent != "" {
		if consent == "true" {
			v := true
			filter.Consent = &v
		} else if consent == "false" {
			v := false
			filter.Consent = &v
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	// Mentors and fact team members only see their assigned students.
	if claims := claimsFromContext(c); claims != nil {
		if claims.Role == models.RoleMentor || claims.Role == models.RoleFactTeam {
			filter.AssignedUserID = claims.UserID
		}
	}

	students, pagination, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Get godoc
// @Summary Get student detail
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	if err := h.ensureAccess(c); err != nil {
		response.Error(c, err)
		return
	}
	student, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Create godoc
// @Summary Register student
// @Description Registers a student and queues the consent-request email
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req service.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.students.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Update godoc
// @Summary Update student
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.UpdateStudentRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [patch]
func (h *StudentHandler) Update(c *gin.Context) {
	var req service.UpdateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.students.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Delete godoc
// @Summary Deactivate student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 204
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	if err := h.students.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Sessions godoc
// @Summary List a student's survey sessions
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Param limit query int false "Max rows"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/sessions [get]
func (h *StudentHandler) Sessions(c *gin.Context) {
	if err := h.ensureAccess(c); err != nil {
		response.Error(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "26"))
	sessions, err := h.students.Sessions(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// Scores godoc
// @Summary List a student's score history
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Param limit query int false "Max rows"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/scores [get]
func (h *StudentHandler) Scores(c *gin.Context) {
	if err := h.ensureAccess(c); err != nil {
		response.Error(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	scores, err := h.students.Scores(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scores, nil)
}

// Trend godoc
// @Summary Analyze a student's recent score trend
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/trend [get]
func (h *StudentHandler) Trend(c *gin.Context) {
	if err := h.ensureAccess(c); err != nil {
		response.Error(c, err)
		return
	}
	trend, err := h.students.Trend(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, trend, nil)
}

// RequestConsent godoc
// @Summary Resend the consent-request email
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 202 {object} response.Envelope
// @Router /students/{id}/consent-request [post]
func (h *StudentHandler) RequestConsent(c *gin.Context) {
	if h.consents == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	if err := h.consents.RequestConsent(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"message": "consent request queued"}, nil)
}

func (h *StudentHandler) ensureAccess(c *gin.Context) error {
	claims := claimsFromContext(c)
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if claims.Role == models.RoleAdmin || claims.Role == models.RoleAnalyst {
		return nil
	}
	return h.students.EnsureAccess(c.Request.Context(), c.Param("id"), claims.UserID)
}
