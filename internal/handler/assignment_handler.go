package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/trivsel-api/internal/models"
	"github.com/noah-isme/trivsel-api/internal/service"
	appErrors "github.com/noah-isme/trivsel-api/pkg/errors"
	"github.com/noah-isme/trivsel-api/pkg/response"
)

// AssignmentHandler exposes student-staff assignment endpoints.
type AssignmentHandler struct {
	assignments *service.AssignmentService
}

// NewAssignmentHandler constructs AssignmentHandler.
func NewAssignmentHandler(assignments *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

// List godoc
// @Summary List assignments for a staff member
// @Description Lists the caller's assignments; admins may pass userId to inspect another staff member
// @Tags Assignments
// @Produce json
// @Param userId query string false "Staff member (admin only)"
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	userID := claims.UserID
	if requested := c.Query("userId"); requested != "" && requested != claims.UserID {
		if claims.Role != models.RoleAdmin {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "only admins may list other staff assignments"))
			return
		}
		userID = requested
	}
	assignments, err := h.assignments.ListForUser(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// Create godoc
// @Summary Assign a staff member to a student
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body service.CreateAssignmentRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	var req service.CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assignment, err := h.assignments.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Delete godoc
// @Summary Remove an assignment
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 204
// @Router /assignments/{id} [delete]
func (h *AssignmentHandler) Delete(c *gin.Context) {
	if err := h.assignments.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListForStudent godoc
// @Summary List staff assigned to a student
// @Tags Assignments
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/student/{studentId} [get]
func (h *AssignmentHandler) ListForStudent(c *gin.Context) {
	details, err := h.assignments.ListForStudent(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details, nil)
}
