package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/trivsel-api/internal/models"
	"github.com/noah-isme/trivsel-api/internal/service"
	appErrors "github.com/noah-isme/trivsel-api/pkg/errors"
	"github.com/noah-isme/trivsel-api/pkg/response"
)

// InterventionHandler exposes intervention tracking endpoints.
type InterventionHandler struct {
	interventions *service.InterventionService
}

// NewInterventionHandler constructs InterventionHandler.
func NewInterventionHandler(interventions *service.InterventionService) *InterventionHandler {
	return &InterventionHandler{interventions: interventions}
}

// List godoc
// @Summary List interventions for a student
// @Tags Interventions
// @Produce json
// @Param studentId query string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /interventions [get]
func (h *InterventionHandler) List(c *gin.Context) {
	studentID := strings.TrimSpace(c.Query("studentId"))
	if studentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "studentId is required"))
		return
	}
	interventions, err := h.interventions.ListForStudent(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, interventions, nil)
}

// Create godoc
// @Summary Record an intervention
// @Tags Interventions
// @Accept json
// @Produce json
// @Param payload body service.CreateInterventionRequest true "Intervention payload"
// @Success 201 {object} response.Envelope
// @Router /interventions [post]
func (h *InterventionHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateInterventionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	intervention, err := h.interventions.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, intervention)
}

// Update godoc
// @Summary Update an intervention
// @Description Only the recording staff member or an admin may update
// @Tags Interventions
// @Accept json
// @Produce json
// @Param id path string true "Intervention ID"
// @Param payload body service.UpdateInterventionRequest true "Intervention payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /interventions/{id} [patch]
func (h *InterventionHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateInterventionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	isAdmin := claims.Role == models.RoleAdmin
	intervention, err := h.interventions.Update(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, intervention, nil)
}
