package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/trivsel-api/internal/models"
	"github.com/noah-isme/trivsel-api/internal/service"
	appErrors "github.com/noah-isme/trivsel-api/pkg/errors"
	"github.com/noah-isme/trivsel-api/pkg/response"
)

// QuestionHandler exposes survey question administration endpoints.
type QuestionHandler struct {
	questions *service.QuestionService
}

// NewQuestionHandler constructs QuestionHandler.
func NewQuestionHandler(questions *service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questions: questions}
}

// List godoc
// @Summary List survey questions
// @Tags Questions
// @Produce json
// @Param category query string false "Filter by category"
// @Param phase query string false "Filter by phase (all|indslusning|hovedforloeb|udslusning)"
// @Param active query bool false "Filter by active state"
// @Success 200 {object} response.Envelope
// @Router /questions [get]
func (h *QuestionHandler) List(c *gin.Context) {
	var filter models.QuestionFilter
	if category := c.Query("category"); category != "" {
		cat := models.SurveyCategory(category)
		filter.Category = &cat
	}
	if phase := c.Query("phase"); phase != "" {
		p := models.QuestionPhase(phase)
		filter.Phase = &p
	}
	if active := c.Query("active"); active != "" {
		if val, err := strconv.ParseBool(active); err == nil {
			filter.Active = &val
		}
	}
	questions, err := h.questions.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, questions, nil)
}

// Get godoc
// @Summary Get question detail
// @Tags Questions
// @Produce json
// @Param id path string true "Question ID"
// @Success 200 {object} response.Envelope
// @Router /questions/{id} [get]
func (h *QuestionHandler) Get(c *gin.Context) {
	question, err := h.questions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question, nil)
}

// Create godoc
// @Summary Create survey question
// @Tags Questions
// @Accept json
// @Produce json
// @Param payload body service.CreateQuestionRequest true "Question payload"
// @Success 201 {object} response.Envelope
// @Router /questions [post]
func (h *QuestionHandler) Create(c *gin.Context) {
	var req service.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	question, err := h.questions.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, question)
}

// Update godoc
// @Summary Update survey question
// @Description Updates text, phase, order or active state. Category is immutable.
// @Tags Questions
// @Accept json
// @Produce json
// @Param id path string true "Question ID"
// @Param payload body service.UpdateQuestionRequest true "Question payload"
// @Success 200 {object} response.Envelope
// @Router /questions/{id} [patch]
func (h *QuestionHandler) Update(c *gin.Context) {
	var req service.UpdateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	question, err := h.questions.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question, nil)
}

// Delete godoc
// @Summary Delete survey question
// @Description Fails with 409 when the question has recorded answers
// @Tags Questions
// @Produce json
// @Param id path string true "Question ID"
// @Success 204
// @Router /questions/{id} [delete]
func (h *QuestionHandler) Delete(c *gin.Context) {
	if err := h.questions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reorder godoc
// @Summary Reorder survey questions
// @Tags Questions
// @Accept json
// @Produce json
// @Param payload body object true "Ordered question IDs"
// @Success 204
// @Router /questions/reorder [post]
func (h *QuestionHandler) Reorder(c *gin.Context) {
	var payload struct {
		Order []string `json:"order" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.questions.Reorder(c.Request.Context(), payload.Order); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
