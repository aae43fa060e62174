package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/trivsel-api/internal/dto"
	"github.com/noah-isme/trivsel-api/internal/service"
	appErrors "github.com/noah-isme/trivsel-api/pkg/errors"
	"github.com/noah-isme/trivsel-api/pkg/response"
)

// SurveyHandler serves the public survey pages behind emailed session
// tokens. No JWT is involved; the token is the credential.
type SurveyHandler struct {
	surveys *service.SurveyService
}

// NewSurveyHandler constructs SurveyHandler.
func NewSurveyHandler(surveys *service.SurveyService) *SurveyHandler {
	return &SurveyHandler{surveys: surveys}
}

// View godoc
// @Summary Survey page data
// @Description Returns the questions for the session; opens a pending session
// @Tags Survey
// @Produce json
// @Param token path string true "Session token"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /survey/{token} [get]
func (h *SurveyHandler) View(c *gin.Context) {
	view, err := h.surveys.AccessByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Submit godoc
// @Summary Submit survey answers
// @Description Persists all answers atomically and returns the computed scores
// @Tags Survey
// @Accept json
// @Produce json
// @Param token path string true "Session token"
// @Param payload body dto.SurveySubmitRequest true "Answers"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /survey/{token}/submit [post]
func (h *SurveyHandler) Submit(c *gin.Context) {
	var req dto.SurveySubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.surveys.Submit(c.Request.Context(), c.Param("token"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
