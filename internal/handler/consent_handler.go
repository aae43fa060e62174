package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/trivsel-api/internal/dto"
	"github.com/noah-isme/trivsel-api/internal/service"
	"github.com/noah-isme/trivsel-api/pkg/response"
)

// ConsentHandler serves the public consent pages. These endpoints are
// reached through the emailed link and carry no JWT.
type ConsentHandler struct {
	consents *service.ConsentService
}

// NewConsentHandler constructs ConsentHandler.
func NewConsentHandler(consents *service.ConsentService) *ConsentHandler {
	return &ConsentHandler{consents: consents}
}

// Status godoc
// @Summary Consent page data
// @Tags Consent
// @Produce json
// @Param token path string true "Consent token"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /consent/{token} [get]
func (h *ConsentHandler) Status(c *gin.Context) {
	status, err := h.consents.Status(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Accept godoc
// @Summary Record consent
// @Tags Consent
// @Produce json
// @Param token path string true "Consent token"
// @Success 200 {object} response.Envelope
// @Router /consent/{token}/accept [post]
func (h *ConsentHandler) Accept(c *gin.Context) {
	h.decide(c, true)
}

// Decline godoc
// @Summary Record consent refusal
// @Tags Consent
// @Produce json
// @Param token path string true "Consent token"
// @Success 200 {object} response.Envelope
// @Router /consent/{token}/decline [post]
func (h *ConsentHandler) Decline(c *gin.Context) {
	h.decide(c, false)
}

func (h *ConsentHandler) decide(c *gin.Context, granted bool) {
	message, err := h.consents.Decide(c.Request.Context(), c.Param("token"), granted)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ConsentDecisionResponse{Message: message}, nil)
}
