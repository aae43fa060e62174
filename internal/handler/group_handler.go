package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/trivsel-api/internal/service"
	appErrors "github.com/noah-isme/trivsel-api/pkg/errors"
	"github.com/noah-isme/trivsel-api/pkg/response"
)

// GroupHandler exposes student group endpoints.
type GroupHandler struct {
	groups *service.GroupService
}

// NewGroupHandler constructs GroupHandler.
func NewGroupHandler(groups *service.GroupService) *GroupHandler {
	return &GroupHandler{groups: groups}
}

// List godoc
// @Summary List groups with member counts
// @Tags Groups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /groups [get]
func (h *GroupHandler) List(c *gin.Context) {
	groups, err := h.groups.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, nil)
}

// Get godoc
// @Summary Get group detail
// @Tags Groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{id} [get]
func (h *GroupHandler) Get(c *gin.Context) {
	group, err := h.groups.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// Create godoc
// @Summary Create group
// @Tags Groups
// @Accept json
// @Produce json
// @Param payload body service.GroupRequest true "Group payload"
// @Success 201 {object} response.Envelope
// @Router /groups [post]
func (h *GroupHandler) Create(c *gin.Context) {
	var req service.GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	group, err := h.groups.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, group)
}

// Update godoc
// @Summary Update group
// @Tags Groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param payload body service.GroupRequest true "Group payload"
// @Success 200 {object} response.Envelope
// @Router /groups/{id} [patch]
func (h *GroupHandler) Update(c *gin.Context) {
	var req service.GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	group, err := h.groups.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// Delete godoc
// @Summary Delete group
// @Description Removes the group; members keep their student records
// @Tags Groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 204
// @Router /groups/{id} [delete]
func (h *GroupHandler) Delete(c *gin.Context) {
	if err := h.groups.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Members godoc
// @Summary List group members
// @Tags Groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{id}/members [get]
func (h *GroupHandler) Members(c *gin.Context) {
	members, err := h.groups.Members(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, members, nil)
}

// AddMember godoc
// @Summary Add a student to a group
// @Tags Groups
// @Produce json
// @Param id path string true "Group ID"
// @Param studentId path string true "Student ID"
// @Success 204
// @Router /groups/{id}/members/{studentId} [post]
func (h *GroupHandler) AddMember(c *gin.Context) {
	if err := h.groups.AddMember(c.Request.Context(), c.Param("id"), c.Param("studentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveMember godoc
// @Summary Remove a student from a group
// @Tags Groups
// @Produce json
// @Param id path string true "Group ID"
// @Param studentId path string true "Student ID"
// @Success 204
// @Router /groups/{id}/members/{studentId} [delete]
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	if err := h.groups.RemoveMember(c.Request.Context(), c.Param("id"), c.Param("studentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
