package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrol-pay-api/internal/models"
	"github.com/noah-isme/enrol-pay-api/internal/service"
	appErrors "github.com/noah-isme/enrol-pay-api/pkg/errors"
	"github.com/noah-isme/enrol-pay-api/pkg/response"
)

type instanceService interface {
	FindByID(ctx context.Context, id string) (*models.EnrolInstance, error)
	UpdateConfig(ctx context.Context, req service.UpdateInstanceRequest) (*models.EnrolInstance, error)
}

// InstanceHandler exposes enrol instance configuration endpoints.
type InstanceHandler struct {
	service instanceService
}

// NewInstanceHandler builds a new handler.
func NewInstanceHandler(service instanceService) *InstanceHandler {
	return &InstanceHandler{service: service}
}

// Get godoc
// @Summary Get an enrol instance
// @Tags Instances
// @Produce json
// @Param id path string true "Instance ID"
// @Success 200 {object} response.Envelope
// @Router /instances/{id} [get]
func (h *InstanceHandler) Get(c *gin.Context) {
	instance, err := h.service.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instance, nil)
}

// Update godoc
// @Summary Update enrol instance configuration
// @Tags Instances
// @Accept json
// @Produce json
// @Param id path string true "Instance ID"
// @Param payload body service.UpdateInstanceRequest true "Instance configuration"
// @Success 200 {object} response.Envelope
// @Router /instances/{id} [put]
func (h *InstanceHandler) Update(c *gin.Context) {
	var req service.UpdateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid instance payload"))
		return
	}
	if req.ID == "" {
		req.ID = c.Param("id")
	}
	if req.ID != c.Param("id") {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "id mismatch between path and body"))
		return
	}

	instance, err := h.service.UpdateConfig(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instance, nil)
}
