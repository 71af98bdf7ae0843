package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrol-pay-api/internal/models"
	"github.com/noah-isme/enrol-pay-api/internal/service"
	"github.com/noah-isme/enrol-pay-api/pkg/response"
)

type orderService interface {
	List(ctx context.Context, requester service.Requester, filter models.OrderFilter) ([]models.OrderDetail, *models.Pagination, error)
	Detail(ctx context.Context, requester service.Requester, orderID string) (*models.OrderDetail, error)
	Receipt(ctx context.Context, requester service.Requester, orderID string) ([]byte, string, error)
}

// OrderHandler exposes order listing, detail and receipt endpoints.
type OrderHandler struct {
	service orderService
}

// NewOrderHandler builds a new handler.
func NewOrderHandler(service orderService) *OrderHandler {
	return &OrderHandler{service: service}
}

// List godoc
// @Summary List payment orders
// @Tags Orders
// @Produce json
// @Param course_id query string false "Course filter"
// @Param status query string false "Status filter"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	filter := models.OrderFilter{
		CourseID:  c.Query("course_id"),
		UserID:    c.Query("user_id"),
		Status:    models.OrderStatus(c.Query("status")),
		Page:      page,
		PageSize:  pageSize,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	orders, pagination, err := h.service.List(c.Request.Context(), requesterFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, orders, pagination)
}

// Get godoc
// @Summary Get one order
// @Tags Orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Envelope
// @Router /orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	detail, err := h.service.Detail(c.Request.Context(), requesterFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Receipt godoc
// @Summary Download the payment receipt PDF
// @Tags Orders
// @Produce application/pdf
// @Param id path string true "Order ID"
// @Success 200 {file} binary
// @Router /orders/{id}/receipt [get]
func (h *OrderHandler) Receipt(c *gin.Context) {
	payload, filename, err := h.service.Receipt(c.Request.Context(), requesterFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", payload)
}
