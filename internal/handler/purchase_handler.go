package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrol-pay-api/internal/service"
	appErrors "github.com/noah-isme/enrol-pay-api/pkg/errors"
	"github.com/noah-isme/enrol-pay-api/pkg/response"
)

type purchaseService interface {
	AttemptPurchase(ctx context.Context, userID, clientIP string, secure bool, req service.PurchaseRequest) (*service.Outcome, error)
}

// PurchaseHandler exposes the payment form submission endpoint.
type PurchaseHandler struct {
	service       purchaseService
	allowInsecure bool
}

// NewPurchaseHandler builds a new handler. allowInsecure disables the
// secure-transport check for local development only.
func NewPurchaseHandler(service purchaseService, allowInsecure bool) *PurchaseHandler {
	return &PurchaseHandler{service: service, allowInsecure: allowInsecure}
}

// Purchase godoc
// @Summary Submit a course payment
// @Tags Purchase
// @Accept json
// @Produce json
// @Param payload body service.PurchaseRequest true "Payment form"
// @Success 200 {object} response.Envelope
// @Router /purchase [post]
func (h *PurchaseHandler) Purchase(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment payload"))
		return
	}

	outcome, err := h.service.AttemptPurchase(c.Request.Context(), claims.UserID, c.ClientIP(), h.secure(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// secure reports whether the request arrived over TLS, directly or through a
// terminating proxy.
func (h *PurchaseHandler) secure(c *gin.Context) bool {
	if h.allowInsecure {
		return true
	}
	if c.Request.TLS != nil {
		return true
	}
	proto := c.GetHeader("X-Forwarded-Proto")
	return strings.EqualFold(proto, "https")
}
