package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrol-pay-api/internal/middleware"
	"github.com/noah-isme/enrol-pay-api/internal/models"
	"github.com/noah-isme/enrol-pay-api/internal/service"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func requesterFromContext(c *gin.Context) service.Requester {
	claims := claimsFromContext(c)
	if claims == nil {
		return service.Requester{}
	}
	return service.Requester{UserID: claims.UserID, PaymentManager: claims.PaymentManager}
}
