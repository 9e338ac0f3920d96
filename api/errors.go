package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// writeError maps the domain error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var (
		validationErr *domain.ValidationError
		capacityErr   *domain.CapacityExceededError
		ineligibleErr *domain.IneligibleRescheduleError
		initiationErr *domain.PaymentInitiationError
		timeoutErr    *domain.PaymentTimeoutError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error(), "field": validationErr.Field})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &capacityErr):
		c.JSON(http.StatusConflict, gin.H{"error": capacityErr.Error(), "remaining": capacityErr.Remaining, "reason": capacityErr.Reason})
	case errors.Is(err, domain.ErrPaymentInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &ineligibleErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": ineligibleErr.Error(), "rule": ineligibleErr.Rule})
	case errors.As(err, &initiationErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": initiationErr.Error(), "code": initiationErr.Code})
	case errors.As(err, &timeoutErr):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": timeoutErr.Error(), "checkout_request_id": timeoutErr.CheckoutRequestID})
	default:
		zap.L().Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
