package api

import (
	"context"
	"io"
	"net/http"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/mpesa"
	"github.com/Domenick1991/travelbooking/internal/service/payment"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxCallbackBody = 64 << 10

type PaymentHandler struct {
	payments  payment.PaymentUseCase
	callbacks payment.CallbackHandler
}

type paymentStatusResponse struct {
	CheckoutRequestID string                      `json:"checkout_request_id"`
	Status            domain.PendingPaymentStatus `json:"status"`
	Amount            int64                       `json:"amount"`
	ResultCode        *int                        `json:"result_code,omitempty"`
	ResultDesc        *string                     `json:"result_desc,omitempty"`
	ReceiptNumber     *string                     `json:"receipt_number,omitempty"`
}

func NewPaymentHandler(payments payment.PaymentUseCase, callbacks payment.CallbackHandler) *PaymentHandler {
	return &PaymentHandler{payments: payments, callbacks: callbacks}
}

func (h *PaymentHandler) Register(router *gin.RouterGroup) {
	router.GET("/:checkoutId", h.status)
	router.GET("/:checkoutId/await", h.await)
	router.POST("/callback", h.callback)
}

func (h *PaymentHandler) status(c *gin.Context) {
	p, err := h.payments.Status(c.Request.Context(), c.Param("checkoutId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, paymentStatusResponse{
		CheckoutRequestID: p.CheckoutRequestID,
		Status:            p.PaymentStatus,
		Amount:            p.Amount,
		ResultCode:        p.ResultCode,
		ResultDesc:        p.ResultDesc,
		ReceiptNumber:     p.MpesaReceiptNumber,
	})
}

// await blocks for the poll window and reports the terminal state.
func (h *PaymentHandler) await(c *gin.Context) {
	attempt, err := h.payments.Await(c.Request.Context(), c.Param("checkoutId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, attempt)
}

// callback is the provider webhook. It always answers 200 with the
// acknowledgement body.
func (h *PaymentHandler) callback(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		zap.L().Error("failed to read payment callback body", zap.Error(err))
		c.JSON(http.StatusOK, mpesa.Accepted)
		return
	}
	// finish processing even if the provider hangs up
	ctx := context.WithoutCancel(c.Request.Context())
	c.JSON(http.StatusOK, h.callbacks.Handle(ctx, body))
}
