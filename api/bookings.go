package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/service/booking"
	"github.com/Domenick1991/travelbooking/internal/service/capacity"
	"github.com/Domenick1991/travelbooking/internal/service/reschedule"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service    booking.BookingUseCase
	reschedule reschedule.RescheduleUseCase
}

type rescheduleRequest struct {
	NewDate string `json:"new_date" binding:"required"`
	Actor   string `json:"actor"`
}

type rescheduleResponse struct {
	Booking *domain.Booking            `json:"booking"`
	Log     *domain.RescheduleLogEntry `json:"log"`
}

type eligibilityResponse struct {
	BookingID string                `json:"booking_id"`
	Eligible  bool                  `json:"eligible"`
	Rule      domain.RescheduleRule `json:"rule,omitempty"`
	Reason    string                `json:"reason,omitempty"`
	Dates     []capacity.DateCheck  `json:"dates,omitempty"`
}

func NewBookingHandler(service booking.BookingUseCase, reschedule reschedule.RescheduleUseCase) *BookingHandler {
	return &BookingHandler{service: service, reschedule: reschedule}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/checkout", h.checkout)

	bookings := router.Group("/bookings")
	bookings.GET("/:id", h.get)
	bookings.DELETE("/:id", h.cancel)
	bookings.GET("/:id/reschedule", h.rescheduleOptions)
	bookings.POST("/:id/reschedule", h.rescheduleBooking)
	bookings.GET("/:id/reschedule/history", h.rescheduleHistory)
}

// checkout answers 201 with the booking for free items and 202 with the
// pending payment otherwise.
func (h *BookingHandler) checkout(c *gin.Context) {
	var req booking.CheckoutInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Checkout(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	if result.Booking != nil {
		c.JSON(http.StatusCreated, result)
		return
	}
	c.JSON(http.StatusAccepted, result)
}

func (h *BookingHandler) get(c *gin.Context) {
	b, err := h.service.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) cancel(c *gin.Context) {
	b, err := h.service.CancelBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// rescheduleOptions reports eligibility and, when eligible, the calendar.
func (h *BookingHandler) rescheduleOptions(c *gin.Context) {
	id := c.Param("id")
	from, err := parseDateQuery(c, "from")
	if err != nil {
		writeError(c, err)
		return
	}
	to, err := parseDateQuery(c, "to")
	if err != nil {
		writeError(c, err)
		return
	}

	dates, err := h.reschedule.AvailableDates(c.Request.Context(), id, from, to)
	var ineligible *domain.IneligibleRescheduleError
	if errors.As(err, &ineligible) {
		c.JSON(http.StatusOK, eligibilityResponse{BookingID: id, Rule: ineligible.Rule, Reason: ineligible.Reason})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, eligibilityResponse{BookingID: id, Eligible: true, Dates: dates})
}

func (h *BookingHandler) rescheduleBooking(c *gin.Context) {
	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	newDate, err := time.Parse(domain.DateLayout, req.NewDate)
	if err != nil {
		writeError(c, domain.NewValidationError("new_date", "must be YYYY-MM-DD"))
		return
	}
	actor := req.Actor
	if actor == "" {
		actor = "guest"
	}

	b, entry, err := h.reschedule.Reschedule(c.Request.Context(), c.Param("id"), newDate, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rescheduleResponse{Booking: b, Log: entry})
}

func (h *BookingHandler) rescheduleHistory(c *gin.Context) {
	entries, err := h.reschedule.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// parseDateQuery returns the zero time when the parameter is absent.
func parseDateQuery(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		return time.Time{}, domain.NewValidationError(name, "must be YYYY-MM-DD")
	}
	return t, nil
}
