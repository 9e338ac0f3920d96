package api

import (
	"net/http"
	"strconv"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/service/items"
	"github.com/gin-gonic/gin"
)

type ItemHandler struct {
	service items.ItemUseCase
}

func NewItemHandler(service items.ItemUseCase) *ItemHandler {
	return &ItemHandler{service: service}
}

func (h *ItemHandler) Register(router *gin.RouterGroup) {
	router.GET("/", h.list)
	router.GET("/:id", h.get)
	router.GET("/:id/capacity", h.capacity)
	router.GET("/:id/calendar", h.calendar)
}

func (h *ItemHandler) list(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ItemHandler) get(c *gin.Context) {
	item, err := h.service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *ItemHandler) capacity(c *gin.Context) {
	view, err := h.service.Capacity(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ItemHandler) calendar(c *gin.Context) {
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
	guests := 1
	if raw := c.Query("guests"); raw != "" {
		guests, err = strconv.Atoi(raw)
		if err != nil || guests < 1 {
			writeError(c, domain.NewValidationError("guests", "must be a positive integer"))
			return
		}
	}

	days, err := h.service.Calendar(c.Request.Context(), c.Param("id"), from, to, guests)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, days)
}
