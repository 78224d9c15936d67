package payment

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/printforge/server/internal/module/order"
	appErrors "github.com/printforge/server/internal/shared/errors"
	"go.uber.org/zap"
)

// Handler handles client-facing payment HTTP requests.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler creates a new payment handler.
func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers the client-facing payment routes.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/orders/:number/checkout", h.Checkout)
	api.GET("/orders/:number/status", h.OrderStatus)
}

// Checkout starts a hosted checkout for an order.
func (h *Handler) Checkout(c *gin.Context) {
	result, err := h.service.Checkout(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.respondError(c, err, "checkout failed")
		return
	}
	c.JSON(http.StatusOK, result)
}

// OrderStatus returns the current progress of an order.
func (h *Handler) OrderStatus(c *gin.Context) {
	result, err := h.service.OrderStatus(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.respondError(c, err, "order status lookup failed")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) respondError(c *gin.Context, err error, msg string) {
	var appErr *appErrors.AppError
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		appErr = appErrors.NotFound("order")
	case errors.Is(err, ErrOrderNotCheckoutable):
		appErr = appErrors.Conflict(err.Error())
	default:
		h.logger.Error(msg, zap.Error(err))
		appErr = appErrors.Internal(msg, err)
	}
	c.JSON(appErr.StatusCode, appErr.ToResponse())
}
