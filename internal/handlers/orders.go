package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mkovalev/webstore/internal/logging"
	"github.com/mkovalev/webstore/internal/models"
	"github.com/mkovalev/webstore/internal/mykafka"
	"github.com/mkovalev/webstore/internal/order"
	"github.com/mkovalev/webstore/internal/service/token"
)

type OrderHandler struct {
	DB      *gorm.DB
	Machine *order.Machine
	Events  mykafka.Publisher
}

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	userID := token.UserID(c)

	var orders []models.Order
	if err := h.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&orders).Error; err != nil {
		c.Logger().Errorf("order list error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load orders")
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	userID := token.UserID(c)
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	var ord models.Order
	if err := h.DB.Where("id = ? AND user_id = ?", id, userID).First(&ord).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		c.Logger().Errorf("order read error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load order")
	}

	var items []models.OrderItem
	if err := h.DB.Where("order_id = ?", ord.ID).Find(&items).Error; err != nil {
		c.Logger().Errorf("order items read error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load order")
	}

	return c.JSON(http.StatusOK, map[string]any{"order": ord, "items": items})
}

// UpdateStatus is the admin-facing endpoint over the status machine:
// 400 invalid id/status/transition, 404 unknown order, 500 storage failure.
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, statusResponse{Message: "invalid order id"})
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, statusResponse{Message: "invalid request body"})
	}

	if err := h.Machine.Apply(uint(id), order.Status(req.Status)); err != nil {
		switch {
		case errors.Is(err, order.ErrOrderNotFound):
			return c.JSON(http.StatusNotFound, statusResponse{Message: "order not found"})
		case errors.Is(err, order.ErrUnknownStatus), errors.Is(err, order.ErrInvalidTransition):
			return c.JSON(http.StatusBadRequest, statusResponse{Message: err.Error()})
		default:
			c.Logger().Errorf("status update error: %v", err)
			return c.JSON(http.StatusInternalServerError, statusResponse{Message: "failed to update status"})
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Events.PublishEvent(ctx, "order_events", fmt.Sprint(id), map[string]any{
		"type":    "order_status_changed",
		"orderID": id,
		"status":  req.Status,
	}); err != nil {
		logging.FromContext(ctx).Error("kafka publish failed", "err", err)
	}

	return c.JSON(http.StatusOK, statusResponse{Success: true})
}
