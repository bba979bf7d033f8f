package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mkovalev/webstore/internal/cart"
	"github.com/mkovalev/webstore/internal/checkout"
	"github.com/mkovalev/webstore/internal/logging"
	"github.com/mkovalev/webstore/internal/mykafka"
	"github.com/mkovalev/webstore/internal/service/token"
	"github.com/mkovalev/webstore/internal/session"
)

type CheckoutHandler struct {
	Service *checkout.Service
	Store   *cart.Store
	Events  mykafka.Publisher
}

type checkoutFailure struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`
}

// Checkout places the order. The cart is cleared only after the order
// transaction committed; any failure leaves the cart intact for a retry.
func (h *CheckoutHandler) Checkout(c echo.Context) error {
	userID := token.UserID(c)

	var payment checkout.Payment
	if err := c.Bind(&payment); err != nil {
		return c.JSON(http.StatusBadRequest, checkoutFailure{Errors: []string{"invalid request body"}})
	}
	if problems := payment.Validate(time.Now()); len(problems) > 0 {
		return c.JSON(http.StatusBadRequest, checkoutFailure{Errors: problems})
	}

	crt := session.CartFrom(c)
	ord, items, err := h.Service.PlaceOrder(userID, crt)
	if err != nil {
		if errors.Is(err, checkout.ErrCartEmpty) {
			return c.JSON(http.StatusBadRequest, checkoutFailure{Errors: []string{"cart is empty"}})
		}
		c.Logger().Errorf("checkout error: %v", err)
		return c.JSON(http.StatusInternalServerError, checkoutFailure{
			Errors: []string{"failed to process order, please retry"},
		})
	}

	// Commit succeeded; only now may the cart go away.
	crt.Clear()
	if err := h.Store.Clear(userID); err != nil {
		c.Logger().Errorf("durable cart clear after checkout: %v", err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Events.PublishEvent(ctx, "order_events", fmt.Sprint(userID), map[string]any{
		"type":    "order_created",
		"userID":  userID,
		"orderID": ord.ID,
		"items":   items,
	}); err != nil {
		logging.FromContext(ctx).Error("kafka publish failed", "err", err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success":        true,
		"order_id":       ord.ID,
		"status":         ord.Status,
		"payment_method": payment.Method,
		"total":          ord.Total,
	})
}
