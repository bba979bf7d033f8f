package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mkovalev/webstore/internal/cart"
	"github.com/mkovalev/webstore/internal/catalog"
	"github.com/mkovalev/webstore/internal/logging"
	"github.com/mkovalev/webstore/internal/mykafka"
	"github.com/mkovalev/webstore/internal/service/token"
	"github.com/mkovalev/webstore/internal/session"
)

type CartHandler struct {
	Store   *cart.Store
	Catalog *catalog.Reader
	Events  mykafka.Publisher
}

func (h *CartHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Events.PublishEvent(ctx, "cart_events", fmt.Sprint(event["userID"]), event); err != nil {
		logging.FromContext(ctx).Error("kafka publish failed", "err", err)
	}
}

// load returns the request cart, pulling the durable rows in first when a
// logged-in session has not sourced them yet. Every mutation goes through
// here: writing through from a cart that never saw the durable rows would
// overwrite them.
func (h *CartHandler) load(c echo.Context) (*cart.Cart, error) {
	crt := session.CartFrom(c)
	if userID := token.UserID(c); userID != 0 && !crt.FromDurable {
		if err := h.Store.LoadInto(crt, userID); err != nil {
			c.Logger().Errorf("cart load error: %v", err)
			return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to load cart")
		}
	}
	return crt, nil
}

// persist writes the session cart through to the durable tier for
// logged-in users; guests keep a session-only cart.
func (h *CartHandler) persist(c echo.Context, crt *cart.Cart) error {
	userID := token.UserID(c)
	if userID == 0 {
		return nil
	}
	if err := h.Store.Replace(userID, crt); err != nil {
		c.Logger().Errorf("cart persist error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update cart")
	}
	return nil
}

func (h *CartHandler) GetCart(c echo.Context) error {
	crt, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, crt)
}

func (h *CartHandler) AddToCart(c echo.Context) error {
	var req struct {
		ProductID uint `json:"product_id"`
		Quantity  int  `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ProductID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	p, err := h.Catalog.Get(req.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		c.Logger().Errorf("catalog read error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update cart")
	}

	crt, err := h.load(c)
	if err != nil {
		return err
	}
	crt.Add(cart.Line{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Quantity:  req.Quantity,
		Stock:     p.Stock,
	})
	if err := h.persist(c, crt); err != nil {
		return err
	}

	h.publish(c, map[string]any{
		"type":      "cart_item_added",
		"userID":    token.UserID(c),
		"productID": p.ID,
		"quantity":  req.Quantity,
	})
	return c.JSON(http.StatusOK, crt)
}

// UpdateItem sets the quantity of a line. A quantity of zero or below
// removes the line instead of keeping a non-positive quantity around.
func (h *CartHandler) UpdateItem(c echo.Context) error {
	productID, err := strconv.Atoi(c.Param("id"))
	if err != nil || productID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	crt, err := h.load(c)
	if err != nil {
		return err
	}
	if _, ok := crt.Get(uint(productID)); !ok {
		return echo.NewHTTPError(http.StatusNotFound, "item not found")
	}
	crt.SetQuantity(uint(productID), req.Quantity)
	if err := h.persist(c, crt); err != nil {
		return err
	}

	h.publish(c, map[string]any{
		"type":      "cart_item_updated",
		"userID":    token.UserID(c),
		"productID": productID,
		"quantity":  req.Quantity,
	})
	return c.JSON(http.StatusOK, crt)
}

func (h *CartHandler) RemoveItem(c echo.Context) error {
	productID, err := strconv.Atoi(c.Param("id"))
	if err != nil || productID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	crt, err := h.load(c)
	if err != nil {
		return err
	}
	crt.Remove(uint(productID))
	if err := h.persist(c, crt); err != nil {
		return err
	}

	h.publish(c, map[string]any{
		"type":      "cart_item_removed",
		"userID":    token.UserID(c),
		"productID": productID,
	})
	return c.JSON(http.StatusOK, crt)
}

func (h *CartHandler) ClearCart(c echo.Context) error {
	crt := session.CartFrom(c)
	crt.Clear()

	if userID := token.UserID(c); userID != 0 {
		if err := h.Store.Clear(userID); err != nil {
			c.Logger().Errorf("cart clear error: %v", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to clear cart")
		}
	}

	h.publish(c, map[string]any{
		"type":   "cart_cleared",
		"userID": token.UserID(c),
	})
	return c.JSON(http.StatusOK, crt)
}
