package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mkovalev/webstore/internal/cart"
	"github.com/mkovalev/webstore/internal/hash"
	"github.com/mkovalev/webstore/internal/logging"
	"github.com/mkovalev/webstore/internal/models"
	"github.com/mkovalev/webstore/internal/mykafka"
	"github.com/mkovalev/webstore/internal/service/token"
	"github.com/mkovalev/webstore/internal/session"
)

type AuthHandler struct {
	DB       *gorm.DB
	Tokens   *token.TokenService
	Carts    *cart.Store
	Sessions *session.Store
	Events   mykafka.Publisher
}

func (h *AuthHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Events.PublishEvent(ctx, "user_events", fmt.Sprint(event["userID"]), event); err != nil {
		logging.FromContext(ctx).Error("kafka publish failed", "err", err)
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	var existing models.User
	err := h.DB.Where("username = ?", req.Username).First(&existing).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusConflict, "user already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.Logger().Errorf("user lookup error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "registration failed")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "registration failed")
	}
	user := models.User{
		Username:     req.Username,
		PasswordHash: pwHash,
		Role:         "user",
	}
	if err := h.DB.Create(&user).Error; err != nil {
		c.Logger().Errorf("user create error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "registration failed")
	}

	h.publish(c, map[string]any{
		"type":     "user_registered",
		"userID":   user.ID,
		"username": user.Username,
	})
	return c.JSON(http.StatusOK, user)
}

// Login authenticates the user and, exactly once per login event, merges
// the guest session cart into the user's durable cart.
func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var user models.User
	if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	if err := h.Tokens.IssueTokens(c, user.ID, user.Role); err != nil {
		c.Logger().Errorf("token issue error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}

	crt := session.CartFrom(c)
	if err := h.Carts.MergeOnLogin(user.ID, crt); err != nil {
		c.Logger().Errorf("cart merge error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}

	h.publish(c, map[string]any{
		"type":   "user_logged_in",
		"userID": user.ID,
	})
	return c.JSON(http.StatusOK, user)
}

// Logout revokes the refresh token and destroys the ephemeral cart, both
// the request value and the session store entry. The durable cart stays.
func (h *AuthHandler) Logout(c echo.Context) error {
	if rf, err := c.Cookie("refreshToken"); err == nil {
		if err := h.Tokens.RevokeRefresh(rf.Value); err != nil {
			c.Logger().Errorf("refresh revoke error: %v", err)
		}
	}

	expired := time.Now().Add(-time.Hour)
	c.SetCookie(token.CreateCookie("accessToken", "", "/", expired))
	c.SetCookie(token.CreateCookie("refreshToken", "", "/", expired))

	session.CartFrom(c).Clear()
	h.Sessions.Drop(session.ID(c))

	return c.JSON(http.StatusOK, map[string]any{"success": true})
}
