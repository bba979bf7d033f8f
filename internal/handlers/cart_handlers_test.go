package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mkovalev/webstore/internal/cart"
	"github.com/mkovalev/webstore/internal/catalog"
	"github.com/mkovalev/webstore/internal/models"
	"github.com/mkovalev/webstore/internal/mykafka"
	"github.com/mkovalev/webstore/internal/schema"
	"github.com/mkovalev/webstore/internal/session"
)

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Product{}, &models.User{}, &models.RefreshToken{},
		&models.CartItem{}, &models.Order{}, &models.OrderItem{},
	); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func newCartHandler(db *gorm.DB) *CartHandler {
	reader := &catalog.Reader{DB: db}
	return &CartHandler{
		Store:   &cart.Store{DB: db, Catalog: reader, Caps: schema.Capabilities{HasProcessingStatus: true, HasStockColumn: true}},
		Catalog: reader,
		Events:  mykafka.Noop{},
	}
}

func jsonCtx(t *testing.T, e *echo.Echo, method, path string, payload any) (echo.Context, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAddToCartGuest(t *testing.T) {
	db := initTestDB(t)
	h := newCartHandler(db)

	p := models.Product{Name: "lamp", Description: "d", Price: decimal.RequireFromString("25.00"), Stock: 5}
	require.NoError(t, db.Create(&p).Error)

	e := echo.New()
	c, rec := jsonCtx(t, e, http.MethodPost, "/cart", map[string]any{
		"product_id": p.ID,
		"quantity":   2,
	})
	crt := cart.New()
	session.SetCart(c, crt)

	require.NoError(t, h.AddToCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	l, ok := crt.Get(p.ID)
	require.True(t, ok)
	require.Equal(t, 2, l.Quantity)
	require.Equal(t, "lamp", l.Name)
	require.True(t, crt.Total.Equal(decimal.RequireFromString("50.00")))

	// A guest mutation never touches the durable tier.
	var count int64
	require.NoError(t, db.Model(&models.CartItem{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestAddToCartUnknownProduct(t *testing.T) {
	h := newCartHandler(initTestDB(t))

	e := echo.New()
	c, _ := jsonCtx(t, e, http.MethodPost, "/cart", map[string]any{"product_id": 42, "quantity": 1})
	session.SetCart(c, cart.New())

	err := h.AddToCart(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusNotFound, he.Code)
}

func TestAddToCartPersistsForUser(t *testing.T) {
	db := initTestDB(t)
	h := newCartHandler(db)

	p := models.Product{Name: "lamp", Description: "d", Price: decimal.RequireFromString("25.00"), Stock: 5}
	require.NoError(t, db.Create(&p).Error)

	e := echo.New()
	c, rec := jsonCtx(t, e, http.MethodPost, "/cart", map[string]any{"product_id": p.ID, "quantity": 1})
	session.SetCart(c, cart.New())
	c.Set("userID", uint(7))

	require.NoError(t, h.AddToCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []models.CartItem
	require.NoError(t, db.Where("user_id = ?", 7).Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, p.ID, rows[0].ProductID)
}

func TestAddToCartFreshSessionKeepsDurableLines(t *testing.T) {
	db := initTestDB(t)
	h := newCartHandler(db)

	p1 := models.Product{Name: "lamp", Description: "d", Price: decimal.RequireFromString("25.00"), Stock: 5}
	p2 := models.Product{Name: "mug", Description: "d", Price: decimal.RequireFromString("5.75"), Stock: 5}
	require.NoError(t, db.Create(&p1).Error)
	require.NoError(t, db.Create(&p2).Error)

	// Rows from an earlier session on another device.
	require.NoError(t, db.Create(&models.CartItem{
		UserID: 7, ProductID: p1.ID, Name: "lamp",
		Price: decimal.RequireFromString("25.00"), Quantity: 2,
	}).Error)

	e := echo.New()
	c, rec := jsonCtx(t, e, http.MethodPost, "/cart", map[string]any{"product_id": p2.ID, "quantity": 1})
	session.SetCart(c, cart.New())
	c.Set("userID", uint(7))

	require.NoError(t, h.AddToCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []models.CartItem
	require.NoError(t, db.Where("user_id = ?", 7).Order("product_id ASC").Find(&rows).Error)
	require.Len(t, rows, 2, "the pre-existing durable line must survive the add")
	require.Equal(t, p1.ID, rows[0].ProductID)
	require.Equal(t, uint(2), rows[0].Quantity)
	require.Equal(t, p2.ID, rows[1].ProductID)
}

func TestUpdateItemFreshSessionSeesDurableLines(t *testing.T) {
	db := initTestDB(t)
	h := newCartHandler(db)

	require.NoError(t, db.Create(&models.CartItem{
		UserID: 7, ProductID: 1, Name: "lamp",
		Price: decimal.RequireFromString("25.00"), Quantity: 2,
	}).Error)

	e := echo.New()
	c, rec := jsonCtx(t, e, http.MethodPatch, "/cart/1", map[string]any{"quantity": 5})
	c.SetParamNames("id")
	c.SetParamValues("1")
	session.SetCart(c, cart.New())
	c.Set("userID", uint(7))

	require.NoError(t, h.UpdateItem(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var row models.CartItem
	require.NoError(t, db.Where("user_id = ? AND product_id = ?", 7, 1).First(&row).Error)
	require.Equal(t, uint(5), row.Quantity)
}

func TestUpdateItemQuantityFloor(t *testing.T) {
	db := initTestDB(t)
	h := newCartHandler(db)

	crt := cart.New()
	crt.Add(cart.Line{ProductID: 1, Name: "lamp", Price: decimal.RequireFromString("25.00"), Quantity: 2})

	e := echo.New()
	c, rec := jsonCtx(t, e, http.MethodPatch, "/cart/1", map[string]any{"quantity": 0})
	c.SetParamNames("id")
	c.SetParamValues("1")
	session.SetCart(c, crt)

	require.NoError(t, h.UpdateItem(c))
	require.Equal(t, http.StatusOK, rec.Code)

	_, ok := crt.Get(1)
	require.False(t, ok, "quantity 0 removes the line")
	require.Empty(t, crt.Lines)
}

func TestUpdateMissingItem(t *testing.T) {
	h := newCartHandler(initTestDB(t))

	e := echo.New()
	c, _ := jsonCtx(t, e, http.MethodPatch, "/cart/9", map[string]any{"quantity": 1})
	c.SetParamNames("id")
	c.SetParamValues("9")
	session.SetCart(c, cart.New())

	err := h.UpdateItem(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, he.Code)
}

func TestClearCart(t *testing.T) {
	db := initTestDB(t)
	h := newCartHandler(db)

	require.NoError(t, db.Create(&models.CartItem{
		UserID: 7, ProductID: 1, Name: "lamp",
		Price: decimal.RequireFromString("25.00"), Quantity: 2,
	}).Error)

	crt := cart.New()
	crt.Add(cart.Line{ProductID: 1, Name: "lamp", Price: decimal.RequireFromString("25.00"), Quantity: 2})

	e := echo.New()
	c, rec := jsonCtx(t, e, http.MethodDelete, "/cart", nil)
	session.SetCart(c, crt)
	c.Set("userID", uint(7))

	require.NoError(t, h.ClearCart(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, crt.Lines)

	var count int64
	require.NoError(t, db.Model(&models.CartItem{}).Where("user_id = ?", 7).Count(&count).Error)
	require.Zero(t, count)
}
