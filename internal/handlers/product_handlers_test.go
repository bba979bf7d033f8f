package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mkovalev/webstore/internal/catalog"
	"github.com/mkovalev/webstore/internal/models"
	"github.com/mkovalev/webstore/internal/mykafka"
)

func newProductHandler(db *gorm.DB) *ProductHandler {
	return &ProductHandler{DB: db, Catalog: &catalog.Reader{DB: db}, Events: mykafka.Noop{}}
}

func TestGetProductsPagination(t *testing.T) {
	db := initTestDB(t)
	h := newProductHandler(db)

	for i := 0; i < 12; i++ {
		p := models.Product{Name: "p", Description: "d", Price: decimal.RequireFromString("1.00")}
		require.NoError(t, db.Create(&p).Error)
	}

	e := echo.New()
	c, rec := jsonCtx(t, e, http.MethodGet, "/products?page=2&size=10", nil)

	require.NoError(t, h.GetProducts(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []models.Product `json:"data"`
		Meta struct {
			Page       int   `json:"page"`
			Total      int64 `json:"total"`
			TotalPages int64 `json:"total_pages"`
			HasPrev    bool  `json:"has_prev"`
			HasNext    bool  `json:"has_next"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	require.EqualValues(t, 12, resp.Meta.Total)
	require.EqualValues(t, 2, resp.Meta.TotalPages)
	require.True(t, resp.Meta.HasPrev)
	require.False(t, resp.Meta.HasNext)
}

func TestCreateProduct(t *testing.T) {
	db := initTestDB(t)
	h := newProductHandler(db)

	e := echo.New()
	c, rec := jsonCtx(t, e, http.MethodPost, "/admin/products", map[string]any{
		"name":        "lamp",
		"description": "desk lamp",
		"price":       "25.00",
		"stock":       5,
	})

	require.NoError(t, h.CreateProduct(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var p models.Product
	require.NoError(t, db.First(&p).Error)
	require.Equal(t, "lamp", p.Name)
	require.True(t, p.Price.Equal(decimal.RequireFromString("25.00")))
}

func TestCreateProductRejectsEmptyName(t *testing.T) {
	h := newProductHandler(initTestDB(t))

	e := echo.New()
	c, _ := jsonCtx(t, e, http.MethodPost, "/admin/products", map[string]any{"price": "1.00"})

	err := h.CreateProduct(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, he.Code)
}

func TestPatchProductOmittedStockUnchanged(t *testing.T) {
	db := initTestDB(t)
	h := newProductHandler(db)

	p := models.Product{Name: "lamp", Description: "d", Price: decimal.RequireFromString("25.00"), Stock: 5}
	require.NoError(t, db.Create(&p).Error)

	e := echo.New()
	c, rec := jsonCtx(t, e, http.MethodPatch, "/admin/products/1", map[string]any{"name": "desk lamp"})
	c.SetParamNames("id")
	c.SetParamValues("1")

	require.NoError(t, h.PatchProduct(c))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, db.First(&p, p.ID).Error)
	require.Equal(t, "desk lamp", p.Name)
	require.Equal(t, uint(5), p.Stock, "a patch without stock leaves it alone")

	// An explicit zero still goes through.
	c, rec = jsonCtx(t, e, http.MethodPatch, "/admin/products/1", map[string]any{"stock": 0})
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.PatchProduct(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, db.First(&p, p.ID).Error)
	require.Equal(t, uint(0), p.Stock)
}

func TestPatchProductNotFound(t *testing.T) {
	h := newProductHandler(initTestDB(t))

	e := echo.New()
	c, _ := jsonCtx(t, e, http.MethodPatch, "/admin/products/9", map[string]any{"name": "x"})
	c.SetParamNames("id")
	c.SetParamValues("9")

	err := h.PatchProduct(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, he.Code)
}
