package checkout

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mkovalev/webstore/internal/cart"
	"github.com/mkovalev/webstore/internal/models"
	"github.com/mkovalev/webstore/internal/order"
)

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.Order{}, &models.OrderItem{}))
	return db
}

func cartWith(lines ...cart.Line) *cart.Cart {
	c := cart.New()
	c.Lines = lines
	c.Recalculate()
	return c
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	s := &Service{DB: initTestDB(t)}

	_, _, err := s.PlaceOrder(7, cart.New())
	require.ErrorIs(t, err, ErrCartEmpty)

	// A cart holding only filtered-out lines counts as empty too.
	c := cartWith(
		cart.Line{ProductID: 1, Price: decimal.RequireFromString("10.00"), Quantity: 0},
		cart.Line{ProductID: 0, Price: decimal.RequireFromString("5.00"), Quantity: 2},
	)
	_, _, err = s.PlaceOrder(7, c)
	require.ErrorIs(t, err, ErrCartEmpty)

	var count int64
	require.NoError(t, s.DB.Model(&models.Order{}).Count(&count).Error)
	require.Zero(t, count, "a failed precondition must not touch storage")
}

func TestPlaceOrderTotalInvariant(t *testing.T) {
	db := initTestDB(t)
	s := &Service{DB: db}

	p1 := models.Product{ID: 1, Name: "a", Description: "x", Price: decimal.RequireFromString("10.00"), Stock: 10}
	p2 := models.Product{ID: 2, Name: "b", Description: "y", Price: decimal.RequireFromString("5.50"), Stock: 10}
	require.NoError(t, db.Create(&p1).Error)
	require.NoError(t, db.Create(&p2).Error)

	c := cartWith(
		cart.Line{ProductID: 1, Name: "a", Price: decimal.RequireFromString("10.00"), Quantity: 2},
		cart.Line{ProductID: 2, Name: "b", Price: decimal.RequireFromString("5.50"), Quantity: 3},
	)

	ord, items, err := s.PlaceOrder(7, c)
	require.NoError(t, err)
	require.NotZero(t, ord.ID)
	require.Equal(t, string(order.StatusPending), ord.Status)
	require.Len(t, items, 2)
	require.True(t, ord.Total.Equal(decimal.RequireFromString("36.50")), "total %s", ord.Total)

	// A later catalog price change must not reach the placed order.
	require.NoError(t, db.Model(&models.Product{}).
		Where("id = ?", 1).
		Update("price", decimal.RequireFromString("99.99")).Error)

	var reread models.Order
	require.NoError(t, db.First(&reread, ord.ID).Error)
	require.True(t, reread.Total.Equal(decimal.RequireFromString("36.50")))

	var lines []models.OrderItem
	require.NoError(t, db.Where("order_id = ?", ord.ID).Order("product_id ASC").Find(&lines).Error)
	require.True(t, lines[0].Price.Equal(decimal.RequireFromString("10.00")),
		"order line keeps the price snapshot, got %s", lines[0].Price)
}

func TestPlaceOrderAtomicity(t *testing.T) {
	db := initTestDB(t)
	s := &Service{DB: db}

	// Sabotage the line insert: with order_items gone, the second step of
	// the transaction fails and the whole order must roll back.
	require.NoError(t, db.Migrator().DropTable(&models.OrderItem{}))

	c := cartWith(
		cart.Line{ProductID: 1, Name: "a", Price: decimal.RequireFromString("10.00"), Quantity: 2},
		cart.Line{ProductID: 2, Name: "b", Price: decimal.RequireFromString("5.50"), Quantity: 3},
	)

	_, _, err := s.PlaceOrder(7, c)
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	require.Zero(t, count, "no order row may survive a failed checkout")

	// The cart is untouched and ready for a retry.
	require.Len(t, c.Lines, 2)

	require.NoError(t, db.AutoMigrate(&models.OrderItem{}))
	ord, items, err := s.PlaceOrder(7, c)
	require.NoError(t, err)
	require.NotZero(t, ord.ID)
	require.Len(t, items, 2)
}
