package checkout

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mkovalev/webstore/internal/cart"
	"github.com/mkovalev/webstore/internal/models"
	"github.com/mkovalev/webstore/internal/order"
)

var ErrCartEmpty = errors.New("cart is empty")

type Service struct {
	DB *gorm.DB
}

// PlaceOrder converts the cart's resolved line set into one Order plus its
// OrderItems inside a single transaction. The total and the per-line
// prices are the cart's snapshots, not fresh catalog reads, so a later
// price change can never alter a placed order.
//
// On any insert failure the whole transaction rolls back: no Order or
// OrderItem row survives a failed attempt. The cart is not touched here;
// the caller clears it only after a successful return.
func (s *Service) PlaceOrder(userID uint, c *cart.Cart) (*models.Order, []models.OrderItem, error) {
	lines := c.Resolved()
	if len(lines) == 0 {
		return nil, nil, ErrCartEmpty
	}

	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	var (
		ord   models.Order
		items []models.OrderItem
	)
	txErr := s.DB.Transaction(func(tx *gorm.DB) error {
		ord = models.Order{
			UserID:    userID,
			Total:     total,
			Status:    string(order.StatusPending),
			CreatedAt: time.Now(),
		}
		if err := tx.Create(&ord).Error; err != nil {
			return err
		}

		items = make([]models.OrderItem, 0, len(lines))
		for _, l := range lines {
			oi := models.OrderItem{
				OrderID:   ord.ID,
				ProductID: l.ProductID,
				Quantity:  uint(l.Quantity),
				Price:     l.Price,
			}
			if err := tx.Create(&oi).Error; err != nil {
				return err
			}
			items = append(items, oi)
		}
		return nil
	})
	if txErr != nil {
		return nil, nil, txErr
	}
	return &ord, items, nil
}
