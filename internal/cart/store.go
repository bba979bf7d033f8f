package cart

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mkovalev/webstore/internal/catalog"
	"github.com/mkovalev/webstore/internal/models"
	"github.com/mkovalev/webstore/internal/schema"
)

// Store owns the durable tier of a user's cart and the merge between the
// two tiers. The ephemeral tier is the Cart value travelling with the
// request; the durable tier is the cart_items rows keyed
// (user_id, product_id).
type Store struct {
	DB      *gorm.DB
	Catalog *catalog.Reader
	Caps    schema.Capabilities
}

// LoadInto replaces the cart's lines wholesale with a fresh read of the
// user's durable rows, most recently updated first, and marks the cart as
// durable-sourced. An unknown or guest user yields an empty line set, not
// an error.
func (s *Store) LoadInto(c *Cart, userID uint) error {
	c.Lines = []Line{}
	if userID != 0 {
		var rows []models.CartItem
		err := s.DB.
			Where("user_id = ?", userID).
			Order("updated_at DESC").
			Find(&rows).Error
		if err != nil {
			return err
		}
		for _, row := range rows {
			c.Lines = append(c.Lines, Line{
				ProductID: row.ProductID,
				Name:      row.Name,
				Price:     row.Price,
				Quantity:  int(row.Quantity),
				Stock:     row.Stock,
			})
		}
	}
	c.Recalculate()
	c.FromDurable = true
	return nil
}

// Replace rewrites the user's durable rows from the cart's current line
// set inside one transaction: delete everything, insert the kept lines.
// Lines with a non-positive quantity or a zero product id are skipped, not
// inserted. On any failure the transaction rolls back and the previous
// rows survive untouched.
func (s *Store) Replace(userID uint, c *Cart) error {
	if userID == 0 {
		return nil
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		now := time.Now()
		for _, l := range c.Lines {
			if l.Quantity <= 0 || l.ProductID == 0 {
				continue
			}
			row := models.CartItem{
				UserID:    userID,
				ProductID: l.ProductID,
				Name:      l.Name,
				Price:     l.Price,
				Stock:     l.Stock,
				Quantity:  uint(l.Quantity),
				UpdatedAt: now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Clear deletes every durable row of the user. Clearing an empty or guest
// cart succeeds.
func (s *Store) Clear(userID uint) error {
	if userID == 0 {
		return nil
	}
	return s.DB.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
}

// MergeOnLogin folds the guest's pre-login cart into the user's durable
// cart. Called exactly once per login event, before any other cart
// operation of the fresh session; it is not safe to run concurrently for
// the same user.
//
// Durable quantities and guest quantities for the same product add up; the
// sum is clamped to the live stock when the product reports stock > 0
// (stock 0 historically means "unlimited", so no clamp). Snapshots are
// re-taken from the live product record, and guest lines whose product has
// disappeared are dropped without error. The merged set replaces both the
// ephemeral lines and the durable rows.
func (s *Store) MergeOnLogin(userID uint, c *Cart) error {
	if userID == 0 {
		return nil
	}

	var durable []models.CartItem
	err := s.DB.
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&durable).Error
	if err != nil {
		return err
	}

	merged := make([]Line, 0, len(durable)+len(c.Lines))
	index := make(map[uint]int, len(durable))
	for _, row := range durable {
		index[row.ProductID] = len(merged)
		merged = append(merged, Line{
			ProductID: row.ProductID,
			Name:      row.Name,
			Price:     row.Price,
			Quantity:  int(row.Quantity),
			Stock:     row.Stock,
		})
	}

	for _, l := range c.Lines {
		if l.Quantity <= 0 || l.ProductID == 0 {
			continue
		}
		p, err := s.Catalog.Get(l.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				continue
			}
			return err
		}

		quantity := l.Quantity
		if i, ok := index[l.ProductID]; ok {
			quantity += merged[i].Quantity
		}
		if s.Caps.HasStockColumn && p.Stock > 0 && quantity > int(p.Stock) {
			quantity = int(p.Stock)
		}

		line := Line{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  quantity,
			Stock:     p.Stock,
		}
		if i, ok := index[l.ProductID]; ok {
			merged[i] = line
		} else {
			index[l.ProductID] = len(merged)
			merged = append(merged, line)
		}
	}

	c.Lines = merged
	c.Recalculate()

	if err := s.Replace(userID, c); err != nil {
		return err
	}
	c.FromDurable = true
	return nil
}
