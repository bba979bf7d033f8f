package catalog

import (
	"errors"

	"gorm.io/gorm"

	"github.com/mkovalev/webstore/internal/models"
)

var ErrProductNotFound = errors.New("product not found")

// Reader is the read-only catalog lookup used by the cart and checkout
// paths. Catalog writes belong to the admin back office.
type Reader struct {
	DB *gorm.DB
}

func (r *Reader) Get(id uint) (*models.Product, error) {
	var p models.Product
	if err := r.DB.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *Reader) List(offset, limit int) ([]models.Product, int64, error) {
	var total int64
	if err := r.DB.Model(&models.Product{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []models.Product
	if err := r.DB.Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
