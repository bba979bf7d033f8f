package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"     json:"id"`
	Name        string          `gorm:"not null"                     json:"name"`
	Description string          `gorm:"not null"                     json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null"  json:"price"`
	Stock       uint            `json:"stock"`
}

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"unique;not null"          json:"username"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Role         string `gorm:"not null"                 json:"role"`
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"          json:"id"`
	Token     string    `gorm:"unique;not null"     json:"token"`
	UserID    uint      `gorm:"index;not null"      json:"user_id"`
	ExpiresAt time.Time `gorm:"not null"            json:"expires_at"`
	Revoked   bool      `gorm:"default:false"       json:"revoked"`
}

// CartItem is a durable cart row. Name, Price and Stock are snapshots taken
// from the product at add time; UpdatedAt orders rows when the cart is
// loaded back into a session.
type CartItem struct {
	ID        uint            `gorm:"primaryKey"                                  json:"id"`
	UserID    uint            `gorm:"uniqueIndex:idx_cart_user_product;not null"  json:"user_id"`
	ProductID uint            `gorm:"uniqueIndex:idx_cart_user_product;not null"  json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2)"                          json:"price"`
	Stock     uint            `json:"stock"`
	Quantity  uint            `gorm:"default:1;check:quantity>0"                  json:"quantity"`
	UpdatedAt time.Time       `gorm:"index"                                       json:"updated_at"`
}

// Total is fixed at checkout and never recomputed from the lines.
type Order struct {
	ID        uint            `gorm:"primaryKey"                   json:"id"`
	UserID    uint            `gorm:"index;not null"               json:"user_id"`
	Total     decimal.Decimal `gorm:"type:numeric(12,2);not null"  json:"total"`
	Status    string          `gorm:"not null;default:pending"     json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

type OrderItem struct {
	ID        uint            `gorm:"primaryKey"          json:"id"`
	OrderID   uint            `gorm:"index;not null"      json:"order_id"`
	ProductID uint            `gorm:"not null"            json:"product_id"`
	Quantity  uint            `gorm:"not null"            json:"quantity"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2)"  json:"price"`
}

// SchemaInfo records the migration version of the deployed schema. The
// capability probe reads it once at startup, see internal/schema.
type SchemaInfo struct {
	ID      uint `gorm:"primaryKey"  json:"id"`
	Version int  `gorm:"not null"    json:"version"`
}
