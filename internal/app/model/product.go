package model

import (
	"time"

	"gorm.io/gorm"
)

type VariantStatus string

const (
	VariantStatusActive   VariantStatus = "active"
	VariantStatusInactive VariantStatus = "inactive"
)

type Product struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Variants []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"variants,omitempty"`
}

func (Product) TableName() string {
	return "products"
}

// ProductVariant is the purchasable SKU under a product. Carts and
// reservations reference variants, never products directly.
type ProductVariant struct {
	ID        uint          `gorm:"primarykey" json:"id"`
	ProductID uint          `gorm:"not null;index" json:"product_id"`
	SKU       string        `gorm:"type:varchar(64);not null;uniqueIndex" json:"sku"`
	Price     float64       `gorm:"not null;default:0" json:"price"`
	Status    VariantStatus `gorm:"type:varchar(16);default:'active';index" json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`

	// Relationships
	Product Product `gorm:"foreignKey:ProductID" json:"-"`
}

func (ProductVariant) TableName() string {
	return "product_variants"
}

func (v *ProductVariant) IsActive() bool {
	return v.Status == VariantStatusActive
}
