package model

import (
	"time"

	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order captures a snapshot of a checkout. Totals and line prices are
// denormalized so later catalog edits do not rewrite history.
type Order struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	UserID    uint           `gorm:"not null;index:idx_orders_user_status" json:"user_id"`
	Number    string         `gorm:"type:varchar(32);uniqueIndex" json:"number"`
	Email     string         `gorm:"type:varchar(255)" json:"email,omitempty"`
	Status    OrderStatus    `gorm:"type:varchar(16);default:'pending';index:idx_orders_user_status" json:"status"`
	Total     float64        `gorm:"not null;default:0" json:"total"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	User  User        `gorm:"foreignKey:UserID" json:"-"`
	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

type OrderItem struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	OrderID      uint      `gorm:"not null;index" json:"order_id"`
	VariantID    uint      `gorm:"not null;index" json:"variant_id"`
	ProductTitle string    `gorm:"type:varchar(200)" json:"product_title"`
	VariantSKU   string    `gorm:"type:varchar(64)" json:"variant_sku"`
	Quantity     int       `gorm:"not null;default:1" json:"quantity"`
	UnitPrice    float64   `gorm:"not null;default:0" json:"unit_price"`
	CreatedAt    time.Time `json:"created_at"`

	// Relationships
	Order   Order          `gorm:"foreignKey:OrderID" json:"-"`
	Variant ProductVariant `gorm:"foreignKey:VariantID" json:"-"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

func (i *OrderItem) LineTotal() float64 {
	return i.UnitPrice * float64(i.Quantity)
}
