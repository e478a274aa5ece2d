package model

import (
	"time"
)

type CartStatus string

const (
	CartStatusActive     CartStatus = "active"
	CartStatusCheckedOut CartStatus = "checked_out"
	CartStatusAbandoned  CartStatus = "abandoned"
)

// Cart belongs to either an authenticated user or a guest session,
// never both. Exactly one active cart exists per owner.
type Cart struct {
	ID        uint       `gorm:"primarykey" json:"id"`
	UserID    *uint      `gorm:"index:idx_carts_user_status" json:"user_id,omitempty"`
	SessionID *string    `gorm:"type:varchar(128);index:idx_carts_session_status" json:"session_id,omitempty"`
	Status    CartStatus `gorm:"type:varchar(16);default:'active';index:idx_carts_user_status;index:idx_carts_session_status" json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	// Relationships
	User  *User      `gorm:"foreignKey:UserID" json:"-"`
	Items []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

func (Cart) TableName() string {
	return "carts"
}

type CartItem struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	CartID        uint      `gorm:"not null;uniqueIndex:idx_cart_items_cart_variant" json:"cart_id"`
	VariantID     uint      `gorm:"not null;uniqueIndex:idx_cart_items_cart_variant" json:"variant_id"`
	Quantity      int       `gorm:"not null;default:1" json:"quantity"`
	UnitPrice     float64   `gorm:"not null;default:0" json:"unit_price"`
	ReservationID *uint     `gorm:"index" json:"reservation_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Relationships
	Cart        Cart              `gorm:"foreignKey:CartID" json:"-"`
	Variant     ProductVariant    `gorm:"foreignKey:VariantID" json:"variant,omitempty"`
	Reservation *StockReservation `gorm:"foreignKey:ReservationID;constraint:OnDelete:SET NULL" json:"-"`
}

func (CartItem) TableName() string {
	return "cart_items"
}

// LineTotal is the quantity-extended price for this line.
func (i *CartItem) LineTotal() float64 {
	return i.UnitPrice * float64(i.Quantity)
}
