package model

import (
	"time"
)

type ReservationState string

const (
	ReservationStateActive    ReservationState = "active"
	ReservationStateReleased  ReservationState = "released"
	ReservationStateConverted ReservationState = "converted"
)

type MovementType string

const (
	MovementTypeInbound  MovementType = "inbound"
	MovementTypeOutbound MovementType = "outbound"
	MovementTypeAdjust   MovementType = "adjust"
)

// StockItem holds the authoritative on-hand quantity per variant.
// Reserved quantity is not stored here; it is the sum of active,
// unexpired StockReservation rows for the variant.
type StockItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	VariantID uint      `gorm:"not null;uniqueIndex" json:"variant_id"`
	Quantity  int       `gorm:"not null;default:0" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Variant   ProductVariant  `gorm:"foreignKey:VariantID" json:"variant,omitempty"`
	Movements []StockMovement `gorm:"foreignKey:StockItemID;constraint:OnDelete:CASCADE" json:"-"`
}

func (StockItem) TableName() string {
	return "stock_items"
}

// StockMovement is the audit trail of signed stock changes.
// Positive quantity is inbound, negative is outbound.
type StockMovement struct {
	ID           uint         `gorm:"primarykey" json:"id"`
	StockItemID  uint         `gorm:"not null;index" json:"stock_item_id"`
	MovementType MovementType `gorm:"type:varchar(16);not null" json:"movement_type"`
	Quantity     int          `gorm:"not null" json:"quantity"`
	Reason       string       `gorm:"type:varchar(200)" json:"reason"`
	Reference    string       `gorm:"type:varchar(120);index" json:"reference"`
	CreatedAt    time.Time    `json:"created_at"`

	// Relationships
	StockItem StockItem `gorm:"foreignKey:StockItemID" json:"-"`
}

func (StockMovement) TableName() string {
	return "stock_movements"
}

// StockReservation is a time-bounded hold against a variant's stock.
// A nil ExpiresAt never expires; expired rows count as inactive in
// every availability query even before a sweep reclaims them.
type StockReservation struct {
	ID        uint             `gorm:"primarykey" json:"id"`
	VariantID uint             `gorm:"not null;index" json:"variant_id"`
	Quantity  int              `gorm:"not null" json:"quantity"`
	Reference string           `gorm:"type:varchar(120);index" json:"reference"`
	State     ReservationState `gorm:"type:varchar(16);default:'active';index" json:"state"`
	ExpiresAt *time.Time       `gorm:"index" json:"expires_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`

	// Relationships
	Variant ProductVariant `gorm:"foreignKey:VariantID" json:"-"`
}

func (StockReservation) TableName() string {
	return "stock_reservations"
}

// IsActive reports whether the reservation still holds stock at the
// given instant.
func (r *StockReservation) IsActive(now time.Time) bool {
	if r.State != ReservationStateActive {
		return false
	}
	return r.ExpiresAt == nil || r.ExpiresAt.After(now)
}
