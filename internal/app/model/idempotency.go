package model

import (
	"time"
)

// IdempotencyKey records the outcome of a mutating request so retries
// with the same client token replay the stored response instead of
// re-executing side effects. The unique index over (user, path, method,
// key) is the serialization point for concurrent identical requests:
// the first insert wins, everyone else reads.
//
// ResponseCode == 0 marks a row whose handler is still in flight.
type IdempotencyKey struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	Key          string     `gorm:"type:varchar(128);not null;uniqueIndex:idx_idempotency_scope" json:"key"`
	UserID       uint       `gorm:"not null;uniqueIndex:idx_idempotency_scope" json:"user_id"`
	Path         string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_idempotency_scope" json:"path"`
	Method       string     `gorm:"type:varchar(10);not null;uniqueIndex:idx_idempotency_scope" json:"method"`
	RequestHash  string     `gorm:"type:varchar(64)" json:"request_hash,omitempty"`
	ResponseCode int        `gorm:"not null;default:0" json:"response_code"`
	ResponseBody []byte     `gorm:"type:bytea" json:"-"`
	ExpiresAt    time.Time  `gorm:"index" json:"expires_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (IdempotencyKey) TableName() string {
	return "idempotency_keys"
}

// Completed reports whether the original request finished and stored
// its response.
func (k *IdempotencyKey) Completed() bool {
	return k.ResponseCode != 0
}
