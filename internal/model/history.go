package model

import (
	"time"

	"github.com/google/uuid"
)

// History action tags
const (
	ActionCreated             = "created"
	ActionUpdated             = "updated"
	ActionStatusChanged       = "status_changed"
	ActionPriceAccepted       = "price_accepted"
	ActionPriceSuggested      = "price_suggested"
	ActionPriceCounterOffered = "price_counter_offered"
	ActionPriceRejected       = "price_rejected"
)

// ProjectHistory is one immutable ledger entry. Exactly one is appended per
// successful mutation; rows are never updated or deleted.
type ProjectHistory struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProjectID   uint       `gorm:"not null;index" json:"project_id"`
	Status      string     `gorm:"type:varchar(30);not null" json:"status"`
	PriceStatus *string    `gorm:"type:varchar(30)" json:"price_status"`
	Comment     string     `gorm:"type:text" json:"comment"`
	User        string     `gorm:"type:varchar(255)" json:"user"`
	UserID      *uuid.UUID `gorm:"type:uuid" json:"user_id"`
	Action      string     `gorm:"type:varchar(40);not null;index" json:"action"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
}
