package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Notification type tags
const (
	NotifProjectCreated      = "project_created"
	NotifProjectSubmitted    = "project_submitted"
	NotifProjectApproved     = "project_approved"
	NotifPriceAccepted       = "price_accepted"
	NotifPriceSuggested      = "price_suggested"
	NotifPriceCounterOffered = "price_counter_offered"
	NotifPriceRejected       = "price_rejected"
	NotifContractReady       = "contract_ready"
)

// Notification is addressed to a single recipient. Data carries the
// deep-link payload.
type Notification struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Type      string         `gorm:"type:varchar(40);not null;index" json:"type"`
	Title     string         `gorm:"type:varchar(255);not null" json:"title"`
	Message   string         `gorm:"type:text" json:"message"`
	Data      datatypes.JSON `gorm:"type:jsonb" json:"data"`
	IsRead    bool           `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt    *time.Time     `json:"read_at"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}
