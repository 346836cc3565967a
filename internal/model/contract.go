package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ContractStatus enum constants
const (
	ContractPendingSignature = "pending_signature"
	ContractSigned           = "signed"
	ContractExpired          = "expired"
)

// Contract is created when the installer price is accepted on an assigned
// project. SourceHistoryID is the ledger entry of that transition and is
// unique, so a transition yields at most one contract.
type Contract struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ContractNumber  string          `gorm:"type:varchar(40);uniqueIndex;not null" json:"contract_number"`
	ProjectID       uint            `gorm:"not null;index" json:"project_id"`
	Title           string          `gorm:"type:varchar(255);not null" json:"title"`
	Description     string          `gorm:"type:text" json:"description"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	ClientID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"client_id"`
	InstallerID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"installer_id"`
	Status          string          `gorm:"type:varchar(30);not null;default:'pending_signature';index" json:"status"`
	ValidFrom       time.Time       `gorm:"not null" json:"valid_from"`
	ValidUntil      time.Time       `gorm:"not null;index" json:"valid_until"`
	SourceHistoryID uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null" json:"source_history_id"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
