package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProjectStatus enum constants
const (
	StatusDraft           = "draft"
	StatusPendingApproval = "pending_approval"
	StatusPending         = "pending"
	StatusApproved        = "approved"
	StatusAssigned        = "assigned"
	StatusContractSent    = "contract_sent"
	StatusInProgress      = "in_progress"
	StatusCompleted       = "completed"
	StatusRejected        = "rejected"
)

// ProjectStatuses lists every status in lifecycle order.
var ProjectStatuses = []string{
	StatusDraft, StatusPendingApproval, StatusPending, StatusApproved, StatusAssigned,
	StatusContractSent, StatusInProgress, StatusCompleted, StatusRejected,
}

// InstallerPriceStatus enum constants
const (
	PriceStatusPending        = "pending"
	PriceStatusSuggested      = "suggested"
	PriceStatusCounterOffered = "counter_offered"
	PriceStatusAccepted       = "accepted"
	PriceStatusRejected       = "rejected"
)

var PriceStatuses = []string{
	PriceStatusPending, PriceStatusSuggested, PriceStatusCounterOffered,
	PriceStatusAccepted, PriceStatusRejected,
}

func IsValidStatus(s string) bool {
	for _, v := range ProjectStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func IsValidPriceStatus(s string) bool {
	for _, v := range PriceStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Project is an installation job from quote to completion.
// InvoiceNumber is never reused, soft-deleted rows included.
type Project struct {
	ID            uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	InvoiceNumber string `gorm:"type:varchar(30);uniqueIndex;not null" json:"invoice_number"`
	Name          string `gorm:"type:varchar(255);not null" json:"name"`
	ClientName    string `gorm:"type:varchar(255)" json:"client_name"`
	ClientEmail   string `gorm:"type:varchar(255)" json:"client_email"`
	ClientPhone   string `gorm:"type:varchar(50)" json:"client_phone"`
	Address       string `gorm:"type:text" json:"address"`
	Notes         string `gorm:"type:text" json:"notes"`
	Status        string `gorm:"type:varchar(30);not null;default:'pending_approval';index" json:"status"`

	CreatedByID   *uuid.UUID `gorm:"type:uuid;index" json:"created_by_id"`
	CreatedByName string     `gorm:"type:varchar(255)" json:"created_by_name"` // legacy ownership fallback

	AssignedInstallerID   *uuid.UUID `gorm:"type:uuid;index" json:"assigned_installer_id"`
	AssignedInstallerName string     `gorm:"type:varchar(255)" json:"assigned_installer_name"`

	TotalCost              decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0" json:"total_cost"`
	InstallerPriceProposal decimal.NullDecimal `gorm:"type:decimal(18,4)" json:"installer_price_proposal"`
	InstallerPriceStatus   *string             `gorm:"type:varchar(30)" json:"installer_price_status"`

	ScheduledInstallation *time.Time `json:"scheduled_installation"`

	LastModified   time.Time  `json:"last_modified"`
	LastModifiedBy string     `gorm:"type:varchar(255)" json:"last_modified_by"`
	ApprovedAt     *time.Time `json:"approved_at"`
	ApprovedBy     string     `gorm:"type:varchar(255)" json:"approved_by"`

	Version int `gorm:"not null;default:1" json:"version"`

	Items   []ProjectItem    `gorm:"foreignKey:ProjectID" json:"items"`
	History []ProjectHistory `gorm:"foreignKey:ProjectID" json:"history"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// PriceStatus returns the negotiation sub-state, empty when unset.
func (p *Project) PriceStatus() string {
	if p.InstallerPriceStatus == nil {
		return ""
	}
	return *p.InstallerPriceStatus
}

// IsOwnedBy matches the creator by id, falling back to the display name for
// rows created before CreatedByID existed.
func (p *Project) IsOwnedBy(a Actor) bool {
	if p.CreatedByID != nil {
		return *p.CreatedByID == a.ID
	}
	return p.CreatedByName != "" && p.CreatedByName == a.Name
}

// IsAssignedTo reports whether a is the project's installer.
func (p *Project) IsAssignedTo(a Actor) bool {
	if p.AssignedInstallerID != nil {
		return *p.AssignedInstallerID == a.ID
	}
	return p.AssignedInstallerName != "" && p.AssignedInstallerName == a.Name
}

// ProjectItem is a material line of a project.
type ProjectItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProjectID   uint            `gorm:"not null;index" json:"project_id"`
	ProductID   *uuid.UUID      `gorm:"type:uuid;index" json:"product_id"`
	ProductName string          `gorm:"type:varchar(255)" json:"product_name"`
	Quantity    int             `gorm:"type:int;not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_price"`
}

// Subtotal is quantity times unit price.
func (i ProjectItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
