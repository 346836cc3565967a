// Package events carries post-commit project transitions to the handlers
// that produce notifications and contracts.
package events

import (
	"context"
	"time"

	"installpro/internal/model"

	"github.com/google/uuid"
)

const (
	ProjectCreated = "project.created"
	ProjectUpdated = "project.updated"
)

// ProjectEvent is published once per committed project mutation. ID equals the
// history entry written by that mutation.
type ProjectEvent struct {
	ID        uuid.UUID   `json:"id"`
	Type      string      `json:"type"`
	ProjectID uint        `json:"project_id"`
	Actor     model.Actor `json:"actor"`

	PreviousStatus      string `json:"previous_status,omitempty"`
	Status              string `json:"status"`
	PreviousPriceStatus string `json:"previous_price_status,omitempty"`
	PriceStatus         string `json:"price_status,omitempty"`
	OriginalPrice       string `json:"original_price,omitempty"` // decimal string, empty when unset
	Price               string `json:"price,omitempty"`
	Comment             string `json:"comment,omitempty"`

	IsBeingApproved       bool `json:"is_being_approved"`
	IsPriceStatusChanging bool `json:"is_price_status_changing"`
	IsPriceBeingAccepted  bool `json:"is_price_being_accepted"`

	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers events after the originating transaction committed.
// Implementations never report handler failures back to the caller.
type Publisher interface {
	Publish(ctx context.Context, evt ProjectEvent) error
}

// Handler reacts to project events. Name must be stable; it routes queued
// tasks to the handler.
type Handler interface {
	Name() string
	Handle(ctx context.Context, evt ProjectEvent) error
}
