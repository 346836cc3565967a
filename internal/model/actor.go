package model

import "github.com/google/uuid"

// Actor is the authenticated identity performing a request.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role string    `json:"role"`
}

// IsZero reports whether no identity was resolved.
func (a Actor) IsZero() bool {
	return a.ID == uuid.Nil && a.Name == "" && a.Role == ""
}

func (a Actor) IsElevated() bool {
	return a.Role == RoleAdmin || a.Role == RoleSuperAdmin
}
