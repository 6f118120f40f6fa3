package auth

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/threadline/threadline-backend/pkg/enums"
)

// Actor is the already authenticated caller handed to the engine.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

// Validate ensures the actor carries an identity and a known role.
func (a Actor) Validate() error {
	if a.UserID == uuid.Nil {
		return fmt.Errorf("actor user id required")
	}
	if !a.Role.IsValid() {
		return fmt.Errorf("invalid actor role %q", a.Role)
	}
	return nil
}

// IsStaff reports whether the actor may run fulfilment transitions.
func (a Actor) IsStaff() bool {
	return a.Role.IsStaff()
}

// CanActFor reports whether the actor may operate on a resource owned by userID.
func (a Actor) CanActFor(userID uuid.UUID) bool {
	return a.UserID == userID || a.IsStaff()
}
