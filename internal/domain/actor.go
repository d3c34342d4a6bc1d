package domain

import "github.com/google/uuid"

// ActorContext identifies who is performing an operation and in which
// workspace. It is resolved by the auth layer and passed explicitly into
// every workspace-scoped service call.
type ActorContext struct {
	UserID      uuid.UUID
	Email       string
	WorkspaceID int32
	Role        Role
}
