// Package permissions gates warehouse access. Grants are per actor and
// warehouse with independent view and post capabilities; identity itself is
// established upstream.
package permissions

import (
	"errors"
	"time"
)

// Capability names a warehouse-level right.
type Capability string

const (
	CapabilityView Capability = "VIEW"
	CapabilityPost Capability = "POST"
)

// Valid reports whether the capability is known.
func (c Capability) Valid() bool {
	return c == CapabilityView || c == CapabilityPost
}

// Grant assigns a capability on one warehouse to one actor.
type Grant struct {
	ID          int64      `json:"id"`
	ActorID     int64      `json:"actor_id"`
	WarehouseID int64      `json:"warehouse_id"`
	Capability  Capability `json:"capability"`
	GrantedBy   int64      `json:"granted_by"`
	GrantedAt   time.Time  `json:"granted_at"`
}

var (
	// ErrDenied indicates the actor lacks the capability on the warehouse.
	ErrDenied = errors.New("permissions: access denied")
	// ErrDuplicate indicates the grant already exists.
	ErrDuplicate = errors.New("permissions: grant already exists")
	// ErrNotFound indicates no matching grant.
	ErrNotFound = errors.New("permissions: grant not found")
)
