package storage

import (
	"errors"

	"github.com/cuemby/replicad/pkg/types"
)

// ErrNotFound is returned when a resource has no persisted role
var ErrNotFound = errors.New("not found")

// Store persists applied role transitions
type Store interface {
	// SaveRole records a transition as the resource's current role and
	// appends it to the resource's history
	SaveRole(record *types.RoleRecord) error

	// GetRole returns the last recorded transition of a resource
	GetRole(resource string) (*types.RoleRecord, error)

	// ListRoles returns the last recorded transition of every resource
	ListRoles() ([]*types.RoleRecord, error)

	// History returns up to limit transitions of a resource, newest first
	History(resource string, limit int) ([]*types.RoleRecord, error)

	// Utility
	Close() error
}
