package types

import (
	"fmt"
	"strings"
	"time"
)

// Role is the operating mode of a resource. Values match the wire
// encoding of the "role" field in SET_ROLE requests.
type Role uint8

const (
	// RoleUndefined marks a resource whose role was never observed.
	RoleUndefined Role = 0
	RoleInit      Role = 1
	RolePrimary   Role = 2
	RoleSecondary Role = 3
)

func (r Role) String() string {
	switch r {
	case RoleInit:
		return "init"
	case RolePrimary:
		return "primary"
	case RoleSecondary:
		return "secondary"
	default:
		return "undefined"
	}
}

// Requestable reports whether a client may ask for this role.
func (r Role) Requestable() bool {
	return r == RoleInit || r == RolePrimary || r == RoleSecondary
}

// ParseRole converts a role name into a Role
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(s) {
	case "init":
		return RoleInit, nil
	case "primary":
		return RolePrimary, nil
	case "secondary":
		return RoleSecondary, nil
	}
	return RoleUndefined, fmt.Errorf("unknown role %q", s)
}

// ReplicationMode defines how writes are acknowledged
type ReplicationMode uint8

const (
	ReplicationUnknown ReplicationMode = iota
	ReplicationFullSync
	ReplicationMemSync
	ReplicationAsync
)

func (m ReplicationMode) String() string {
	switch m {
	case ReplicationFullSync:
		return "fullsync"
	case ReplicationMemSync:
		return "memsync"
	case ReplicationAsync:
		return "async"
	default:
		return "unknown"
	}
}

// ParseReplicationMode converts a configuration value into a ReplicationMode
func ParseReplicationMode(s string) (ReplicationMode, error) {
	switch strings.ToLower(s) {
	case "fullsync":
		return ReplicationFullSync, nil
	case "memsync":
		return ReplicationMemSync, nil
	case "async":
		return ReplicationAsync, nil
	}
	return ReplicationUnknown, fmt.Errorf("unknown replication mode %q", s)
}

// ResourceConfig is the static configuration of one replicated resource.
// It is everything a worker process needs to know to serve the resource.
type ResourceConfig struct {
	Name          string
	Provider      string
	LocalPath     string
	RemoteAddress string
	SourceAddress string
	Replication   ReplicationMode
	ExtentSize    uint32
	KeepDirty     uint32
	HookPath      string // Optional script run on role changes
}

// Command is an outer control protocol command code
type Command uint8

const (
	CommandSetRole Command = 1
	CommandStatus  Command = 2
)

func (c Command) String() string {
	switch c {
	case CommandSetRole:
		return "set_role"
	case CommandStatus:
		return "status"
	default:
		return fmt.Sprintf("command(%d)", uint8(c))
	}
}

// WorkerCommand is a command code of the private daemon-to-worker protocol
type WorkerCommand uint8

const (
	WorkerCommandStatus WorkerCommand = 1
)

// Replication status strings reported by workers
const (
	StatusComplete = "complete"
	StatusDegraded = "degraded"
)

// StatusReport is a resource's replication status as seen by its worker
type StatusReport struct {
	Status     string
	Dirty      uint64
	ExtentSize uint32
	KeepDirty  uint32
}

// RoleRecord is one applied role transition
type RoleRecord struct {
	Resource  string    `json:"resource"`
	From      Role      `json:"from"`
	To        Role      `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
}
