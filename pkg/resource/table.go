package resource

import (
	"fmt"

	"github.com/cuemby/replicad/pkg/supervisor"
	"github.com/cuemby/replicad/pkg/types"
)

// Resource is one entry of the daemon's resource table: static
// configuration plus the mutable role and worker handle. Role and
// Worker are only changed by the role state machine in pkg/manager.
type Resource struct {
	types.ResourceConfig

	Role   types.Role
	Worker *supervisor.Handle
}

// Table is the ordered set of resources served by one daemon. It is
// built once at startup and never grows or shrinks afterwards.
type Table struct {
	resources []*Resource
	byName    map[string]*Resource
}

// NewTable builds a table from configurations, preserving their order.
// Every resource starts in RoleInit.
func NewTable(configs []types.ResourceConfig) (*Table, error) {
	t := &Table{
		resources: make([]*Resource, 0, len(configs)),
		byName:    make(map[string]*Resource, len(configs)),
	}
	for _, cfg := range configs {
		if cfg.Name == "" {
			return nil, fmt.Errorf("resource with empty name")
		}
		if _, exists := t.byName[cfg.Name]; exists {
			return nil, fmt.Errorf("duplicate resource name %q", cfg.Name)
		}
		res := &Resource{ResourceConfig: cfg, Role: types.RoleInit}
		t.resources = append(t.resources, res)
		t.byName[cfg.Name] = res
	}
	return t, nil
}

// Find returns the resource with exactly this name, or nil
func (t *Table) Find(name string) *Resource {
	return t.byName[name]
}

// All returns the resources in configuration order. The slice is a
// copy; the resources are shared.
func (t *Table) All() []*Resource {
	out := make([]*Resource, len(t.resources))
	copy(out, t.resources)
	return out
}

// Len returns the number of resources
func (t *Table) Len() int {
	return len(t.resources)
}
