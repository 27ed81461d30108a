package worker

import (
	"sync/atomic"

	"github.com/cuemby/replicad/pkg/types"
)

// StatusProvider supplies the worker's live view of its resource
type StatusProvider interface {
	Status() types.StatusReport
}

// State is the in-memory replication state of a worker. The data path
// updates it concurrently with status queries.
type State struct {
	extentSize uint32
	keepDirty  uint32

	dirty     atomic.Uint64
	connected atomic.Bool
}

// NewState creates the state for a resource configuration
func NewState(res types.ResourceConfig) *State {
	return &State{
		extentSize: res.ExtentSize,
		keepDirty:  res.KeepDirty,
	}
}

// MarkDirty records n newly dirtied extents
func (s *State) MarkDirty(n uint64) {
	s.dirty.Add(n)
}

// MarkClean records n extents synchronized to the secondary
func (s *State) MarkClean(n uint64) {
	for {
		cur := s.dirty.Load()
		next := uint64(0)
		if n < cur {
			next = cur - n
		}
		if s.dirty.CompareAndSwap(cur, next) {
			return
		}
	}
}

// SetConnected records whether the secondary is reachable
func (s *State) SetConnected(ok bool) {
	s.connected.Store(ok)
}

// Status implements StatusProvider
func (s *State) Status() types.StatusReport {
	status := types.StatusDegraded
	if s.connected.Load() {
		status = types.StatusComplete
	}
	return types.StatusReport{
		Status:     status,
		Dirty:      s.dirty.Load(),
		ExtentSize: s.extentSize,
		KeepDirty:  s.keepDirty,
	}
}
