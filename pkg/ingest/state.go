package ingest

import "sync/atomic"

// CycleState models the per-chain ingestion state machine from spec §4.H:
// Idle -> Probing -> Streaming -> Persisting -> Publishing -> Idle, with
// Stopped reachable from any state via cancellation. No transition on a
// failure path mutates shared state except falling back to Idle, apart from
// the head a successful probe has already published to the progress map.
type CycleState int32

const (
	StateIdle CycleState = iota
	StateProbing
	StateStreaming
	StatePersisting
	StatePublishing
	StateStopped
)

func (s CycleState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProbing:
		return "probing"
	case StateStreaming:
		return "streaming"
	case StatePersisting:
		return "persisting"
	case StatePublishing:
		return "publishing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// stateTracker holds one atomic state cell per chain, built once at engine
// construction since the chain set is static for the process lifetime.
type stateTracker struct {
	cells map[uint32]*atomic.Int32
}

func newStateTracker(chainIDs []uint32) *stateTracker {
	t := &stateTracker{cells: make(map[uint32]*atomic.Int32, len(chainIDs))}
	for _, id := range chainIDs {
		cell := &atomic.Int32{}
		cell.Store(int32(StateIdle))
		t.cells[id] = cell
	}
	return t
}

func (t *stateTracker) set(chainID uint32, s CycleState) {
	if cell, ok := t.cells[chainID]; ok {
		cell.Store(int32(s))
	}
}

func (t *stateTracker) get(chainID uint32) CycleState {
	if cell, ok := t.cells[chainID]; ok {
		return CycleState(cell.Load())
	}
	return StateStopped
}
