package orchestrator

import "fmt"

// DiscoveryError wraps a control-plane failure during resource lookup.
// Always fatal: without a consistent inventory no sequence can run.
type DiscoveryError struct {
	Kind string // "capacity pool", "ingest flows", "processing channels"
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovering %s: %v", e.Kind, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// CapacityAdjustError wraps a failed set-desired-capacity call.
type CapacityAdjustError struct {
	Pool string
	Err  error
}

func (e *CapacityAdjustError) Error() string {
	return fmt.Sprintf("adjusting capacity of pool %s: %v", e.Pool, e.Err)
}

func (e *CapacityAdjustError) Unwrap() error { return e.Err }

// FlowTransitionError reports that one or more flow start/stop calls
// failed. Siblings in the same stage were still attempted; the per-entity
// failures are in the accompanying StatusReport.
type FlowTransitionError struct {
	Op     string // "start" or "stop"
	Failed int
	Err    error
}

func (e *FlowTransitionError) Error() string {
	return fmt.Sprintf("%s failed for %d flow(s): %v", e.Op, e.Failed, e.Err)
}

func (e *FlowTransitionError) Unwrap() error { return e.Err }

// ChannelTransitionError reports that one or more channel start/stop calls
// failed.
type ChannelTransitionError struct {
	Op     string
	Failed int
	Err    error
}

func (e *ChannelTransitionError) Error() string {
	return fmt.Sprintf("%s failed for %d channel(s): %v", e.Op, e.Failed, e.Err)
}

func (e *ChannelTransitionError) Unwrap() error { return e.Err }
