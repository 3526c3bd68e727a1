package orchestrator

import (
	"context"
	"time"
)

// FlowState is the lifecycle state of an ingest flow. Provider strings are
// mapped to these constants at the control-plane boundary; the sequences
// below never compare raw provider values.
type FlowState string

const (
	FlowStandby  FlowState = "standby"
	FlowStarting FlowState = "starting"
	FlowActive   FlowState = "active"
	FlowStopping FlowState = "stopping"
	FlowError    FlowState = "error"
)

// ChannelState is the lifecycle state of a processing channel.
type ChannelState string

const (
	ChannelIdle     ChannelState = "idle"
	ChannelStarting ChannelState = "starting"
	ChannelRunning  ChannelState = "running"
	ChannelStopping ChannelState = "stopping"
	ChannelError    ChannelState = "error"
)

// CapacityPool is the scaling group of inspection appliances fronting the
// media path.
type CapacityPool struct {
	Name            string
	DesiredCapacity int32
	InService       int
	// TargetGroupARN is the load-balancer target group the appliances
	// register with. Empty when the pool has no target group attached.
	TargetGroupARN string
}

// IngestFlow is a source-facing stream-ingestion endpoint.
type IngestFlow struct {
	Name  string
	ARN   string
	State FlowState
}

// ProcessingChannel is a transcoding unit consuming an ingest flow.
type ProcessingChannel struct {
	Name  string
	ID    string
	State ChannelState
}

// TargetHealth is the observed health of members registered behind the
// pool's target group.
type TargetHealth struct {
	Registered int
	Healthy    int
}

// Inventory is the set of resources a discovery pass matched. Empty
// collections are valid; the sequences no-op over them.
type Inventory struct {
	Pool     *CapacityPool
	Flows    []IngestFlow
	Channels []ProcessingChannel
}

// Phase names the step a lifecycle sequence is in. Purely observational;
// it drives logging and the status surface, nothing gates on it.
type Phase string

const (
	PhaseIdle                   Phase = "Idle"
	PhaseAdjustingCapacity      Phase = "AdjustingCapacity"
	PhaseWaitingCapacityHealthy Phase = "WaitingCapacityHealthy"
	PhaseStartingFlows          Phase = "StartingFlows"
	PhaseWaitingFlowsActive     Phase = "WaitingFlowsActive"
	PhaseStartingChannels       Phase = "StartingChannels"
	PhaseWaitingChannelsRunning Phase = "WaitingChannelsRunning"
	PhaseStoppingChannels       Phase = "StoppingChannels"
	PhaseWaitingChannelsIdle    Phase = "WaitingChannelsIdle"
	PhaseStoppingFlows          Phase = "StoppingFlows"
	PhaseWaitingFlowsStandby    Phase = "WaitingFlowsStandby"
	PhaseDrainingCapacity       Phase = "DrainingCapacity"
	PhaseWaitingCapacityDrained Phase = "WaitingCapacityDrained"
	PhaseComplete               Phase = "Complete"
)

// PoolStatus is the capacity-pool slice of a StatusReport.
type PoolStatus struct {
	Name       string `json:"name"`
	Desired    int32  `json:"desired"`
	InService  int    `json:"inService"`
	Registered int    `json:"registered"`
	Healthy    int    `json:"healthy"`
}

// FlowStatus is the per-flow slice of a StatusReport. Error carries a
// per-entity transition failure; it does not imply siblings failed.
type FlowStatus struct {
	Name  string    `json:"name"`
	ARN   string    `json:"arn"`
	State FlowState `json:"state"`
	Error string    `json:"error,omitempty"`
}

// ChannelStatus is the per-channel slice of a StatusReport.
type ChannelStatus struct {
	Name  string       `json:"name"`
	ID    string       `json:"id"`
	State ChannelState `json:"state"`
	Error string       `json:"error,omitempty"`
}

// StatusReport is a point-in-time snapshot of the pipeline. No aggregate
// healthy flag is computed; callers interpret the snapshot.
type StatusReport struct {
	Pool       *PoolStatus     `json:"pool,omitempty"`
	Flows      []FlowStatus    `json:"flows"`
	Channels   []ChannelStatus `json:"channels"`
	Warnings   []string        `json:"warnings,omitempty"`
	ObservedAt time.Time       `json:"observedAt"`
}

// ControlPlane is the cloud API surface the orchestrator drives. The AWS
// implementation lives in internal/controlplane; tests use a fake.
type ControlPlane interface {
	DiscoverPool(ctx context.Context, nameHint string) (*CapacityPool, error)
	DiscoverFlows(ctx context.Context, nameHint string) ([]IngestFlow, error)
	DiscoverChannels(ctx context.Context, nameHint string) ([]ProcessingChannel, error)

	SetPoolCapacity(ctx context.Context, poolName string, desired int32) error
	DescribePool(ctx context.Context, poolName string) (*CapacityPool, error)
	DescribeTargetHealth(ctx context.Context, targetGroupARN string) (*TargetHealth, error)

	StartFlow(ctx context.Context, flowARN string) error
	StopFlow(ctx context.Context, flowARN string) error
	DescribeFlow(ctx context.Context, flowARN string) (FlowState, error)

	StartChannel(ctx context.Context, channelID string) error
	StopChannel(ctx context.Context, channelID string) error
	DescribeChannel(ctx context.Context, channelID string) (ChannelState, error)
}
