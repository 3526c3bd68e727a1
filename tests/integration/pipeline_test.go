package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/streamctl/internal/orchestrator"
)

// fakeClock advances on every sleep so bounded waits run instantly.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// slowCP simulates a control plane whose resources take a few polls to
// converge after a transition is issued, like the real one does.
type slowCP struct {
	pool        orchestrator.CapacityPool
	flow        orchestrator.IngestFlow
	channel     orchestrator.ProcessingChannel
	settleAfter int

	poolTicks    int
	flowTicks    int
	channelTicks int
	calls        []string
}

func (s *slowCP) DiscoverPool(ctx context.Context, hint string) (*orchestrator.CapacityPool, error) {
	p := s.pool
	return &p, nil
}

func (s *slowCP) DiscoverFlows(ctx context.Context, hint string) ([]orchestrator.IngestFlow, error) {
	return []orchestrator.IngestFlow{s.flow}, nil
}

func (s *slowCP) DiscoverChannels(ctx context.Context, hint string) ([]orchestrator.ProcessingChannel, error) {
	return []orchestrator.ProcessingChannel{s.channel}, nil
}

func (s *slowCP) SetPoolCapacity(ctx context.Context, name string, desired int32) error {
	s.calls = append(s.calls, "set-capacity")
	s.pool.DesiredCapacity = desired
	s.poolTicks = 0
	return nil
}

func (s *slowCP) DescribePool(ctx context.Context, name string) (*orchestrator.CapacityPool, error) {
	s.poolTicks++
	if s.poolTicks >= s.settleAfter {
		s.pool.InService = int(s.pool.DesiredCapacity)
	}
	p := s.pool
	return &p, nil
}

func (s *slowCP) DescribeTargetHealth(ctx context.Context, arn string) (*orchestrator.TargetHealth, error) {
	return &orchestrator.TargetHealth{Registered: s.pool.InService, Healthy: s.pool.InService}, nil
}

func (s *slowCP) StartFlow(ctx context.Context, arn string) error {
	s.calls = append(s.calls, "start-flow")
	s.flow.State = orchestrator.FlowStarting
	s.flowTicks = 0
	return nil
}

func (s *slowCP) StopFlow(ctx context.Context, arn string) error {
	s.calls = append(s.calls, "stop-flow")
	s.flow.State = orchestrator.FlowStopping
	s.flowTicks = 0
	return nil
}

func (s *slowCP) DescribeFlow(ctx context.Context, arn string) (orchestrator.FlowState, error) {
	s.flowTicks++
	if s.flowTicks >= s.settleAfter {
		switch s.flow.State {
		case orchestrator.FlowStarting:
			s.flow.State = orchestrator.FlowActive
		case orchestrator.FlowStopping:
			s.flow.State = orchestrator.FlowStandby
		}
	}
	return s.flow.State, nil
}

func (s *slowCP) StartChannel(ctx context.Context, id string) error {
	s.calls = append(s.calls, "start-channel")
	s.channel.State = orchestrator.ChannelStarting
	s.channelTicks = 0
	return nil
}

func (s *slowCP) StopChannel(ctx context.Context, id string) error {
	s.calls = append(s.calls, "stop-channel")
	s.channel.State = orchestrator.ChannelStopping
	s.channelTicks = 0
	return nil
}

func (s *slowCP) DescribeChannel(ctx context.Context, id string) (orchestrator.ChannelState, error) {
	s.channelTicks++
	if s.channelTicks >= s.settleAfter {
		switch s.channel.State {
		case orchestrator.ChannelStarting:
			s.channel.State = orchestrator.ChannelRunning
		case orchestrator.ChannelStopping:
			s.channel.State = orchestrator.ChannelIdle
		}
	}
	return s.channel.State, nil
}

func TestFullLifecycle(t *testing.T) {
	cp := &slowCP{
		pool:        orchestrator.CapacityPool{Name: "appliance-asg", TargetGroupARN: "arn:tg"},
		flow:        orchestrator.IngestFlow{Name: "ingest-a", ARN: "arn:flow/a", State: orchestrator.FlowStandby},
		channel:     orchestrator.ProcessingChannel{Name: "transcode-1", ID: "100", State: orchestrator.ChannelIdle},
		settleAfter: 3,
	}
	o := orchestrator.New(cp, orchestrator.Config{
		PoolNameHint:      "appliance",
		FlowNameHint:      "ingest",
		ChannelNameHint:   "transcode",
		ActiveCapacity:    2,
		MinHealthyTargets: 2,
		PollInterval:      10 * time.Second,
		PollCeiling:       5 * time.Minute,
		RestartCooldown:   30 * time.Second,
	})
	o.Clock = &fakeClock{now: time.Unix(1700000000, 0)}

	ctx := context.Background()

	rep, err := o.Start(ctx)
	require.NoError(t, err)
	require.NotNil(t, rep.Pool)
	assert.EqualValues(t, 2, rep.Pool.Desired)
	assert.Equal(t, 2, rep.Pool.InService)
	assert.Equal(t, orchestrator.FlowActive, rep.Flows[0].State)
	assert.Equal(t, orchestrator.ChannelRunning, rep.Channels[0].State)
	assert.Empty(t, rep.Warnings, "a converging pipeline should produce no warnings")

	rep, err = o.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.FlowActive, rep.Flows[0].State)

	rep, err = o.Stop(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, rep.Pool.Desired)
	assert.Equal(t, orchestrator.FlowStandby, rep.Flows[0].State)
	assert.Equal(t, orchestrator.ChannelIdle, rep.Channels[0].State)

	// One full cycle issues exactly one transition per resource per
	// direction.
	want := []string{"set-capacity", "start-flow", "start-channel", "stop-channel", "stop-flow", "set-capacity"}
	assert.Equal(t, want, cp.calls)
}
