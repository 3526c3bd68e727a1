package controlplane

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	astypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/mediaconnect"
	mctypes "github.com/aws/aws-sdk-go-v2/service/mediaconnect/types"
	"github.com/aws/aws-sdk-go-v2/service/medialive"
	mltypes "github.com/aws/aws-sdk-go-v2/service/medialive/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/streamctl/internal/orchestrator"
)

type fakeASG struct {
	groups  []astypes.AutoScalingGroup
	desired map[string]int32
	err     error
}

func (f *fakeASG) DescribeAutoScalingGroups(ctx context.Context, params *autoscaling.DescribeAutoScalingGroupsInput, _ ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(params.AutoScalingGroupNames) == 0 {
		return &autoscaling.DescribeAutoScalingGroupsOutput{AutoScalingGroups: f.groups}, nil
	}
	var matched []astypes.AutoScalingGroup
	for _, g := range f.groups {
		for _, want := range params.AutoScalingGroupNames {
			if aws.ToString(g.AutoScalingGroupName) == want {
				matched = append(matched, g)
			}
		}
	}
	return &autoscaling.DescribeAutoScalingGroupsOutput{AutoScalingGroups: matched}, nil
}

func (f *fakeASG) SetDesiredCapacity(ctx context.Context, params *autoscaling.SetDesiredCapacityInput, _ ...func(*autoscaling.Options)) (*autoscaling.SetDesiredCapacityOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.desired == nil {
		f.desired = make(map[string]int32)
	}
	f.desired[aws.ToString(params.AutoScalingGroupName)] = aws.ToInt32(params.DesiredCapacity)
	return &autoscaling.SetDesiredCapacityOutput{}, nil
}

type fakeELB struct {
	descs []elbv2types.TargetHealthDescription
}

func (f *fakeELB) DescribeTargetHealth(ctx context.Context, _ *elbv2.DescribeTargetHealthInput, _ ...func(*elbv2.Options)) (*elbv2.DescribeTargetHealthOutput, error) {
	return &elbv2.DescribeTargetHealthOutput{TargetHealthDescriptions: f.descs}, nil
}

type fakeMC struct {
	flows []mctypes.ListedFlow
}

func (f *fakeMC) ListFlows(ctx context.Context, _ *mediaconnect.ListFlowsInput, _ ...func(*mediaconnect.Options)) (*mediaconnect.ListFlowsOutput, error) {
	return &mediaconnect.ListFlowsOutput{Flows: f.flows}, nil
}

func (f *fakeMC) DescribeFlow(ctx context.Context, params *mediaconnect.DescribeFlowInput, _ ...func(*mediaconnect.Options)) (*mediaconnect.DescribeFlowOutput, error) {
	for _, lf := range f.flows {
		if aws.ToString(lf.FlowArn) == aws.ToString(params.FlowArn) {
			return &mediaconnect.DescribeFlowOutput{Flow: &mctypes.Flow{
				FlowArn: lf.FlowArn,
				Name:    lf.Name,
				Status:  lf.Status,
			}}, nil
		}
	}
	return nil, errors.New("flow not found")
}

func (f *fakeMC) StartFlow(ctx context.Context, params *mediaconnect.StartFlowInput, _ ...func(*mediaconnect.Options)) (*mediaconnect.StartFlowOutput, error) {
	return &mediaconnect.StartFlowOutput{}, nil
}

func (f *fakeMC) StopFlow(ctx context.Context, params *mediaconnect.StopFlowInput, _ ...func(*mediaconnect.Options)) (*mediaconnect.StopFlowOutput, error) {
	return &mediaconnect.StopFlowOutput{}, nil
}

type fakeML struct {
	channels []mltypes.ChannelSummary
}

func (f *fakeML) ListChannels(ctx context.Context, _ *medialive.ListChannelsInput, _ ...func(*medialive.Options)) (*medialive.ListChannelsOutput, error) {
	return &medialive.ListChannelsOutput{Channels: f.channels}, nil
}

func (f *fakeML) DescribeChannel(ctx context.Context, params *medialive.DescribeChannelInput, _ ...func(*medialive.Options)) (*medialive.DescribeChannelOutput, error) {
	for _, ch := range f.channels {
		if aws.ToString(ch.Id) == aws.ToString(params.ChannelId) {
			return &medialive.DescribeChannelOutput{Id: ch.Id, Name: ch.Name, State: ch.State}, nil
		}
	}
	return nil, errors.New("channel not found")
}

func (f *fakeML) StartChannel(ctx context.Context, params *medialive.StartChannelInput, _ ...func(*medialive.Options)) (*medialive.StartChannelOutput, error) {
	return &medialive.StartChannelOutput{}, nil
}

func (f *fakeML) StopChannel(ctx context.Context, params *medialive.StopChannelInput, _ ...func(*medialive.Options)) (*medialive.StopChannelOutput, error) {
	return &medialive.StopChannelOutput{}, nil
}

func newTestClient(asg *fakeASG, elb *fakeELB, mc *fakeMC, ml *fakeML) *Client {
	if asg == nil {
		asg = &fakeASG{}
	}
	if elb == nil {
		elb = &fakeELB{}
	}
	if mc == nil {
		mc = &fakeMC{}
	}
	if ml == nil {
		ml = &fakeML{}
	}
	return NewWithAPIs(asg, elb, mc, ml)
}

func TestDiscoverPool(t *testing.T) {
	asg := &fakeASG{groups: []astypes.AutoScalingGroup{
		{
			AutoScalingGroupName: aws.String("unrelated-workers"),
			DesiredCapacity:      aws.Int32(3),
		},
		{
			AutoScalingGroupName: aws.String("prod-inspection-appliance-asg"),
			DesiredCapacity:      aws.Int32(2),
			TargetGroupARNs:      []string{"arn:tg/inspection"},
			Instances: []astypes.Instance{
				{InstanceId: aws.String("i-1"), LifecycleState: astypes.LifecycleStateInService},
				{InstanceId: aws.String("i-2"), LifecycleState: astypes.LifecycleStatePending},
			},
		},
	}}
	c := newTestClient(asg, nil, nil, nil)

	t.Run("matches by substring", func(t *testing.T) {
		pool, err := c.DiscoverPool(context.Background(), "inspection-appliance")
		require.NoError(t, err)
		require.NotNil(t, pool)
		assert.Equal(t, "prod-inspection-appliance-asg", pool.Name)
		assert.EqualValues(t, 2, pool.DesiredCapacity)
		assert.Equal(t, 1, pool.InService)
		assert.Equal(t, "arn:tg/inspection", pool.TargetGroupARN)
	})

	t.Run("no match returns nil, not an error", func(t *testing.T) {
		pool, err := c.DiscoverPool(context.Background(), "nope")
		require.NoError(t, err)
		assert.Nil(t, pool)
	})

	t.Run("transport failure is an error", func(t *testing.T) {
		broken := newTestClient(&fakeASG{err: errors.New("throttled")}, nil, nil, nil)
		_, err := broken.DiscoverPool(context.Background(), "inspection")
		assert.Error(t, err)
	})
}

func TestDescribeTargetHealth(t *testing.T) {
	elb := &fakeELB{descs: []elbv2types.TargetHealthDescription{
		{TargetHealth: &elbv2types.TargetHealth{State: elbv2types.TargetHealthStateEnumHealthy}},
		{TargetHealth: &elbv2types.TargetHealth{State: elbv2types.TargetHealthStateEnumInitial}},
		{TargetHealth: &elbv2types.TargetHealth{State: elbv2types.TargetHealthStateEnumHealthy}},
	}}
	c := newTestClient(nil, elb, nil, nil)

	th, err := c.DescribeTargetHealth(context.Background(), "arn:tg/inspection")
	require.NoError(t, err)
	assert.Equal(t, 3, th.Registered)
	assert.Equal(t, 2, th.Healthy)
}

func TestDiscoverFlows(t *testing.T) {
	mc := &fakeMC{flows: []mctypes.ListedFlow{
		{Name: aws.String("prod-ingest-a"), FlowArn: aws.String("arn:flow/a"), Status: mctypes.StatusStandby},
		{Name: aws.String("prod-ingest-b"), FlowArn: aws.String("arn:flow/b"), Status: mctypes.StatusActive},
		{Name: aws.String("other-flow"), FlowArn: aws.String("arn:flow/x"), Status: mctypes.StatusActive},
	}}
	c := newTestClient(nil, nil, mc, nil)

	flows, err := c.DiscoverFlows(context.Background(), "prod-ingest")
	require.NoError(t, err)
	require.Len(t, flows, 2)
	assert.Equal(t, orchestrator.FlowStandby, flows[0].State)
	assert.Equal(t, orchestrator.FlowActive, flows[1].State)
}

func TestDiscoverChannelsSkipsDeleting(t *testing.T) {
	ml := &fakeML{channels: []mltypes.ChannelSummary{
		{Name: aws.String("prod-transcode-1"), Id: aws.String("100"), State: mltypes.ChannelStateIdle},
		{Name: aws.String("prod-transcode-2"), Id: aws.String("101"), State: mltypes.ChannelStateDeleting},
	}}
	c := newTestClient(nil, nil, nil, ml)

	channels, err := c.DiscoverChannels(context.Background(), "prod-transcode")
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, "100", channels[0].ID)
	assert.Equal(t, orchestrator.ChannelIdle, channels[0].State)
}

func TestFlowStateMapping(t *testing.T) {
	cases := map[mctypes.Status]orchestrator.FlowState{
		mctypes.StatusStandby:  orchestrator.FlowStandby,
		mctypes.StatusStarting: orchestrator.FlowStarting,
		mctypes.StatusUpdating: orchestrator.FlowStarting,
		mctypes.StatusActive:   orchestrator.FlowActive,
		mctypes.StatusStopping: orchestrator.FlowStopping,
		mctypes.StatusError:    orchestrator.FlowError,
		mctypes.Status("MYSTERY_NEW_STATUS"): orchestrator.FlowError,
	}
	for in, want := range cases {
		assert.Equal(t, want, flowState(in, "f"), "status %s", in)
	}
}

func TestChannelStateMapping(t *testing.T) {
	cases := map[mltypes.ChannelState]orchestrator.ChannelState{
		mltypes.ChannelStateIdle:         orchestrator.ChannelIdle,
		mltypes.ChannelStateStarting:     orchestrator.ChannelStarting,
		mltypes.ChannelStateRunning:      orchestrator.ChannelRunning,
		mltypes.ChannelStateRecovering:   orchestrator.ChannelRunning,
		mltypes.ChannelStateStopping:     orchestrator.ChannelStopping,
		mltypes.ChannelStateCreateFailed: orchestrator.ChannelError,
		mltypes.ChannelState("MYSTERY"):  orchestrator.ChannelError,
	}
	for in, want := range cases {
		assert.Equal(t, want, channelState(in, "ch"), "state %s", in)
	}
}

func TestSetPoolCapacity(t *testing.T) {
	asg := &fakeASG{}
	c := newTestClient(asg, nil, nil, nil)

	require.NoError(t, c.SetPoolCapacity(context.Background(), "prod-appliance-asg", 2))
	assert.EqualValues(t, 2, asg.desired["prod-appliance-asg"])
}
