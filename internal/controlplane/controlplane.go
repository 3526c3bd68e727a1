// Package controlplane implements the orchestrator's ControlPlane on the
// AWS control plane: an Auto Scaling group of inspection appliances, the
// Gateway Load Balancer target group in front of them, MediaConnect flows,
// and MediaLive channels.
package controlplane

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	astypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/mediaconnect"
	"github.com/aws/aws-sdk-go-v2/service/medialive"
	mltypes "github.com/aws/aws-sdk-go-v2/service/medialive/types"

	"github.com/rshade/streamctl/internal/orchestrator"
)

// Narrow slices of the AWS clients, so tests run against fakes.

type AutoScalingAPI interface {
	DescribeAutoScalingGroups(ctx context.Context, params *autoscaling.DescribeAutoScalingGroupsInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error)
	SetDesiredCapacity(ctx context.Context, params *autoscaling.SetDesiredCapacityInput, optFns ...func(*autoscaling.Options)) (*autoscaling.SetDesiredCapacityOutput, error)
}

type ELBAPI interface {
	DescribeTargetHealth(ctx context.Context, params *elbv2.DescribeTargetHealthInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeTargetHealthOutput, error)
}

type MediaConnectAPI interface {
	ListFlows(ctx context.Context, params *mediaconnect.ListFlowsInput, optFns ...func(*mediaconnect.Options)) (*mediaconnect.ListFlowsOutput, error)
	DescribeFlow(ctx context.Context, params *mediaconnect.DescribeFlowInput, optFns ...func(*mediaconnect.Options)) (*mediaconnect.DescribeFlowOutput, error)
	StartFlow(ctx context.Context, params *mediaconnect.StartFlowInput, optFns ...func(*mediaconnect.Options)) (*mediaconnect.StartFlowOutput, error)
	StopFlow(ctx context.Context, params *mediaconnect.StopFlowInput, optFns ...func(*mediaconnect.Options)) (*mediaconnect.StopFlowOutput, error)
}

type MediaLiveAPI interface {
	ListChannels(ctx context.Context, params *medialive.ListChannelsInput, optFns ...func(*medialive.Options)) (*medialive.ListChannelsOutput, error)
	DescribeChannel(ctx context.Context, params *medialive.DescribeChannelInput, optFns ...func(*medialive.Options)) (*medialive.DescribeChannelOutput, error)
	StartChannel(ctx context.Context, params *medialive.StartChannelInput, optFns ...func(*medialive.Options)) (*medialive.StartChannelOutput, error)
	StopChannel(ctx context.Context, params *medialive.StopChannelInput, optFns ...func(*medialive.Options)) (*medialive.StopChannelOutput, error)
}

// Client is the AWS-backed control plane.
type Client struct {
	asg AutoScalingAPI
	elb ELBAPI
	mc  MediaConnectAPI
	ml  MediaLiveAPI
}

var _ orchestrator.ControlPlane = (*Client)(nil)

// New builds a Client from the default AWS credential chain.
func New(ctx context.Context, region string) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Client{
		asg: autoscaling.NewFromConfig(cfg),
		elb: elbv2.NewFromConfig(cfg),
		mc:  mediaconnect.NewFromConfig(cfg),
		ml:  medialive.NewFromConfig(cfg),
	}, nil
}

// NewWithAPIs wires explicit API implementations. Used by tests.
func NewWithAPIs(asg AutoScalingAPI, elb ELBAPI, mc MediaConnectAPI, ml MediaLiveAPI) *Client {
	return &Client{asg: asg, elb: elb, mc: mc, ml: ml}
}

// DiscoverPool returns the first Auto Scaling group whose name contains
// nameHint, or nil when nothing matches.
func (c *Client) DiscoverPool(ctx context.Context, nameHint string) (*orchestrator.CapacityPool, error) {
	var next *string
	for {
		out, err := c.asg.DescribeAutoScalingGroups(ctx, &autoscaling.DescribeAutoScalingGroupsInput{NextToken: next})
		if err != nil {
			return nil, fmt.Errorf("describe auto scaling groups: %w", err)
		}
		for _, g := range out.AutoScalingGroups {
			if !strings.Contains(aws.ToString(g.AutoScalingGroupName), nameHint) {
				continue
			}
			return poolFromGroup(g), nil
		}
		if out.NextToken == nil {
			return nil, nil
		}
		next = out.NextToken
	}
}

// DescribePool refreshes a pool by exact name. Nil when the group is gone.
func (c *Client) DescribePool(ctx context.Context, poolName string) (*orchestrator.CapacityPool, error) {
	out, err := c.asg.DescribeAutoScalingGroups(ctx, &autoscaling.DescribeAutoScalingGroupsInput{
		AutoScalingGroupNames: []string{poolName},
	})
	if err != nil {
		return nil, fmt.Errorf("describe auto scaling group %s: %w", poolName, err)
	}
	if len(out.AutoScalingGroups) == 0 {
		return nil, nil
	}
	return poolFromGroup(out.AutoScalingGroups[0]), nil
}

func poolFromGroup(g astypes.AutoScalingGroup) *orchestrator.CapacityPool {
	pool := &orchestrator.CapacityPool{
		Name:            aws.ToString(g.AutoScalingGroupName),
		DesiredCapacity: aws.ToInt32(g.DesiredCapacity),
	}
	for _, inst := range g.Instances {
		if inst.LifecycleState == astypes.LifecycleStateInService {
			pool.InService++
		}
	}
	if len(g.TargetGroupARNs) > 0 {
		pool.TargetGroupARN = g.TargetGroupARNs[0]
	}
	return pool
}

func (c *Client) SetPoolCapacity(ctx context.Context, poolName string, desired int32) error {
	_, err := c.asg.SetDesiredCapacity(ctx, &autoscaling.SetDesiredCapacityInput{
		AutoScalingGroupName: aws.String(poolName),
		DesiredCapacity:      aws.Int32(desired),
		HonorCooldown:        aws.Bool(false),
	})
	if err != nil {
		return fmt.Errorf("set desired capacity of %s to %d: %w", poolName, desired, err)
	}
	return nil
}

func (c *Client) DescribeTargetHealth(ctx context.Context, targetGroupARN string) (*orchestrator.TargetHealth, error) {
	out, err := c.elb.DescribeTargetHealth(ctx, &elbv2.DescribeTargetHealthInput{
		TargetGroupArn: aws.String(targetGroupARN),
	})
	if err != nil {
		return nil, fmt.Errorf("describe target health: %w", err)
	}
	th := &orchestrator.TargetHealth{Registered: len(out.TargetHealthDescriptions)}
	for _, d := range out.TargetHealthDescriptions {
		if d.TargetHealth != nil && d.TargetHealth.State == elbv2types.TargetHealthStateEnumHealthy {
			th.Healthy++
		}
	}
	return th, nil
}

// DiscoverFlows returns every MediaConnect flow whose name contains
// nameHint.
func (c *Client) DiscoverFlows(ctx context.Context, nameHint string) ([]orchestrator.IngestFlow, error) {
	var flows []orchestrator.IngestFlow
	var next *string
	for {
		out, err := c.mc.ListFlows(ctx, &mediaconnect.ListFlowsInput{NextToken: next})
		if err != nil {
			return nil, fmt.Errorf("list flows: %w", err)
		}
		for _, f := range out.Flows {
			name := aws.ToString(f.Name)
			if !strings.Contains(name, nameHint) {
				continue
			}
			flows = append(flows, orchestrator.IngestFlow{
				Name:  name,
				ARN:   aws.ToString(f.FlowArn),
				State: flowState(f.Status, name),
			})
		}
		if out.NextToken == nil {
			return flows, nil
		}
		next = out.NextToken
	}
}

func (c *Client) DescribeFlow(ctx context.Context, flowARN string) (orchestrator.FlowState, error) {
	out, err := c.mc.DescribeFlow(ctx, &mediaconnect.DescribeFlowInput{FlowArn: aws.String(flowARN)})
	if err != nil {
		return orchestrator.FlowError, fmt.Errorf("describe flow %s: %w", flowARN, err)
	}
	if out.Flow == nil {
		return orchestrator.FlowError, fmt.Errorf("describe flow %s: empty response", flowARN)
	}
	return flowState(out.Flow.Status, aws.ToString(out.Flow.Name)), nil
}

func (c *Client) StartFlow(ctx context.Context, flowARN string) error {
	if _, err := c.mc.StartFlow(ctx, &mediaconnect.StartFlowInput{FlowArn: aws.String(flowARN)}); err != nil {
		return fmt.Errorf("start flow %s: %w", flowARN, err)
	}
	return nil
}

func (c *Client) StopFlow(ctx context.Context, flowARN string) error {
	if _, err := c.mc.StopFlow(ctx, &mediaconnect.StopFlowInput{FlowArn: aws.String(flowARN)}); err != nil {
		return fmt.Errorf("stop flow %s: %w", flowARN, err)
	}
	return nil
}

// DiscoverChannels returns every MediaLive channel whose name contains
// nameHint, skipping channels mid-deletion.
func (c *Client) DiscoverChannels(ctx context.Context, nameHint string) ([]orchestrator.ProcessingChannel, error) {
	var channels []orchestrator.ProcessingChannel
	var next *string
	for {
		out, err := c.ml.ListChannels(ctx, &medialive.ListChannelsInput{NextToken: next})
		if err != nil {
			return nil, fmt.Errorf("list channels: %w", err)
		}
		for _, ch := range out.Channels {
			name := aws.ToString(ch.Name)
			if !strings.Contains(name, nameHint) {
				continue
			}
			if ch.State == mltypes.ChannelStateDeleting || ch.State == mltypes.ChannelStateDeleted {
				continue
			}
			channels = append(channels, orchestrator.ProcessingChannel{
				Name:  name,
				ID:    aws.ToString(ch.Id),
				State: channelState(ch.State, name),
			})
		}
		if out.NextToken == nil {
			return channels, nil
		}
		next = out.NextToken
	}
}

func (c *Client) DescribeChannel(ctx context.Context, channelID string) (orchestrator.ChannelState, error) {
	out, err := c.ml.DescribeChannel(ctx, &medialive.DescribeChannelInput{ChannelId: aws.String(channelID)})
	if err != nil {
		return orchestrator.ChannelError, fmt.Errorf("describe channel %s: %w", channelID, err)
	}
	return channelState(out.State, aws.ToString(out.Name)), nil
}

func (c *Client) StartChannel(ctx context.Context, channelID string) error {
	if _, err := c.ml.StartChannel(ctx, &medialive.StartChannelInput{ChannelId: aws.String(channelID)}); err != nil {
		return fmt.Errorf("start channel %s: %w", channelID, err)
	}
	return nil
}

func (c *Client) StopChannel(ctx context.Context, channelID string) error {
	if _, err := c.ml.StopChannel(ctx, &medialive.StopChannelInput{ChannelId: aws.String(channelID)}); err != nil {
		return fmt.Errorf("stop channel %s: %w", channelID, err)
	}
	return nil
}
