// Package orchestrator drives a pre-provisioned stream-inspection pipeline
// through ordered start/stop sequences: inspection capacity first, then
// ingest flows, then processing channels, and the exact reverse on stop.
//
// The orchestrator never creates or deletes resources. It observes state,
// issues transitions, and waits for convergence with bounded polls. A wait
// that times out is a warning, not a failure: the sequence keeps going and
// the final report shows whatever state was last observed.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rshade/streamctl/internal/poll"
)

// Config carries the orchestrator's knobs. There are no package-level
// defaults; callers build one (see internal/config) and pass it in.
type Config struct {
	PoolNameHint    string
	FlowNameHint    string
	ChannelNameHint string

	// ActiveCapacity is the appliance count requested on start.
	ActiveCapacity int32
	// MinHealthyTargets is the healthy-target floor waited for before
	// flows are started.
	MinHealthyTargets int

	PollInterval    time.Duration
	PollCeiling     time.Duration
	RestartCooldown time.Duration
}

// Orchestrator coordinates one pipeline. Not safe for concurrent use; the
// sequences are deliberately single-threaded.
type Orchestrator struct {
	cp  ControlPlane
	cfg Config

	// Clock is swapped for a fake in tests. Defaults to the wall clock.
	Clock poll.Clock

	phase Phase
}

func New(cp ControlPlane, cfg Config) *Orchestrator {
	return &Orchestrator{
		cp:    cp,
		cfg:   cfg,
		Clock: poll.System,
		phase: PhaseIdle,
	}
}

// Phase returns the step the most recent sequence reached.
func (o *Orchestrator) Phase() Phase { return o.phase }

func (o *Orchestrator) setPhase(p Phase) {
	o.phase = p
	log.Info().Str("phase", string(p)).Msg("Sequence phase")
}

func (o *Orchestrator) waiter() poll.Waiter {
	return poll.Waiter{
		Interval: o.cfg.PollInterval,
		Ceiling:  o.cfg.PollCeiling,
		Clock:    o.Clock,
	}
}

// Discover scans the control plane for the pool, flows, and channels
// matching the configured name hints. Nothing matching is not an error;
// empty collections come back and later stages no-op over them.
func (o *Orchestrator) Discover(ctx context.Context) (*Inventory, error) {
	pool, err := o.cp.DiscoverPool(ctx, o.cfg.PoolNameHint)
	if err != nil {
		return nil, &DiscoveryError{Kind: "capacity pool", Err: err}
	}
	flows, err := o.cp.DiscoverFlows(ctx, o.cfg.FlowNameHint)
	if err != nil {
		return nil, &DiscoveryError{Kind: "ingest flows", Err: err}
	}
	channels, err := o.cp.DiscoverChannels(ctx, o.cfg.ChannelNameHint)
	if err != nil {
		return nil, &DiscoveryError{Kind: "processing channels", Err: err}
	}

	if pool == nil {
		log.Warn().Str("hint", o.cfg.PoolNameHint).Msg("No capacity pool matched")
	}
	if len(flows) == 0 {
		log.Warn().Str("hint", o.cfg.FlowNameHint).Msg("No ingest flows matched")
	}
	if len(channels) == 0 {
		log.Warn().Str("hint", o.cfg.ChannelNameHint).Msg("No processing channels matched")
	}

	return &Inventory{Pool: pool, Flows: flows, Channels: channels}, nil
}

// seqState accumulates non-fatal findings over one sequence: convergence
// warnings plus per-entity transition failures.
type seqState struct {
	warnings []string
	flowErrs map[string]string // keyed by flow ARN
	chanErrs map[string]string // keyed by channel ID
}

func newSeqState() *seqState {
	return &seqState{
		flowErrs: make(map[string]string),
		chanErrs: make(map[string]string),
	}
}

func (s *seqState) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Warn().Msg(msg)
	s.warnings = append(s.warnings, msg)
}

// Start brings the pipeline up: capacity first, then flows, then channels.
// A partially built report is returned alongside any fatal error so callers
// can still see how far the sequence got.
func (o *Orchestrator) Start(ctx context.Context) (*StatusReport, error) {
	inv, err := o.Discover(ctx)
	if err != nil {
		return nil, err
	}
	seq := newSeqState()

	if inv.Pool != nil {
		o.setPhase(PhaseAdjustingCapacity)
		if err := o.cp.SetPoolCapacity(ctx, inv.Pool.Name, o.cfg.ActiveCapacity); err != nil {
			return o.report(ctx, inv, seq), &CapacityAdjustError{Pool: inv.Pool.Name, Err: err}
		}
		log.Info().Str("pool", inv.Pool.Name).Int32("desired", o.cfg.ActiveCapacity).Msg("Capacity requested")

		o.setPhase(PhaseWaitingCapacityHealthy)
		if err := o.waitPoolInService(ctx, inv, int(o.cfg.ActiveCapacity), seq); err != nil {
			return o.report(ctx, inv, seq), err
		}
		if err := o.waitTargetsHealthy(ctx, inv.Pool, seq); err != nil {
			return o.report(ctx, inv, seq), err
		}
	}

	o.setPhase(PhaseStartingFlows)
	var flowFailures []error
	for i := range inv.Flows {
		f := &inv.Flows[i]
		switch f.State {
		case FlowActive, FlowStarting:
			log.Info().Str("flow", f.Name).Str("state", string(f.State)).Msg("Flow already on its way, skipping start")
			continue
		}
		if err := o.cp.StartFlow(ctx, f.ARN); err != nil {
			seq.flowErrs[f.ARN] = err.Error()
			flowFailures = append(flowFailures, fmt.Errorf("flow %s: %w", f.Name, err))
			log.Error().Err(err).Str("flow", f.Name).Msg("Flow start failed")
			continue
		}
		log.Info().Str("flow", f.Name).Msg("Flow start issued")
	}
	if len(flowFailures) > 0 {
		return o.report(ctx, inv, seq), &FlowTransitionError{Op: "start", Failed: len(flowFailures), Err: errors.Join(flowFailures...)}
	}

	o.setPhase(PhaseWaitingFlowsActive)
	if err := o.waitFlows(ctx, inv, "flows active", seq, FlowActive); err != nil {
		return o.report(ctx, inv, seq), err
	}

	o.setPhase(PhaseStartingChannels)
	var chanFailures []error
	for i := range inv.Channels {
		c := &inv.Channels[i]
		switch c.State {
		case ChannelRunning, ChannelStarting:
			log.Info().Str("channel", c.Name).Str("state", string(c.State)).Msg("Channel already on its way, skipping start")
			continue
		}
		if err := o.cp.StartChannel(ctx, c.ID); err != nil {
			seq.chanErrs[c.ID] = err.Error()
			chanFailures = append(chanFailures, fmt.Errorf("channel %s: %w", c.Name, err))
			log.Error().Err(err).Str("channel", c.Name).Msg("Channel start failed")
			continue
		}
		log.Info().Str("channel", c.Name).Msg("Channel start issued")
	}
	if len(chanFailures) > 0 {
		return o.report(ctx, inv, seq), &ChannelTransitionError{Op: "start", Failed: len(chanFailures), Err: errors.Join(chanFailures...)}
	}

	o.setPhase(PhaseWaitingChannelsRunning)
	if err := o.waitChannels(ctx, inv, "channels running", seq, ChannelRunning); err != nil {
		return o.report(ctx, inv, seq), err
	}

	o.setPhase(PhaseComplete)
	return o.report(ctx, inv, seq), nil
}

// Stop tears the pipeline down in the exact reverse order: channels, then
// flows, then the capacity pool.
func (o *Orchestrator) Stop(ctx context.Context) (*StatusReport, error) {
	inv, err := o.Discover(ctx)
	if err != nil {
		return nil, err
	}
	seq := newSeqState()

	o.setPhase(PhaseStoppingChannels)
	var chanFailures []error
	for i := range inv.Channels {
		c := &inv.Channels[i]
		switch c.State {
		case ChannelIdle, ChannelStopping:
			log.Info().Str("channel", c.Name).Str("state", string(c.State)).Msg("Channel already on its way down, skipping stop")
			continue
		}
		if err := o.cp.StopChannel(ctx, c.ID); err != nil {
			seq.chanErrs[c.ID] = err.Error()
			chanFailures = append(chanFailures, fmt.Errorf("channel %s: %w", c.Name, err))
			log.Error().Err(err).Str("channel", c.Name).Msg("Channel stop failed")
			continue
		}
		log.Info().Str("channel", c.Name).Msg("Channel stop issued")
	}
	if len(chanFailures) > 0 {
		return o.report(ctx, inv, seq), &ChannelTransitionError{Op: "stop", Failed: len(chanFailures), Err: errors.Join(chanFailures...)}
	}

	o.setPhase(PhaseWaitingChannelsIdle)
	if err := o.waitChannels(ctx, inv, "channels idle", seq, ChannelIdle); err != nil {
		return o.report(ctx, inv, seq), err
	}

	o.setPhase(PhaseStoppingFlows)
	var flowFailures []error
	for i := range inv.Flows {
		f := &inv.Flows[i]
		switch f.State {
		case FlowStandby, FlowStopping:
			log.Info().Str("flow", f.Name).Str("state", string(f.State)).Msg("Flow already on its way down, skipping stop")
			continue
		}
		if err := o.cp.StopFlow(ctx, f.ARN); err != nil {
			seq.flowErrs[f.ARN] = err.Error()
			flowFailures = append(flowFailures, fmt.Errorf("flow %s: %w", f.Name, err))
			log.Error().Err(err).Str("flow", f.Name).Msg("Flow stop failed")
			continue
		}
		log.Info().Str("flow", f.Name).Msg("Flow stop issued")
	}
	if len(flowFailures) > 0 {
		return o.report(ctx, inv, seq), &FlowTransitionError{Op: "stop", Failed: len(flowFailures), Err: errors.Join(flowFailures...)}
	}

	o.setPhase(PhaseWaitingFlowsStandby)
	if err := o.waitFlows(ctx, inv, "flows standby", seq, FlowStandby); err != nil {
		return o.report(ctx, inv, seq), err
	}

	if inv.Pool != nil {
		o.setPhase(PhaseDrainingCapacity)
		if err := o.cp.SetPoolCapacity(ctx, inv.Pool.Name, 0); err != nil {
			return o.report(ctx, inv, seq), &CapacityAdjustError{Pool: inv.Pool.Name, Err: err}
		}
		log.Info().Str("pool", inv.Pool.Name).Msg("Capacity drain requested")

		o.setPhase(PhaseWaitingCapacityDrained)
		if err := o.waitPoolInService(ctx, inv, 0, seq); err != nil {
			return o.report(ctx, inv, seq), err
		}
	}

	o.setPhase(PhaseComplete)
	return o.report(ctx, inv, seq), nil
}

// Restart is Stop, a cooldown, then Start. Not atomic: a failure mid-stop
// is logged and Start runs regardless, matching how operators actually
// recover a wedged pipeline.
func (o *Orchestrator) Restart(ctx context.Context) (*StatusReport, error) {
	if _, err := o.Stop(ctx); err != nil {
		log.Warn().Err(err).Msg("Stop failed, proceeding to start anyway")
	}

	if o.cfg.RestartCooldown > 0 {
		log.Info().Dur("cooldown", o.cfg.RestartCooldown).Msg("Cooling down before start")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-o.Clock.After(o.cfg.RestartCooldown):
		}
	}

	return o.Start(ctx)
}

// Status discovers the pipeline and reports current state without mutating
// anything.
func (o *Orchestrator) Status(ctx context.Context) (*StatusReport, error) {
	inv, err := o.Discover(ctx)
	if err != nil {
		return nil, err
	}
	return o.report(ctx, inv, newSeqState()), nil
}

// waitPoolInService polls the pool until at least want instances are
// in service (or, for want==0, until none are). Ceiling is a warning.
func (o *Orchestrator) waitPoolInService(ctx context.Context, inv *Inventory, want int, seq *seqState) error {
	err := o.waiter().Until(ctx, "pool in-service", func(ctx context.Context) (bool, error) {
		pool, err := o.cp.DescribePool(ctx, inv.Pool.Name)
		if err != nil {
			return false, err
		}
		if pool == nil {
			return false, fmt.Errorf("pool %s disappeared", inv.Pool.Name)
		}
		inv.Pool = pool
		if want == 0 {
			return pool.InService == 0, nil
		}
		return pool.InService >= want, nil
	})
	switch {
	case errors.Is(err, poll.ErrCeiling):
		seq.warnf("pool %s did not reach %d in-service instances within %s (last observed %d)",
			inv.Pool.Name, want, o.cfg.PollCeiling, inv.Pool.InService)
		return nil
	default:
		return err
	}
}

// waitTargetsHealthy polls target health behind the pool until the healthy
// count meets the redundancy floor.
func (o *Orchestrator) waitTargetsHealthy(ctx context.Context, pool *CapacityPool, seq *seqState) error {
	if pool.TargetGroupARN == "" || o.cfg.MinHealthyTargets == 0 {
		return nil
	}
	var last TargetHealth
	err := o.waiter().Until(ctx, "targets healthy", func(ctx context.Context) (bool, error) {
		th, err := o.cp.DescribeTargetHealth(ctx, pool.TargetGroupARN)
		if err != nil {
			return false, err
		}
		last = *th
		return th.Healthy >= o.cfg.MinHealthyTargets, nil
	})
	switch {
	case errors.Is(err, poll.ErrCeiling):
		seq.warnf("target group for pool %s did not reach %d healthy targets within %s (last observed %d/%d)",
			pool.Name, o.cfg.MinHealthyTargets, o.cfg.PollCeiling, last.Healthy, last.Registered)
		return nil
	default:
		return err
	}
}

// waitFlows polls every flow until each reaches the target state or its
// error state. Flow state observed during the wait is written back into the
// inventory so the final report reflects the last observation.
func (o *Orchestrator) waitFlows(ctx context.Context, inv *Inventory, what string, seq *seqState, target FlowState) error {
	if len(inv.Flows) == 0 {
		return nil
	}
	err := o.waiter().Until(ctx, what, func(ctx context.Context) (bool, error) {
		settled := true
		for i := range inv.Flows {
			f := &inv.Flows[i]
			st, err := o.cp.DescribeFlow(ctx, f.ARN)
			if err != nil {
				return false, err
			}
			f.State = st
			if st != target && st != FlowError {
				settled = false
			}
		}
		return settled, nil
	})
	switch {
	case errors.Is(err, poll.ErrCeiling):
		seq.warnf("flows did not all reach %s within %s", target, o.cfg.PollCeiling)
		return nil
	default:
		return err
	}
}

// waitChannels is waitFlows for processing channels.
func (o *Orchestrator) waitChannels(ctx context.Context, inv *Inventory, what string, seq *seqState, target ChannelState) error {
	if len(inv.Channels) == 0 {
		return nil
	}
	err := o.waiter().Until(ctx, what, func(ctx context.Context) (bool, error) {
		settled := true
		for i := range inv.Channels {
			c := &inv.Channels[i]
			st, err := o.cp.DescribeChannel(ctx, c.ID)
			if err != nil {
				return false, err
			}
			c.State = st
			if st != target && st != ChannelError {
				settled = false
			}
		}
		return settled, nil
	})
	switch {
	case errors.Is(err, poll.ErrCeiling):
		seq.warnf("channels did not all reach %s within %s", target, o.cfg.PollCeiling)
		return nil
	default:
		return err
	}
}

// report assembles a StatusReport from the inventory's last observed states
// plus a fresh look at the pool and its target health. Describe failures
// here are recorded, not raised: the sequence outcome is already decided.
func (o *Orchestrator) report(ctx context.Context, inv *Inventory, seq *seqState) *StatusReport {
	rep := &StatusReport{
		Flows:      make([]FlowStatus, 0, len(inv.Flows)),
		Channels:   make([]ChannelStatus, 0, len(inv.Channels)),
		Warnings:   seq.warnings,
		ObservedAt: o.Clock.Now(),
	}

	if inv.Pool != nil {
		ps := &PoolStatus{
			Name:      inv.Pool.Name,
			Desired:   inv.Pool.DesiredCapacity,
			InService: inv.Pool.InService,
		}
		if pool, err := o.cp.DescribePool(ctx, inv.Pool.Name); err != nil {
			log.Warn().Err(err).Str("pool", inv.Pool.Name).Msg("Pool refresh failed, reporting last observation")
		} else if pool != nil {
			ps.Desired = pool.DesiredCapacity
			ps.InService = pool.InService
		}
		if inv.Pool.TargetGroupARN != "" {
			if th, err := o.cp.DescribeTargetHealth(ctx, inv.Pool.TargetGroupARN); err != nil {
				log.Warn().Err(err).Str("pool", inv.Pool.Name).Msg("Target health refresh failed")
			} else {
				ps.Registered = th.Registered
				ps.Healthy = th.Healthy
			}
		}
		rep.Pool = ps
	}

	for i := range inv.Flows {
		f := &inv.Flows[i]
		st := f.State
		if refreshed, err := o.cp.DescribeFlow(ctx, f.ARN); err != nil {
			log.Warn().Err(err).Str("flow", f.Name).Msg("Flow refresh failed, reporting last observation")
		} else {
			st = refreshed
		}
		rep.Flows = append(rep.Flows, FlowStatus{
			Name:  f.Name,
			ARN:   f.ARN,
			State: st,
			Error: seq.flowErrs[f.ARN],
		})
	}

	for i := range inv.Channels {
		c := &inv.Channels[i]
		st := c.State
		if refreshed, err := o.cp.DescribeChannel(ctx, c.ID); err != nil {
			log.Warn().Err(err).Str("channel", c.Name).Msg("Channel refresh failed, reporting last observation")
		} else {
			st = refreshed
		}
		rep.Channels = append(rep.Channels, ChannelStatus{
			Name:  c.Name,
			ID:    c.ID,
			State: st,
			Error: seq.chanErrs[c.ID],
		})
	}

	return rep
}
