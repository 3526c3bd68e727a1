package controlplane

import (
	"github.com/rs/zerolog/log"

	mctypes "github.com/aws/aws-sdk-go-v2/service/mediaconnect/types"
	mltypes "github.com/aws/aws-sdk-go-v2/service/medialive/types"

	"github.com/rshade/streamctl/internal/orchestrator"
)

// flowState maps a MediaConnect flow status onto the orchestrator's typed
// states. Unknown statuses land on the error state with a warning so a new
// provider status never silently matches nothing.
func flowState(s mctypes.Status, name string) orchestrator.FlowState {
	switch s {
	case mctypes.StatusStandby:
		return orchestrator.FlowStandby
	case mctypes.StatusStarting, mctypes.StatusUpdating:
		return orchestrator.FlowStarting
	case mctypes.StatusActive:
		return orchestrator.FlowActive
	case mctypes.StatusStopping, mctypes.StatusDeleting:
		return orchestrator.FlowStopping
	case mctypes.StatusError:
		return orchestrator.FlowError
	default:
		log.Warn().Str("flow", name).Str("status", string(s)).Msg("Unrecognized flow status, treating as error")
		return orchestrator.FlowError
	}
}

// channelState maps a MediaLive channel state onto the orchestrator's typed
// states. Recovering counts as running: the channel is producing output and
// needs no transition from us.
func channelState(s mltypes.ChannelState, name string) orchestrator.ChannelState {
	switch s {
	case mltypes.ChannelStateIdle:
		return orchestrator.ChannelIdle
	case mltypes.ChannelStateStarting:
		return orchestrator.ChannelStarting
	case mltypes.ChannelStateRunning, mltypes.ChannelStateRecovering:
		return orchestrator.ChannelRunning
	case mltypes.ChannelStateStopping:
		return orchestrator.ChannelStopping
	case mltypes.ChannelStateCreateFailed, mltypes.ChannelStateUpdateFailed:
		return orchestrator.ChannelError
	default:
		log.Warn().Str("channel", name).Str("state", string(s)).Msg("Unrecognized channel state, treating as error")
		return orchestrator.ChannelError
	}
}
