// Command streamctl drives a stream-inspection pipeline through its
// lifecycle: the inspection appliance pool, the ingest flows, and the
// transcoding channels, in dependency order.
package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rshade/streamctl/internal/config"
	"github.com/rshade/streamctl/internal/orchestrator"
)

var (
	flagConfig      string
	flagStack       string
	flagRegion      string
	flagPoolHint    string
	flagFlowHint    string
	flagChannelHint string
	flagDebug       bool
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		// Fatal (transport-level) errors exit non-zero; convergence
		// timeouts never reach here, they are report warnings.
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "streamctl",
		Short:         "Operate a stream-inspection pipeline (capacity pool, ingest flows, transcoding channels)",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Path to a YAML config file")
	pf.StringVar(&flagStack, "stack", "", "Stack name the pipeline resources belong to")
	pf.StringVar(&flagRegion, "region", "", "AWS region")
	pf.StringVar(&flagPoolHint, "pool-hint", "", "Name substring identifying the appliance pool")
	pf.StringVar(&flagFlowHint, "flow-hint", "", "Name substring identifying ingest flows")
	pf.StringVar(&flagChannelHint, "channel-hint", "", "Name substring identifying transcoding channels")
	pf.BoolVar(&flagDebug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newVerbCmd("start", "Start the pipeline: scale up appliances, then flows, then channels"),
		newVerbCmd("stop", "Stop the pipeline: channels, then flows, then scale appliances to zero"),
		newVerbCmd("restart", "Stop the pipeline, cool down, start it again"),
		newVerbCmd("status", "Report pipeline state without changing anything"),
		newServeCmd(),
	)
	return root
}

func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if isatty.IsTerminal(os.Stderr.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = log.Output(os.Stderr)
	}
	if flagDebug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// loadConfig overlays file and flag values onto the defaults and validates
// the result.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, err
	}
	if flagStack != "" {
		cfg.StackName = flagStack
	}
	if flagRegion != "" {
		cfg.Region = flagRegion
	}
	if flagPoolHint != "" {
		cfg.PoolNameHint = flagPoolHint
	}
	if flagFlowHint != "" {
		cfg.FlowNameHint = flagFlowHint
	}
	if flagChannelHint != "" {
		cfg.ChannelNameHint = flagChannelHint
	}
	cfg.ApplyHintDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// orchestratorConfig maps the runtime configuration onto the
// orchestrator's knobs.
func orchestratorConfig(cfg config.Config) orchestrator.Config {
	return orchestrator.Config{
		PoolNameHint:      cfg.PoolNameHint,
		FlowNameHint:      cfg.FlowNameHint,
		ChannelNameHint:   cfg.ChannelNameHint,
		ActiveCapacity:    cfg.ActiveCapacity,
		MinHealthyTargets: cfg.MinHealthyTargets,
		PollInterval:      cfg.PollInterval,
		PollCeiling:       cfg.PollCeiling,
		RestartCooldown:   cfg.RestartCooldown,
	}
}
