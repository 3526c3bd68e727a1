package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rshade/streamctl/internal/controlplane"
	"github.com/rshade/streamctl/internal/orchestrator"
)

func newVerbCmd(verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerb(verb)
		},
	}
}

func runVerb(verb string) error {
	cfg, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Msg("Configuration error")
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cp, err := controlplane.New(ctx, cfg.Region)
	if err != nil {
		log.Error().Err(err).Msg("Control plane setup failed")
		return err
	}
	orch := orchestrator.New(cp, orchestratorConfig(cfg))

	log.Info().
		Str("verb", verb).
		Str("stack", cfg.StackName).
		Str("region", cfg.Region).
		Msg("Running lifecycle operation")

	var rep *orchestrator.StatusReport
	switch verb {
	case "start":
		rep, err = orch.Start(ctx)
	case "stop":
		rep, err = orch.Stop(ctx)
	case "restart":
		rep, err = orch.Restart(ctx)
	case "status":
		rep, err = orch.Status(ctx)
	}

	if rep != nil {
		printReport(rep)
	}
	if err != nil {
		log.Error().Err(err).Str("verb", verb).Msg("Lifecycle operation failed")
		return err
	}
	return nil
}

// printReport renders the snapshot for a human. The structured log stream
// already carried the play-by-play; this is the closing summary.
func printReport(rep *orchestrator.StatusReport) {
	fmt.Printf("Pipeline status at %s\n", rep.ObservedAt.Format("2006-01-02 15:04:05 MST"))

	if rep.Pool != nil {
		fmt.Printf("  pool     %-32s desired=%d in-service=%d healthy=%d/%d\n",
			rep.Pool.Name, rep.Pool.Desired, rep.Pool.InService, rep.Pool.Healthy, rep.Pool.Registered)
	} else {
		fmt.Println("  pool     (none discovered)")
	}

	if len(rep.Flows) == 0 {
		fmt.Println("  flows    (none discovered)")
	}
	for _, f := range rep.Flows {
		line := fmt.Sprintf("  flow     %-32s %s", f.Name, f.State)
		if f.Error != "" {
			line += "  ERROR: " + f.Error
		}
		fmt.Println(line)
	}

	if len(rep.Channels) == 0 {
		fmt.Println("  channels (none discovered)")
	}
	for _, c := range rep.Channels {
		line := fmt.Sprintf("  channel  %-32s %s", c.Name, c.State)
		if c.Error != "" {
			line += "  ERROR: " + c.Error
		}
		fmt.Println(line)
	}

	for _, warning := range rep.Warnings {
		fmt.Printf("  warning  %s\n", warning)
	}
}
