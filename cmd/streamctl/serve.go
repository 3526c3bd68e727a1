package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rshade/streamctl/internal/controlplane"
	"github.com/rshade/streamctl/internal/engine"
	"github.com/rshade/streamctl/internal/orchestrator"
	"github.com/rshade/streamctl/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		flagPort  int
		flagToken string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an HTTP surface exposing status and lifecycle triggers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				log.Error().Err(err).Msg("Configuration error")
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Serve.Port = flagPort
			}
			if flagToken != "" {
				cfg.Serve.Token = flagToken
			}
			if cfg.Serve.Token == "" {
				return fmt.Errorf("serve requires a bearer token (--token or serve.token in config)")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cp, err := controlplane.New(ctx, cfg.Region)
			if err != nil {
				log.Error().Err(err).Msg("Control plane setup failed")
				return err
			}
			orch := orchestrator.New(cp, orchestratorConfig(cfg))
			eng := engine.New(orch, cfg.Serve.Cooldown)

			go eng.Run(ctx)

			srv := server.New(cfg.Serve.Port, cfg.Serve.Token, eng)
			if err := srv.Start(ctx); err != nil {
				log.Error().Err(err).Msg("Server failed")
				return err
			}
			log.Info().Msg("Shutdown complete")
			return nil
		},
	}

	cmd.Flags().IntVar(&flagPort, "port", 8080, "Port to listen on")
	cmd.Flags().StringVar(&flagToken, "token", "", "Bearer token guarding mutating endpoints")
	return cmd
}
