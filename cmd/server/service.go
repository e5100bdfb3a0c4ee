package main

import (
	"context"
	"fmt"

	"github.com/kardianos/service"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// program implements the kardianos/service interface
type program struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *program) Start(s service.Service) error {
	// Start should not block. Do the actual work async.
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		if err := serve(ctx); err != nil {
			log.Error().Err(err).Msg("controller exited")
		}
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	log.Info().Msg("stopping service")
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
	return nil
}

var serviceCmd = &cobra.Command{
	Use:       "service <install|uninstall|start|stop|restart|run>",
	Short:     "Manage ekran as an OS service",
	Args:      cobra.ExactArgs(1),
	ValidArgs: append(service.ControlAction[:], "run"),
	RunE: func(cmd *cobra.Command, args []string) error {
		svcConfig := &service.Config{
			Name:        "ekran",
			DisplayName: "ekran display controller",
			Description: "Drives a networked display device and serves the operator API",
			Arguments:   []string{"service", "run"},
		}
		if cfgFile != "" {
			svcConfig.Arguments = append(svcConfig.Arguments, "--config", cfgFile)
		}

		s, err := service.New(&program{}, svcConfig)
		if err != nil {
			return err
		}

		action := args[0]
		if action == "run" {
			// invoked by the service manager
			return s.Run()
		}
		if err := service.Control(s, action); err != nil {
			return fmt.Errorf("failed to %s service: %w", action, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Service action '%s' completed successfully.\n", action)
		return nil
	},
}
