package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ekran/internal/model"
	"github.com/Nixie-Tech-LLC/ekran/internal/orchestrator"
	"github.com/Nixie-Tech-LLC/ekran/internal/poller"
)

type ticker interface {
	Tick(ctx context.Context) poller.Outcome
}

type starter interface {
	Snapshot() model.Snapshot
	PlayVideo(ctx context.Context, selection []string) (orchestrator.Result, error)
	Resume(ctx context.Context) (orchestrator.Result, error)
}

// runStartupSequence waits delay, polls once and, if the device is idle,
// starts its default video and hands playback to the device rotation.
// Failures are logged and the controller carries on.
func runStartupSequence(ctx context.Context, delay time.Duration, p ticker, o starter) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}

	if outcome := p.Tick(ctx); outcome != poller.Applied {
		log.Warn().Str("outcome", string(outcome)).Msg("startup poll did not reach the device, skipping startup playback")
		return
	}
	if mode := o.Snapshot().State.Mode(); mode != model.ModeIdle {
		log.Info().Str("mode", string(mode)).Msg("device already playing, leaving it alone")
		return
	}

	if _, err := o.PlayVideo(ctx, nil); err != nil {
		log.Warn().Err(err).Msg("startup playback failed")
		return
	}
	if _, err := o.Resume(ctx); err != nil {
		log.Warn().Err(err).Msg("could not resume automation after startup")
		return
	}
	log.Info().Msg("startup playback started, automation resumed")
}
