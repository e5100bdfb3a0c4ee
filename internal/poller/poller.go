// Package poller keeps the orchestrator's view in line with the device by
// fetching status and camera inventory on a fixed period.
package poller

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Nixie-Tech-LLC/ekran/internal/device"
	"github.com/Nixie-Tech-LLC/ekran/internal/events"
	"github.com/Nixie-Tech-LLC/ekran/internal/metrics"
	"github.com/Nixie-Tech-LLC/ekran/internal/model"
	"github.com/Nixie-Tech-LLC/ekran/internal/orchestrator"
)

// DefaultInterval is the polling period when none is configured.
const DefaultInterval = 5 * time.Second

// Outcome of one tick.
type Outcome string

const (
	Applied   Outcome = "ok"
	Failed    Outcome = "failed"
	Skipped   Outcome = "skipped"
	Discarded Outcome = "discarded"
)

// Reconciler is the part of the orchestrator the poller feeds.
type Reconciler interface {
	BeginPoll() (epoch uint64, ok bool)
	Reconcile(ctx context.Context, r orchestrator.PollResult) (bool, error)
	ConnectionLost(ctx context.Context, cause error) error
}

type Poller struct {
	source   device.StatusSource
	target   Reconciler
	pub      orchestrator.Publisher
	metrics  *metrics.Metrics
	interval time.Duration
}

func New(source device.StatusSource, target Reconciler, pub orchestrator.Publisher, m *metrics.Metrics, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{source: source, target: target, pub: pub, metrics: m, interval: interval}
}

// Run ticks until ctx is cancelled. Ticks are handled one at a time; a tick
// that arrives while the previous fetch is still running is dropped by the
// ticker, so at most one fetch is ever outstanding.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", p.interval).Msg("status poller started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("status poller stopped")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick performs one poll.
func (p *Poller) Tick(ctx context.Context) Outcome {
	epoch, ok := p.target.BeginPoll()
	if !ok {
		p.metrics.Poll(string(Skipped))
		log.Debug().Msg("poll skipped, command in flight")
		return Skipped
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	var (
		state   model.PlaybackState
		cameras []model.CameraRecord
		info    model.SystemInfo
		infoErr error
	)
	g, gctx := errgroup.WithContext(fetchCtx)
	g.Go(func() error {
		var err error
		state, err = p.source.GetStatus(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		cameras, err = p.source.GetCameras(gctx)
		return err
	})
	// System info rides along on the same tick but never fails the poll.
	infoDone := make(chan struct{})
	go func() {
		defer close(infoDone)
		info, infoErr = p.source.GetSystemInfo(fetchCtx)
	}()

	err := g.Wait()
	<-infoDone

	if infoErr != nil {
		log.Debug().Err(infoErr).Msg("system info unavailable")
	} else {
		p.metrics.SystemInfo(info)
		if p.pub != nil {
			p.pub.Publish(events.SystemInfoUpdated, events.Health{Info: info})
		}
	}

	if err != nil {
		p.metrics.Poll(string(Failed))
		log.Debug().Err(err).Msg("status poll failed")
		if lerr := p.target.ConnectionLost(ctx, err); lerr != nil {
			log.Error().Err(lerr).Msg("failed to report lost connection")
		}
		return Failed
	}

	applied, err := p.target.Reconcile(ctx, orchestrator.PollResult{Epoch: epoch, State: state, Cameras: cameras})
	if err != nil {
		log.Error().Err(err).Msg("failed to reconcile poll result")
		return Failed
	}
	if !applied {
		p.metrics.Poll(string(Discarded))
		return Discarded
	}
	p.metrics.Poll(string(Applied))
	return Applied
}
