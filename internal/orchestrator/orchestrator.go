// Package orchestrator owns the playback state of the display.
//
// A single goroutine (Run) owns the state and the operation lock. Commands,
// device answers, poll results and lock expiries all reach it as messages on
// one inbox, so a finishing command and a concurrently arriving poll can never
// interleave. Device calls run on their own goroutines and report back through
// the inbox; an answer is applied only if its request ID is still the one the
// lock is held for.
package orchestrator

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ekran/internal/apperr"
	"github.com/Nixie-Tech-LLC/ekran/internal/device"
	"github.com/Nixie-Tech-LLC/ekran/internal/events"
	"github.com/Nixie-Tech-LLC/ekran/internal/metrics"
	"github.com/Nixie-Tech-LLC/ekran/internal/model"
)

// ErrStopped is returned once Run has exited.
var ErrStopped = errors.New("orchestrator stopped")

// Publisher receives every event the orchestrator emits.
type Publisher interface {
	Publish(t events.Type, data any)
}

type Config struct {
	// CommandTimeout bounds a single device call.
	CommandTimeout time.Duration
	// LockTimeout releases the lock if no answer arrived for the request
	// holding it. It should exceed CommandTimeout.
	LockTimeout time.Duration
}

// Result is what a successful command returns.
type Result struct {
	RequestID string              `json:"request_id"`
	State     model.PlaybackState `json:"state"`
}

// PollResult is one successful status fetch. Epoch must be the value
// BeginPoll returned before the fetch started.
type PollResult struct {
	Epoch   uint64
	State   model.PlaybackState
	Cameras []model.CameraRecord
}

type outcome struct {
	res Result
	err error
}

// pending is the command currently holding the lock.
type pending struct {
	id      string
	cmd     command
	reply   chan outcome
	started time.Time
	timer   *time.Timer
}

type Orchestrator struct {
	player  device.Player
	pub     Publisher
	metrics *metrics.Metrics
	cfg     Config

	inbox chan func()
	done  chan struct{}

	// Owned by the Run goroutine.
	state   model.PlaybackState
	cameras []model.CameraRecord
	online  bool
	current *pending

	// Mirrors readable from any goroutine.
	inFlight atomic.Bool
	epoch    atomic.Uint64
	snap     atomic.Pointer[model.Snapshot]

	now   func() time.Time
	newID func() string
}

func New(player device.Player, pub Publisher, m *metrics.Metrics, cfg Config) *Orchestrator {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 15 * time.Second
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 2 * cfg.CommandTimeout
	}

	o := &Orchestrator{
		player:  player,
		pub:     pub,
		metrics: m,
		cfg:     cfg,
		inbox:   make(chan func(), 64),
		done:    make(chan struct{}),
		cameras: []model.CameraRecord{},
		now:     time.Now,
		newID:   uuid.NewString,
	}
	o.commit()
	return o
}

// Run processes the inbox until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) {
	defer close(o.done)
	for {
		select {
		case <-ctx.Done():
			if o.current != nil {
				o.current.timer.Stop()
			}
			return
		case fn := <-o.inbox:
			fn()
		}
	}
}

// send queues fn for the actor. It reports false once the actor has exited.
func (o *Orchestrator) send(fn func()) bool {
	select {
	case o.inbox <- fn:
		return true
	case <-o.done:
		return false
	}
}

// call runs fn on the actor and waits for it.
func (o *Orchestrator) call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		fn()
		close(finished)
	}
	select {
	case o.inbox <- wrapped:
	case <-o.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-o.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PUBLIC COMMANDS

func (o *Orchestrator) PlayVideo(ctx context.Context, selection []string) (Result, error) {
	return o.submit(ctx, playVideo(slices.Clone(selection)))
}

func (o *Orchestrator) PlayCamera(ctx context.Context, name string) (Result, error) {
	return o.submit(ctx, playCamera(name))
}

func (o *Orchestrator) PlaySlideshow(ctx context.Context, images []string, interval time.Duration) (Result, error) {
	return o.submit(ctx, playSlideshow(slices.Clone(images), interval))
}

func (o *Orchestrator) Announce(ctx context.Context, text string, duration time.Duration) (Result, error) {
	return o.submit(ctx, announce(text, duration))
}

func (o *Orchestrator) Stop(ctx context.Context) (Result, error) {
	return o.submit(ctx, stop())
}

func (o *Orchestrator) Resume(ctx context.Context) (Result, error) {
	return o.submit(ctx, resume())
}

// submit hands cmd to the actor and waits for its outcome. ctx bounds only
// the wait: when it expires the caller gets Timeout while the device call
// keeps running and the lock stays held until its answer or the lock
// timeout.
func (o *Orchestrator) submit(ctx context.Context, cmd command) (Result, error) {
	id := o.newID()
	reply := make(chan outcome, 1)
	detached := context.WithoutCancel(ctx)

	if !o.send(func() { o.begin(detached, id, cmd, reply) }) {
		return Result{RequestID: id}, ErrStopped
	}

	select {
	case out := <-reply:
		return out.res, out.err
	case <-ctx.Done():
		log.Warn().Str("request_id", id).Str("command", cmd.name).Msg("caller stopped waiting for device answer")
		return Result{RequestID: id}, apperr.Wrap(apperr.Timeout, ctx.Err(), cmd.name+" timed out waiting for the device")
	case <-o.done:
		return Result{RequestID: id}, ErrStopped
	}
}

// QUERIES

// Snapshot returns the last published view.
func (o *Orchestrator) Snapshot() model.Snapshot {
	return o.snap.Load().Clone()
}

// InFlight reports whether a mutating command holds the lock.
func (o *Orchestrator) InFlight() bool { return o.inFlight.Load() }

// BeginPoll returns the epoch a poll must carry back to Reconcile. ok is
// false while a command holds the lock, in which case the poll should be
// skipped.
func (o *Orchestrator) BeginPoll() (epoch uint64, ok bool) {
	if o.inFlight.Load() {
		return 0, false
	}
	return o.epoch.Load(), true
}

// Reconcile applies a poll result unless a command started or finished
// since the poll began. It reports whether the result was applied.
func (o *Orchestrator) Reconcile(ctx context.Context, r PollResult) (bool, error) {
	applied := make(chan bool, 1)
	if err := o.call(ctx, func() { applied <- o.reconcile(r) }); err != nil {
		return false, err
	}
	return <-applied, nil
}

// ConnectionLost records a failed poll. The last known state is kept.
func (o *Orchestrator) ConnectionLost(ctx context.Context, cause error) error {
	return o.call(ctx, func() { o.connectionLost(cause) })
}

// UpdateCameras replaces the camera inventory after a registry change.
func (o *Orchestrator) UpdateCameras(ctx context.Context, cameras []model.CameraRecord) error {
	cameras = slices.Clone(cameras)
	return o.call(ctx, func() {
		o.cameras = cameras
		o.publishState("")
	})
}

// ACTOR SIDE

func (o *Orchestrator) begin(ctx context.Context, id string, cmd command, reply chan outcome) {
	started := o.now()

	if o.current != nil {
		err := apperr.New(apperr.Busy, "%s rejected: operation %s in progress", cmd.name, o.current.id)
		o.metrics.BusyRejected()
		log.Info().Str("request_id", id).Str("command", cmd.name).Str("holder", o.current.id).Msg("command rejected, lock held")
		o.reject(id, cmd.name, started, err)
		reply <- outcome{res: Result{RequestID: id}, err: err}
		return
	}

	o.acquire()

	if cmd.validate != nil {
		if err := cmd.validate(); err != nil {
			o.release()
			log.Info().Str("request_id", id).Str("command", cmd.name).Err(err).Msg("command rejected")
			o.reject(id, cmd.name, started, err)
			reply <- outcome{res: Result{RequestID: id}, err: err}
			return
		}
	}

	if cmd.skip != nil && cmd.skip(o.state) {
		o.release()
		o.complete(id, cmd.name, started, nil)
		reply <- outcome{res: Result{RequestID: id, State: o.state.Clone()}}
		return
	}

	p := &pending{id: id, cmd: cmd, reply: reply, started: started}
	p.timer = time.AfterFunc(o.cfg.LockTimeout, func() {
		o.send(func() { o.expire(id) })
	})
	o.current = p

	log.Debug().Str("request_id", id).Str("command", cmd.name).Msg("command sent to device")

	go func() {
		dctx, cancel := context.WithTimeout(ctx, o.cfg.CommandTimeout)
		st, err := cmd.run(dctx, o.player)
		cancel()
		o.send(func() { o.finish(id, st, err) })
	}()
}

// finish applies a device answer.
func (o *Orchestrator) finish(id string, confirmed model.PlaybackState, err error) {
	p := o.current
	if p == nil || p.id != id {
		o.metrics.StaleDiscarded()
		log.Debug().Str("request_id", id).Msg("discarding stale device answer")
		return
	}
	p.timer.Stop()
	o.current = nil

	// The device acted but its state is unknown: record the request as if
	// confirmed and leave the rest to the next poll.
	unconfirmed := errors.Is(err, device.ErrUnconfirmed)
	if unconfirmed {
		log.Warn().Str("request_id", id).Str("command", p.cmd.name).Err(err).Msg("command accepted without a confirmed state")
		confirmed, err = o.state.WithSource(nil), nil
	}

	if err != nil {
		o.release()
		log.Warn().Str("request_id", id).Str("command", p.cmd.name).Err(err).Msg("device rejected command")
		o.reject(id, p.cmd.name, p.started, err)
		p.reply <- outcome{res: Result{RequestID: id}, err: err}
		return
	}

	next := p.cmd.apply(o.state, confirmed)
	if p.cmd.name != CmdAnnounce && !unconfirmed {
		next.LastConfirmedAt = o.now().UTC()
	}
	o.state = next
	o.release()

	log.Info().Str("request_id", id).Str("command", p.cmd.name).Str("mode", string(o.state.Mode())).Msg("command confirmed")
	if p.cmd.name != CmdAnnounce {
		o.publishState(id)
	}
	o.complete(id, p.cmd.name, p.started, nil)
	p.reply <- outcome{res: Result{RequestID: id, State: o.state.Clone()}}
}

// expire is the fallback unlock for a request whose answer never came.
func (o *Orchestrator) expire(id string) {
	p := o.current
	if p == nil || p.id != id {
		return
	}
	o.current = nil
	o.release()

	err := apperr.New(apperr.Timeout, "%s: no answer from the device within %s", p.cmd.name, o.cfg.LockTimeout)
	log.Warn().Str("request_id", id).Str("command", p.cmd.name).Msg("lock released without a device answer")
	o.reject(id, p.cmd.name, p.started, err)
	p.reply <- outcome{res: Result{RequestID: id}, err: err}
}

func (o *Orchestrator) reconcile(r PollResult) bool {
	if o.current != nil || r.Epoch != o.epoch.Load() {
		o.metrics.StaleDiscarded()
		log.Debug().Uint64("epoch", r.Epoch).Msg("discarding poll result overtaken by a command")
		return false
	}

	wasOnline := o.online
	o.state = r.State.Clone()
	o.state.LastConfirmedAt = o.now().UTC()
	o.cameras = slices.Clone(r.Cameras)
	if o.cameras == nil {
		o.cameras = []model.CameraRecord{}
	}
	o.online = true
	o.commit()

	if !wasOnline {
		log.Info().Msg("device connection established")
	}
	o.publishState("")
	return true
}

func (o *Orchestrator) connectionLost(cause error) {
	if o.online {
		log.Warn().Err(cause).Msg("device connection lost")
	}
	o.online = false
	o.commit()

	reason := "status fetch failed"
	if cause != nil {
		reason = apperr.MessageOf(cause)
	}
	o.publish(events.ConnectionLost, events.Disconnect{Reason: reason, LastKnown: o.snap.Load().Clone()})
}

func (o *Orchestrator) acquire() {
	o.inFlight.Store(true)
	o.epoch.Add(1)
}

func (o *Orchestrator) release() {
	o.inFlight.Store(false)
	o.epoch.Add(1)
}

// commit publishes the actor's state for lock-free readers.
func (o *Orchestrator) commit() {
	s := model.Snapshot{State: o.state, Cameras: o.cameras, Connected: o.online}.Clone()
	o.snap.Store(&s)
}

func (o *Orchestrator) publishState(requestID string) {
	o.commit()
	o.publish(events.PlaybackStateChanged, events.StateChange{Snapshot: o.snap.Load().Clone(), RequestID: requestID})
}

func (o *Orchestrator) reject(id, name string, started time.Time, err error) {
	o.publish(events.OperationRejected, events.Rejection{
		RequestID: id,
		Command:   name,
		Kind:      string(apperr.KindOf(err)),
		Reason:    apperr.MessageOf(err),
	})
	o.complete(id, name, started, err)
}

func (o *Orchestrator) complete(id, name string, started time.Time, err error) {
	finished := o.now().UTC()
	result := model.OutcomeOK
	msg := ""
	if err != nil {
		result = string(apperr.KindOf(err))
		msg = apperr.MessageOf(err)
	}
	o.metrics.CommandFinished(name, result, finished.Sub(started))
	o.publish(events.OperationCompleted, events.Completion{Record: model.OperationRecord{
		RequestID:  id,
		Command:    name,
		Outcome:    result,
		Message:    msg,
		StartedAt:  started.UTC(),
		FinishedAt: finished,
	}})
}

func (o *Orchestrator) publish(t events.Type, data any) {
	if o.pub != nil {
		o.pub.Publish(t, data)
	}
}
