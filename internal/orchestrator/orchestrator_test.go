package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/ekran/internal/apperr"
	"github.com/Nixie-Tech-LLC/ekran/internal/device"
	"github.com/Nixie-Tech-LLC/ekran/internal/device/devicetest"
	"github.com/Nixie-Tech-LLC/ekran/internal/events"
	"github.com/Nixie-Tech-LLC/ekran/internal/model"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(t events.Type, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events.Event{Type: t, Data: data})
}

func (r *recorder) ofType(t events.Type) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func start(t *testing.T, fake *devicetest.Fake, cfg Config) (*Orchestrator, *recorder) {
	t.Helper()
	rec := &recorder{}
	o := New(fake, rec, nil, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go o.Run(ctx)
	return o, rec
}

// holdNextCall starts cmd in the background against a gated fake and waits
// until it holds the lock.
func holdNextCall(t *testing.T, o *Orchestrator, cmd func(context.Context) (Result, error)) chan error {
	t.Helper()
	errc := make(chan error, 1)
	go func() {
		_, err := cmd(context.Background())
		errc <- err
	}()
	require.Eventually(t, o.InFlight, time.Second, time.Millisecond)
	return errc
}

func TestSecondCommandWhileInFlightIsBusy(t *testing.T) {
	fake := devicetest.New()
	fake.Gate = make(chan struct{})
	o, rec := start(t, fake, Config{})

	before := o.Snapshot()
	first := holdNextCall(t, o, func(ctx context.Context) (Result, error) {
		return o.PlayVideo(ctx, []string{"promo.mp4"})
	})

	_, err := o.PlayCamera(context.Background(), "lobby")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrBusy)
	assert.Equal(t, before, o.Snapshot())
	assert.Equal(t, 0, fake.Calls("PlayCamera"))

	rejected := rec.ofType(events.OperationRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, string(apperr.Busy), rejected[0].Data.(events.Rejection).Kind)

	fake.Gate <- struct{}{}
	require.NoError(t, <-first)
	assert.Equal(t, model.ModeVideo, o.Snapshot().State.Mode())
}

func TestAtMostOneMutationOnTheWire(t *testing.T) {
	fake := devicetest.New()
	fake.Gate = make(chan struct{})
	o, _ := start(t, fake, Config{})

	stopFeed := make(chan struct{})
	go func() {
		for {
			select {
			case fake.Gate <- struct{}{}:
			case <-stopFeed:
				return
			}
			time.Sleep(2 * time.Millisecond)
		}
	}()
	defer close(stopFeed)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, busy := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = o.PlayVideo(context.Background(), nil)
			} else {
				_, err = o.Stop(context.Background())
			}
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperr.ErrBusy):
				busy++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, ok+busy)
	assert.GreaterOrEqual(t, ok, 1)
	assert.LessOrEqual(t, fake.MaxConcurrentMutations(), 1)
}

func TestStopIsIdempotentFromIdle(t *testing.T) {
	fake := devicetest.New()
	o, _ := start(t, fake, Config{})

	for i := 0; i < 2; i++ {
		res, err := o.Stop(context.Background())
		require.NoError(t, err)
		assert.Equal(t, model.ModeIdle, res.State.Mode())
		assert.True(t, res.State.AutomationPaused)
	}
	assert.Equal(t, 2, fake.Calls("Stop"))
}

func TestInvalidSlideshowNeverReachesDevice(t *testing.T) {
	fake := devicetest.New()
	o, rec := start(t, fake, Config{})

	_, err := o.PlaySlideshow(context.Background(), nil, 5*time.Second)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = o.PlaySlideshow(context.Background(), []string{"a.jpg"}, 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	assert.Equal(t, 0, fake.Calls("PlaySlideshow"))
	assert.False(t, o.InFlight())
	assert.Len(t, rec.ofType(events.OperationRejected), 2)
}

func TestValidationRejectsBlankArguments(t *testing.T) {
	fake := devicetest.New()
	o, _ := start(t, fake, Config{})

	_, err := o.PlayCamera(context.Background(), "  ")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = o.PlayVideo(context.Background(), []string{"ok.mp4", ""})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = o.Announce(context.Background(), "", time.Second)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	assert.Equal(t, 0, fake.Calls("PlayCamera")+fake.Calls("PlayVideo")+fake.Calls("Announce"))
}

func TestManualPlayPausesAutomationAndResumeKeepsMode(t *testing.T) {
	fake := devicetest.New()
	o, rec := start(t, fake, Config{})

	res, err := o.PlayVideo(context.Background(), []string{"promo.mp4"})
	require.NoError(t, err)
	assert.True(t, res.State.AutomationPaused)
	assert.Equal(t, model.ModeVideo, res.State.Mode())
	assert.False(t, res.State.LastConfirmedAt.IsZero())
	assert.NotEmpty(t, res.RequestID)

	res, err = o.Resume(context.Background())
	require.NoError(t, err)
	assert.False(t, res.State.AutomationPaused)
	assert.Equal(t, model.ModeVideo, res.State.Mode())
	assert.Equal(t, []string{"promo.mp4"}, res.State.Source.(model.VideoSource).Selection)

	changes := rec.ofType(events.PlaybackStateChanged)
	require.Len(t, changes, 2)
	assert.Equal(t, res.RequestID, changes[1].Data.(events.StateChange).RequestID)
}

func TestResumeWhenNotPausedSkipsDevice(t *testing.T) {
	fake := devicetest.New()
	o, _ := start(t, fake, Config{})

	res, err := o.Resume(context.Background())
	require.NoError(t, err)
	assert.False(t, res.State.AutomationPaused)
	assert.Equal(t, 0, fake.Calls("Resume"))
}

func TestAnnounceLeavesStateAlone(t *testing.T) {
	fake := devicetest.New()
	o, rec := start(t, fake, Config{})

	_, err := fake.RegisterCamera(context.Background(), "lobby", "rtsp://cam")
	require.NoError(t, err)
	_, err = o.PlayCamera(context.Background(), "lobby")
	require.NoError(t, err)
	before := o.Snapshot()

	_, err = o.Announce(context.Background(), "Closing in 10 minutes", 0)
	require.NoError(t, err)
	assert.Equal(t, before, o.Snapshot())
	assert.Equal(t, 1, fake.Calls("Announce"))
	assert.Len(t, rec.ofType(events.PlaybackStateChanged), 1)
}

func TestDeviceFailureLeavesStateAndReleasesLock(t *testing.T) {
	fake := devicetest.New()
	o, rec := start(t, fake, Config{})

	_, err := o.PlayCamera(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	assert.Equal(t, model.ModeIdle, o.Snapshot().State.Mode())
	assert.False(t, o.InFlight())

	fake.Fail("Stop", apperr.New(apperr.DeviceUnreachable, "connection refused"))
	_, err = o.Stop(context.Background())
	assert.ErrorIs(t, err, apperr.ErrDeviceUnreachable)
	assert.False(t, o.InFlight())

	// still usable
	fake.Fail("Stop", nil)
	_, err = o.Stop(context.Background())
	assert.NoError(t, err)

	completed := rec.ofType(events.OperationCompleted)
	require.Len(t, completed, 3)
	assert.Equal(t, string(apperr.NotFound), completed[0].Data.(events.Completion).Record.Outcome)
	assert.Equal(t, model.OutcomeOK, completed[2].Data.(events.Completion).Record.Outcome)
}

func TestCallerTimeoutKeepsLockUntilAnswer(t *testing.T) {
	fake := devicetest.New()
	fake.Gate = make(chan struct{})
	o, _ := start(t, fake, Config{CommandTimeout: time.Second, LockTimeout: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res, err := o.PlayVideo(ctx, nil)
	assert.ErrorIs(t, err, apperr.ErrTimeout)
	assert.NotEmpty(t, res.RequestID)
	require.Eventually(t, o.InFlight, time.Second, time.Millisecond)

	fake.Gate <- struct{}{}
	require.Eventually(t, func() bool { return !o.InFlight() }, time.Second, time.Millisecond)
	assert.Equal(t, model.ModeVideo, o.Snapshot().State.Mode())
}

func TestLockTimeoutDiscardsLateAnswer(t *testing.T) {
	fake := devicetest.New()
	fake.Gate = make(chan struct{})
	o, rec := start(t, fake, Config{CommandTimeout: 5 * time.Second, LockTimeout: 30 * time.Millisecond})

	_, err := o.PlayVideo(context.Background(), []string{"late.mp4"})
	assert.ErrorIs(t, err, apperr.ErrTimeout)
	assert.False(t, o.InFlight())

	fake.Gate <- struct{}{}
	require.Eventually(t, func() bool { return fake.State().Mode() == model.ModeVideo }, time.Second, time.Millisecond)
	require.Never(t, func() bool { return o.Snapshot().State.Mode() == model.ModeVideo }, 100*time.Millisecond, 5*time.Millisecond)
	assert.Empty(t, rec.ofType(events.PlaybackStateChanged))
}

func TestReconcileAppliesFreshPoll(t *testing.T) {
	fake := devicetest.New()
	o, rec := start(t, fake, Config{})

	epoch, ok := o.BeginPoll()
	require.True(t, ok)
	applied, err := o.Reconcile(context.Background(), PollResult{
		Epoch:   epoch,
		State:   model.PlaybackState{Source: model.CameraSource{Name: "door"}},
		Cameras: []model.CameraRecord{{Name: "door", URL: "rtsp://door"}},
	})
	require.NoError(t, err)
	assert.True(t, applied)

	snap := o.Snapshot()
	assert.True(t, snap.Connected)
	assert.Equal(t, model.ModeCamera, snap.State.Mode())
	assert.Len(t, snap.Cameras, 1)
	assert.Len(t, rec.ofType(events.PlaybackStateChanged), 1)
}

func TestReconcileDiscardsPollOvertakenByCommand(t *testing.T) {
	fake := devicetest.New()
	o, _ := start(t, fake, Config{})

	epoch, ok := o.BeginPoll()
	require.True(t, ok)

	_, err := o.PlayVideo(context.Background(), []string{"new.mp4"})
	require.NoError(t, err)

	applied, err := o.Reconcile(context.Background(), PollResult{Epoch: epoch})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, model.ModeVideo, o.Snapshot().State.Mode())
}

func TestPollSkippedWhileInFlight(t *testing.T) {
	fake := devicetest.New()
	fake.Gate = make(chan struct{})
	o, _ := start(t, fake, Config{})

	done := holdNextCall(t, o, o.Stop)
	_, ok := o.BeginPoll()
	assert.False(t, ok)

	fake.Gate <- struct{}{}
	require.NoError(t, <-done)
}

func TestConnectionLostKeepsLastKnownState(t *testing.T) {
	fake := devicetest.New()
	o, rec := start(t, fake, Config{})

	epoch, _ := o.BeginPoll()
	_, err := o.Reconcile(context.Background(), PollResult{Epoch: epoch, State: model.PlaybackState{Source: model.VideoSource{}}})
	require.NoError(t, err)

	require.NoError(t, o.ConnectionLost(context.Background(), apperr.New(apperr.DeviceUnreachable, "refused")))

	snap := o.Snapshot()
	assert.False(t, snap.Connected)
	assert.Equal(t, model.ModeVideo, snap.State.Mode())

	lost := rec.ofType(events.ConnectionLost)
	require.Len(t, lost, 1)
	assert.Equal(t, "refused", lost[0].Data.(events.Disconnect).Reason)
}

func TestUpdateCamerasPublishesSnapshot(t *testing.T) {
	fake := devicetest.New()
	o, rec := start(t, fake, Config{})

	cams := []model.CameraRecord{{Name: "a", URL: "rtsp://a"}}
	require.NoError(t, o.UpdateCameras(context.Background(), cams))
	cams[0].Name = "mutated"

	assert.Equal(t, "a", o.Snapshot().Cameras[0].Name)
	assert.Len(t, rec.ofType(events.PlaybackStateChanged), 1)
}

func TestCommandsFailAfterRunExits(t *testing.T) {
	o := New(devicetest.New(), nil, nil, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		o.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	_, err := o.Stop(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}

func TestUnconfirmedCommandRecordsRequestedState(t *testing.T) {
	fake := devicetest.New()
	o, rec := start(t, fake, Config{})

	_, err := o.PlayVideo(context.Background(), []string{"a.mp4"})
	require.NoError(t, err)
	confirmedAt := o.Snapshot().State.LastConfirmedAt

	fake.Fail("PlayVideo", fmt.Errorf("play video: %w: %w", device.ErrUnconfirmed, apperr.New(apperr.DeviceUnreachable, "status read timed out")))
	res, err := o.PlayVideo(context.Background(), []string{"b.mp4"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b.mp4"}, res.State.Source.(model.VideoSource).Selection)
	assert.True(t, res.State.AutomationPaused)
	assert.Equal(t, confirmedAt, res.State.LastConfirmedAt, "state is not confirmed by the device")
	assert.False(t, o.InFlight())

	completed := rec.ofType(events.OperationCompleted)
	require.Len(t, completed, 2)
	assert.Equal(t, model.OutcomeOK, completed[1].Data.(events.Completion).Record.Outcome)
}

func TestOversizedDurationsAreInvalid(t *testing.T) {
	fake := devicetest.New()
	o, rec := start(t, fake, Config{})

	_, err := o.PlaySlideshow(context.Background(), []string{"a.jpg"}, model.Seconds(1e300))
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = o.Announce(context.Background(), "hello", model.Seconds(1e300))
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = o.PlaySlideshow(context.Background(), []string{"a.jpg"}, model.MaxDuration)
	assert.NoError(t, err)

	assert.Equal(t, 0, fake.Calls("Announce"))
	assert.Len(t, rec.ofType(events.OperationRejected), 2)
}
