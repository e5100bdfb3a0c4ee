package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/ekran/internal/apperr"
	"github.com/Nixie-Tech-LLC/ekran/internal/device/devicetest"
	"github.com/Nixie-Tech-LLC/ekran/internal/events"
	"github.com/Nixie-Tech-LLC/ekran/internal/model"
	"github.com/Nixie-Tech-LLC/ekran/internal/orchestrator"
	"github.com/Nixie-Tech-LLC/ekran/internal/poller"
)

func startController(t *testing.T, fake *devicetest.Fake) (*orchestrator.Orchestrator, *poller.Poller) {
	t.Helper()
	hub := events.NewHub()
	o := orchestrator.New(fake, hub, nil, orchestrator.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go o.Run(ctx)
	return o, poller.New(fake, o, hub, nil, time.Hour)
}

func TestStartupPlaysDefaultAndResumesWhenIdle(t *testing.T) {
	fake := devicetest.New()
	o, p := startController(t, fake)

	runStartupSequence(context.Background(), 0, p, o)

	assert.Equal(t, 1, fake.Calls("PlayVideo"))
	assert.Equal(t, 1, fake.Calls("Resume"))
	st := o.Snapshot().State
	assert.Equal(t, model.ModeVideo, st.Mode())
	assert.False(t, st.AutomationPaused)
}

func TestStartupLeavesBusyDeviceAlone(t *testing.T) {
	fake := devicetest.New()
	playing, err := model.NewState(model.ModeCamera, model.CameraSource{Name: "door"})
	require.NoError(t, err)
	fake.SetState(playing)
	o, p := startController(t, fake)

	runStartupSequence(context.Background(), 0, p, o)

	assert.Zero(t, fake.Calls("PlayVideo"))
	assert.Equal(t, model.ModeCamera, o.Snapshot().State.Mode())
}

func TestStartupSkipsWhenDeviceUnreachable(t *testing.T) {
	fake := devicetest.New()
	fake.Fail("GetStatus", apperr.Wrap(apperr.DeviceUnreachable, errors.New("refused"), "status"))
	o, p := startController(t, fake)

	runStartupSequence(context.Background(), 0, p, o)

	assert.Zero(t, fake.Calls("PlayVideo"))
	assert.False(t, o.Snapshot().Connected)
}

func TestStartupHonoursCancellation(t *testing.T) {
	fake := devicetest.New()
	o, p := startController(t, fake)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runStartupSequence(ctx, time.Hour, p, o)
	assert.Zero(t, fake.Calls("GetStatus"))
}
