package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/Nixie-Tech-LLC/ekran/internal/apperr"
	"github.com/Nixie-Tech-LLC/ekran/internal/device"
	"github.com/Nixie-Tech-LLC/ekran/internal/model"
)

// DefaultAnnouncementDuration applies when Announce is given no duration.
const DefaultAnnouncementDuration = 10 * time.Second

// Command names as they appear in logs, metrics and the journal.
const (
	CmdPlayVideo     = "play_video"
	CmdPlayCamera    = "play_camera"
	CmdPlaySlideshow = "play_slideshow"
	CmdAnnounce      = "announce"
	CmdStop          = "stop"
	CmdResume        = "resume"
)

// command is one mutating request. validate runs after the lock is taken,
// run executes on its own goroutine and apply folds the device answer into
// the current state on the actor.
type command struct {
	name     string
	validate func() error
	// skip reports that the command has nothing to do in the current state.
	skip  func(cur model.PlaybackState) bool
	run   func(ctx context.Context, p device.Player) (model.PlaybackState, error)
	apply func(cur, confirmed model.PlaybackState) model.PlaybackState
}

func playVideo(selection []string) command {
	return command{
		name: CmdPlayVideo,
		validate: func() error {
			for _, v := range selection {
				if strings.TrimSpace(v) == "" {
					return apperr.New(apperr.InvalidArgument, "video selection contains a blank name")
				}
			}
			return nil
		},
		run: func(ctx context.Context, p device.Player) (model.PlaybackState, error) {
			return p.PlayVideo(ctx, selection)
		},
		apply: manual(model.VideoSource{Selection: selection}),
	}
}

func playCamera(name string) command {
	return command{
		name: CmdPlayCamera,
		validate: func() error {
			if strings.TrimSpace(name) == "" {
				return apperr.New(apperr.InvalidArgument, "camera name is required")
			}
			return nil
		},
		run: func(ctx context.Context, p device.Player) (model.PlaybackState, error) {
			return p.PlayCamera(ctx, name)
		},
		apply: manual(model.CameraSource{Name: name}),
	}
}

func playSlideshow(images []string, interval time.Duration) command {
	return command{
		name: CmdPlaySlideshow,
		validate: func() error {
			if len(images) == 0 {
				return apperr.New(apperr.InvalidArgument, "slideshow needs at least one image")
			}
			for _, img := range images {
				if strings.TrimSpace(img) == "" {
					return apperr.New(apperr.InvalidArgument, "slideshow contains a blank image name")
				}
			}
			if interval <= 0 {
				return apperr.New(apperr.InvalidArgument, "slideshow interval must be positive")
			}
			if interval > model.MaxDuration {
				return apperr.New(apperr.InvalidArgument, "slideshow interval must not exceed %s", model.MaxDuration)
			}
			return nil
		},
		run: func(ctx context.Context, p device.Player) (model.PlaybackState, error) {
			return p.PlaySlideshow(ctx, images, interval)
		},
		apply: manual(model.SlideshowSource{Images: images, Interval: interval}),
	}
}

// announce overlays text without touching mode, source or the paused flag.
func announce(text string, duration time.Duration) command {
	if duration <= 0 {
		duration = DefaultAnnouncementDuration
	}
	return command{
		name: CmdAnnounce,
		validate: func() error {
			if strings.TrimSpace(text) == "" {
				return apperr.New(apperr.InvalidArgument, "announcement text is required")
			}
			if duration > model.MaxDuration {
				return apperr.New(apperr.InvalidArgument, "announcement duration must not exceed %s", model.MaxDuration)
			}
			return nil
		},
		run: func(ctx context.Context, p device.Player) (model.PlaybackState, error) {
			return model.PlaybackState{}, p.Announce(ctx, text, duration)
		},
		apply: func(cur, _ model.PlaybackState) model.PlaybackState { return cur },
	}
}

func stop() command {
	return command{
		name: CmdStop,
		run: func(ctx context.Context, p device.Player) (model.PlaybackState, error) {
			return p.Stop(ctx)
		},
		apply: func(cur, _ model.PlaybackState) model.PlaybackState {
			st := cur.WithSource(nil)
			st.AutomationPaused = true
			return st
		},
	}
}

// resume hands playback back to the device rotation. The mode stays as it
// is until a poll reports otherwise.
func resume() command {
	return command{
		name: CmdResume,
		skip: func(cur model.PlaybackState) bool { return !cur.AutomationPaused },
		run: func(ctx context.Context, p device.Player) (model.PlaybackState, error) {
			return p.Resume(ctx)
		},
		apply: func(cur, _ model.PlaybackState) model.PlaybackState {
			st := cur.Clone()
			st.AutomationPaused = false
			return st
		},
	}
}

// manual applies a successful manual play. The device-confirmed source wins
// unless the device reported a different mode than the one requested, in
// which case the request is recorded and the next poll reconciles it.
func manual(requested model.Source) func(cur, confirmed model.PlaybackState) model.PlaybackState {
	return func(_, confirmed model.PlaybackState) model.PlaybackState {
		st := confirmed.Clone()
		if st.Mode() != requested.Mode() {
			st = st.WithSource(requested)
		}
		st.AutomationPaused = true
		return st
	}
}
