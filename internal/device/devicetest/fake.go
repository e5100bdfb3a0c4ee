// Package devicetest provides an in-memory device for tests.
package devicetest

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Nixie-Tech-LLC/ekran/internal/apperr"
	"github.com/Nixie-Tech-LLC/ekran/internal/device"
	"github.com/Nixie-Tech-LLC/ekran/internal/model"
)

// Fake behaves like a cooperative device. Errors can be injected per
// operation and mutating calls can be held open with Gate.
type Fake struct {
	mu         sync.Mutex
	state      model.PlaybackState
	cameras    []model.CameraRecord
	videos     []string
	images     []string
	candidates []model.DiscoveredCandidate
	info       model.SystemInfo
	errs       map[string]error
	calls      map[string]int

	// Gate, when non-nil, blocks every mutating call until a value is
	// received or the channel is closed.
	Gate chan struct{}
	// ProbeGate does the same for DiscoverCameras.
	ProbeGate chan struct{}
	// RegisterGate does the same for RegisterCamera.
	RegisterGate chan struct{}

	active    atomic.Int32
	maxActive atomic.Int32
}

var _ device.Gateway = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		cameras: []model.CameraRecord{},
		videos:  []string{},
		images:  []string{},
		errs:    map[string]error{},
		calls:   map[string]int{},
	}
}

// Fail makes op return err until cleared with Fail(op, nil).
func (f *Fake) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

// Calls reports how many times op reached the device.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// MaxConcurrentMutations is the highest number of mutating calls that were
// ever in progress at once.
func (f *Fake) MaxConcurrentMutations() int { return int(f.maxActive.Load()) }

func (f *Fake) SetState(st model.PlaybackState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = st.Clone()
}

func (f *Fake) State() model.PlaybackState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Clone()
}

func (f *Fake) SetCandidates(c []model.DiscoveredCandidate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates = slices.Clone(c)
}

func (f *Fake) SetSystemInfo(info model.SystemInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.info = info
}

func (f *Fake) SetMedia(videos, images []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videos = slices.Clone(videos)
	f.images = slices.Clone(images)
}

// enter records a call and returns its injected error, if any.
func (f *Fake) enter(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.errs[op]
}

// mutate wraps a state-changing call so concurrency can be observed and the
// call can be held open.
func (f *Fake) mutate(ctx context.Context, op string, apply func() error) error {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		peak := f.maxActive.Load()
		if n <= peak || f.maxActive.CompareAndSwap(peak, n) {
			break
		}
	}

	if err := f.enter(op); err != nil {
		return err
	}

	if f.Gate != nil {
		select {
		case <-f.Gate:
		case <-ctx.Done():
			return apperr.Wrap(apperr.DeviceUnreachable, ctx.Err(), op+": device unreachable")
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return apply()
}

func (f *Fake) GetStatus(ctx context.Context) (model.PlaybackState, error) {
	if err := f.enter("GetStatus"); err != nil {
		return model.PlaybackState{}, err
	}
	return f.State(), nil
}

func (f *Fake) GetCameras(ctx context.Context) ([]model.CameraRecord, error) {
	if err := f.enter("GetCameras"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.cameras), nil
}

func (f *Fake) GetVideos(ctx context.Context) ([]string, error) {
	if err := f.enter("GetVideos"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.videos), nil
}

func (f *Fake) GetImages(ctx context.Context) ([]string, error) {
	if err := f.enter("GetImages"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.images), nil
}

func (f *Fake) GetSystemInfo(ctx context.Context) (model.SystemInfo, error) {
	if err := f.enter("GetSystemInfo"); err != nil {
		return model.SystemInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info, nil
}

func (f *Fake) play(ctx context.Context, op string, src model.Source) (model.PlaybackState, error) {
	var out model.PlaybackState
	err := f.mutate(ctx, op, func() error {
		f.state = f.state.WithSource(src)
		f.state.AutomationPaused = true
		out = f.state.Clone()
		return nil
	})
	return out, err
}

func (f *Fake) PlayVideo(ctx context.Context, selection []string) (model.PlaybackState, error) {
	return f.play(ctx, "PlayVideo", model.VideoSource{Selection: selection})
}

func (f *Fake) PlayCamera(ctx context.Context, name string) (model.PlaybackState, error) {
	var out model.PlaybackState
	err := f.mutate(ctx, "PlayCamera", func() error {
		if !slices.ContainsFunc(f.cameras, func(c model.CameraRecord) bool { return c.Name == name }) {
			return apperr.New(apperr.NotFound, "camera %q not found", name)
		}
		f.state = f.state.WithSource(model.CameraSource{Name: name})
		f.state.AutomationPaused = true
		out = f.state.Clone()
		return nil
	})
	return out, err
}

func (f *Fake) PlaySlideshow(ctx context.Context, images []string, interval time.Duration) (model.PlaybackState, error) {
	return f.play(ctx, "PlaySlideshow", model.SlideshowSource{Images: images, Interval: interval})
}

func (f *Fake) Announce(ctx context.Context, text string, duration time.Duration) error {
	return f.mutate(ctx, "Announce", func() error { return nil })
}

func (f *Fake) Stop(ctx context.Context) (model.PlaybackState, error) {
	return f.play(ctx, "Stop", nil)
}

func (f *Fake) Resume(ctx context.Context) (model.PlaybackState, error) {
	var out model.PlaybackState
	err := f.mutate(ctx, "Resume", func() error {
		f.state.AutomationPaused = false
		out = f.state.Clone()
		return nil
	})
	return out, err
}

func (f *Fake) RegisterCamera(ctx context.Context, name, url string) (model.CameraRecord, error) {
	if err := f.enter("RegisterCamera"); err != nil {
		return model.CameraRecord{}, err
	}
	if f.RegisterGate != nil {
		select {
		case <-f.RegisterGate:
		case <-ctx.Done():
			return model.CameraRecord{}, apperr.Wrap(apperr.DeviceUnreachable, ctx.Err(), "register camera: device unreachable")
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if slices.ContainsFunc(f.cameras, func(c model.CameraRecord) bool { return c.Name == name }) {
		return model.CameraRecord{}, apperr.New(apperr.Conflict, "camera %q already exists", name)
	}
	rec := model.CameraRecord{Name: name, URL: url}
	f.cameras = append(f.cameras, rec)
	return rec, nil
}

func (f *Fake) DeleteCamera(ctx context.Context, name string) error {
	if err := f.enter("DeleteCamera"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := slices.IndexFunc(f.cameras, func(c model.CameraRecord) bool { return c.Name == name })
	if i < 0 {
		return apperr.New(apperr.NotFound, "camera %q not found", name)
	}
	f.cameras = slices.Delete(f.cameras, i, i+1)
	return nil
}

func (f *Fake) DiscoverCameras(ctx context.Context) ([]model.DiscoveredCandidate, error) {
	if err := f.enter("DiscoverCameras"); err != nil {
		return nil, err
	}
	if f.ProbeGate != nil {
		select {
		case <-f.ProbeGate:
		case <-ctx.Done():
			return nil, apperr.Wrap(apperr.DeviceUnreachable, ctx.Err(), "discover cameras: device unreachable")
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.candidates), nil
}

func (f *Fake) DeleteVideo(ctx context.Context, name string) error {
	return f.deleteFile("DeleteVideo", &f.videos, name)
}

func (f *Fake) DeleteImage(ctx context.Context, name string) error {
	return f.deleteFile("DeleteImage", &f.images, name)
}

func (f *Fake) deleteFile(op string, list *[]string, name string) error {
	if err := f.enter(op); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := slices.Index(*list, name)
	if i < 0 {
		return apperr.New(apperr.NotFound, "%s not found", name)
	}
	*list = slices.Delete(*list, i, i+1)
	return nil
}

func (f *Fake) UploadVideo(ctx context.Context, files []device.File) error {
	return f.upload("UploadVideo", &f.videos, files)
}

func (f *Fake) UploadImage(ctx context.Context, files []device.File) error {
	return f.upload("UploadImage", &f.images, files)
}

func (f *Fake) upload(op string, list *[]string, files []device.File) error {
	if err := f.enter(op); err != nil {
		return err
	}
	if len(files) == 0 {
		return apperr.New(apperr.InvalidArgument, "no files")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, file := range files {
		if !slices.Contains(*list, file.Name) {
			*list = append(*list, file.Name)
		}
	}
	return nil
}
