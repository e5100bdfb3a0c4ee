package discovery

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ekran/internal/apperr"
	"github.com/Nixie-Tech-LLC/ekran/internal/device"
	"github.com/Nixie-Tech-LLC/ekran/internal/events"
	"github.com/Nixie-Tech-LLC/ekran/internal/model"
)

// CameraSink receives the camera inventory after every registry change.
type CameraSink interface {
	UpdateCameras(ctx context.Context, cameras []model.CameraRecord) error
}

// Publisher receives discovery_state_changed events.
type Publisher interface {
	Publish(t events.Type, data any)
}

// Workflow drives sessions against the device registry. Only one network
// scan runs at a time across all sessions. Every read-modify-write of a
// session holds that session's lock; the network probe itself does not.
type Workflow struct {
	registry device.CameraRegistry
	store    SessionStore
	sink     CameraSink
	pub      Publisher

	scanning atomic.Bool

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	now   func() time.Time
	newID func() string
}

func NewWorkflow(registry device.CameraRegistry, store SessionStore, sink CameraSink, pub Publisher) *Workflow {
	return &Workflow{
		registry: registry,
		store:    store,
		sink:     sink,
		pub:      pub,
		locks:    make(map[string]*sync.Mutex),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Open creates a new idle session.
func (w *Workflow) Open(ctx context.Context) (Session, error) {
	s := NewSession(w.newID(), w.now())
	if err := w.save(ctx, s); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (w *Workflow) Session(ctx context.Context, id string) (Session, error) {
	return w.store.Get(ctx, id)
}

// StartScan probes the network for cameras. The probe is bounded by the
// device's own timeout and is not cancelled if the caller goes away. A
// session cancelled or closed while the probe runs keeps its new state and
// the result is discarded with a Conflict.
func (w *Workflow) StartScan(ctx context.Context, id string) (Session, error) {
	s, err := w.beginScan(ctx, id)
	if err != nil {
		return s, err
	}
	defer w.scanning.Store(false)

	log.Info().Str("session_id", id).Msg("camera scan started")
	found, scanErr := w.registry.DiscoverCameras(context.WithoutCancel(ctx))

	ctx = context.WithoutCancel(ctx)
	unlock := w.lock(id)
	defer unlock()

	cur, err := w.store.Get(ctx, id)
	if err != nil {
		log.Info().Str("session_id", id).Msg("session closed during scan, result dropped")
		return Session{}, err
	}
	if cur.Phase != PhaseScanning {
		log.Info().Str("session_id", id).Str("phase", string(cur.Phase)).Msg("session changed during scan, result dropped")
		return cur, apperr.New(apperr.Conflict, "discovery session was cancelled during the scan")
	}

	if scanErr != nil {
		log.Warn().Str("session_id", id).Err(scanErr).Msg("camera scan failed")
		cur = cur.ScanFailed(scanErr, w.now())
		if serr := w.save(ctx, cur); serr != nil {
			log.Error().Err(serr).Str("session_id", id).Msg("failed to save discovery session")
		}
		return cur, scanErr
	}

	cur = cur.ScanFinished(found, w.now())
	log.Info().Str("session_id", id).Int("found", len(cur.Candidates)).Msg("camera scan finished")
	if err := w.save(ctx, cur); err != nil {
		w.abandonScan(ctx, cur, err)
		return Session{}, err
	}
	return cur, nil
}

// beginScan claims the device-wide scan slot and moves the session to
// scanning. On success the caller owns the slot and must release it.
func (w *Workflow) beginScan(ctx context.Context, id string) (Session, error) {
	unlock := w.lock(id)
	defer unlock()

	s, err := w.store.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !w.scanning.CompareAndSwap(false, true) {
		return s, apperr.New(apperr.Busy, "another camera scan is running")
	}

	// No scan is running, so a scanning phase was left behind by a failed save.
	if s.Phase == PhaseScanning {
		log.Warn().Str("session_id", id).Msg("taking over stale scanning session")
		s = s.Cancel(w.now())
	}

	s, err = s.BeginScan(w.now())
	if err == nil {
		err = w.save(ctx, s)
	}
	if err != nil {
		w.scanning.Store(false)
		return Session{}, err
	}
	return s, nil
}

// abandonScan makes a best-effort attempt to leave scanning after the result
// could not be stored.
func (w *Workflow) abandonScan(ctx context.Context, s Session, cause error) {
	log.Error().Err(cause).Str("session_id", s.ID).Msg("failed to save scan result")
	s = s.ScanFailed(cause, w.now())
	if err := w.save(ctx, s); err != nil {
		log.Error().Err(err).Str("session_id", s.ID).Msg("failed to save discovery session")
	}
}

// SelectForPairing moves the session to pairing with the chosen candidate.
func (w *Workflow) SelectForPairing(ctx context.Context, id, address string, port int) (Session, error) {
	unlock := w.lock(id)
	defer unlock()

	s, err := w.store.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	s, err = s.Select(address, port, w.now())
	if err != nil {
		return s, err
	}
	if err := w.save(ctx, s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// CompletePairing registers the pending candidate under name with the given
// credentials. A blank name falls back to the suggested one. On failure the
// session stays in pairing. Concurrent calls for one session are serialized.
func (w *Workflow) CompletePairing(ctx context.Context, id, name, username, password string) (model.CameraRecord, Session, error) {
	unlock := w.lock(id)
	defer unlock()

	s, err := w.store.Get(ctx, id)
	if err != nil {
		return model.CameraRecord{}, Session{}, err
	}
	if s.Phase != PhasePairing || s.Pending == nil {
		return model.CameraRecord{}, s, apperr.New(apperr.InvalidArgument, "no candidate selected for pairing (session is %s)", s.Phase)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = s.SuggestedName
	}
	pairing := model.CredentialPairing{Candidate: *s.Pending, Name: name, Username: username, Password: password}

	rec, err := w.registry.RegisterCamera(ctx, pairing.Name, ConnectionURL(pairing.Candidate, pairing.Username, pairing.Password))
	if err != nil {
		s = s.PairingFailed(err, w.now())
		if serr := w.save(ctx, s); serr != nil {
			log.Error().Err(serr).Str("session_id", id).Msg("failed to save discovery session")
		}
		return model.CameraRecord{}, s, err
	}

	log.Info().Str("session_id", id).Str("camera", rec.Name).Msg("discovered camera registered")
	s = s.Paired(w.now())
	if err := w.save(ctx, s); err != nil {
		return rec, Session{}, err
	}
	w.refresh(ctx)
	return rec, s, nil
}

// Cancel returns the session to idle.
func (w *Workflow) Cancel(ctx context.Context, id string) (Session, error) {
	unlock := w.lock(id)
	defer unlock()
	return w.cancel(ctx, id)
}

// Close cancels and forgets the session.
func (w *Workflow) Close(ctx context.Context, id string) error {
	unlock := w.lock(id)
	defer unlock()

	if _, err := w.cancel(ctx, id); err != nil {
		return err
	}
	if err := w.store.Delete(ctx, id); err != nil {
		return err
	}
	w.forget(id)
	return nil
}

func (w *Workflow) cancel(ctx context.Context, id string) (Session, error) {
	s, err := w.store.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	s = s.Cancel(w.now())
	if err := w.save(ctx, s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// lock acquires the per-session mutex and returns its release.
func (w *Workflow) lock(id string) func() {
	w.locksMu.Lock()
	mu, ok := w.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		w.locks[id] = mu
	}
	w.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (w *Workflow) forget(id string) {
	w.locksMu.Lock()
	delete(w.locks, id)
	w.locksMu.Unlock()
}

// CAMERA REGISTRY

func (w *Workflow) Cameras(ctx context.Context) ([]model.CameraRecord, error) {
	return w.registry.GetCameras(ctx)
}

// AddCamera registers a camera by URL without a scan. Names are unique; a
// duplicate is a Conflict reported by the device.
func (w *Workflow) AddCamera(ctx context.Context, name, url string) (model.CameraRecord, error) {
	name = strings.TrimSpace(name)
	url = strings.TrimSpace(url)
	if name == "" || url == "" {
		return model.CameraRecord{}, apperr.New(apperr.InvalidArgument, "camera name and url are required")
	}

	rec, err := w.registry.RegisterCamera(ctx, name, url)
	if err != nil {
		return model.CameraRecord{}, err
	}
	log.Info().Str("camera", rec.Name).Msg("camera registered")
	w.refresh(ctx)
	return rec, nil
}

func (w *Workflow) RemoveCamera(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.New(apperr.InvalidArgument, "camera name is required")
	}
	if err := w.registry.DeleteCamera(ctx, name); err != nil {
		return err
	}
	log.Info().Str("camera", name).Msg("camera removed")
	w.refresh(ctx)
	return nil
}

// save persists s and announces the transition.
func (w *Workflow) save(ctx context.Context, s Session) error {
	if err := w.store.Put(ctx, s); err != nil {
		return apperr.Wrap(apperr.Internal, err, "save discovery session")
	}
	if w.pub != nil {
		w.pub.Publish(events.DiscoveryStateChanged, events.DiscoveryChange{
			SessionID:     s.ID,
			Phase:         string(s.Phase),
			Candidates:    s.Candidates,
			Pending:       s.Pending,
			SuggestedName: s.SuggestedName,
			Error:         s.LastError,
		})
	}
	return nil
}

// refresh pushes the registry's camera list to the orchestrator. Failures
// are left for the next poll to repair.
func (w *Workflow) refresh(ctx context.Context) {
	if w.sink == nil {
		return
	}
	cams, err := w.registry.GetCameras(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("could not refresh camera inventory")
		return
	}
	if err := w.sink.UpdateCameras(ctx, cams); err != nil {
		log.Warn().Err(err).Msg("could not update camera inventory")
	}
}
