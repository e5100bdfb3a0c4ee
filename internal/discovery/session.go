// Package discovery runs the two-step camera onboarding: a network scan
// that yields candidates, then pairing one candidate with credentials to
// register it on the device.
package discovery

import (
	"fmt"
	"slices"
	"time"

	"github.com/Nixie-Tech-LLC/ekran/internal/apperr"
	"github.com/Nixie-Tech-LLC/ekran/internal/model"
)

// Phase is where a session is in the onboarding flow.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseScanning Phase = "scanning"
	PhaseResults  Phase = "results"
	PhasePairing  Phase = "pairing"
)

// Session is one operator's onboarding flow. It is a plain value: every
// transition returns a new Session and the caller decides where to keep it.
// Credentials never enter a Session.
type Session struct {
	ID            string                      `json:"id"`
	Phase         Phase                       `json:"phase"`
	Candidates    []model.DiscoveredCandidate `json:"candidates"`
	Pending       *model.DiscoveredCandidate  `json:"pending,omitempty"`
	SuggestedName string                      `json:"suggested_name,omitempty"`
	LastError     string                      `json:"last_error,omitempty"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

// NewSession starts an idle session.
func NewSession(id string, now time.Time) Session {
	return Session{ID: id, Phase: PhaseIdle, Candidates: []model.DiscoveredCandidate{}, UpdatedAt: now}
}

func (s Session) clone() Session {
	out := s
	out.Candidates = slices.Clone(s.Candidates)
	if s.Pending != nil {
		p := *s.Pending
		out.Pending = &p
	}
	return out
}

// BeginScan moves to scanning. A session that is already scanning is Busy.
func (s Session) BeginScan(now time.Time) (Session, error) {
	if s.Phase == PhaseScanning {
		return s, apperr.New(apperr.Busy, "a scan is already running for this session")
	}
	out := s.clone()
	out.Phase = PhaseScanning
	out.Candidates = []model.DiscoveredCandidate{}
	out.Pending = nil
	out.SuggestedName = ""
	out.LastError = ""
	out.UpdatedAt = now
	return out, nil
}

// ScanFinished records the probe result. An empty result is valid.
func (s Session) ScanFinished(found []model.DiscoveredCandidate, now time.Time) Session {
	out := s.clone()
	out.Phase = PhaseResults
	out.Candidates = slices.Clone(found)
	if out.Candidates == nil {
		out.Candidates = []model.DiscoveredCandidate{}
	}
	out.UpdatedAt = now
	return out
}

// ScanFailed returns to idle keeping the reason.
func (s Session) ScanFailed(err error, now time.Time) Session {
	out := s.clone()
	out.Phase = PhaseIdle
	out.Candidates = []model.DiscoveredCandidate{}
	out.LastError = apperr.MessageOf(err)
	out.UpdatedAt = now
	return out
}

// Select picks a candidate from the scan results for pairing. Re-selecting
// while already pairing switches to the new candidate.
func (s Session) Select(address string, port int, now time.Time) (Session, error) {
	if s.Phase != PhaseResults && s.Phase != PhasePairing {
		return s, apperr.New(apperr.InvalidArgument, "no scan results to select from (session is %s)", s.Phase)
	}
	i := slices.IndexFunc(s.Candidates, func(c model.DiscoveredCandidate) bool {
		return c.Address == address && (port == 0 || c.Port == port)
	})
	if i < 0 {
		return s, apperr.New(apperr.InvalidArgument, "%s is not among the scan results", hostPort(address, port))
	}

	out := s.clone()
	cand := out.Candidates[i]
	out.Phase = PhasePairing
	out.Pending = &cand
	out.SuggestedName = SuggestedName(cand)
	out.LastError = ""
	out.UpdatedAt = now
	return out, nil
}

// Paired ends the flow after a successful registration.
func (s Session) Paired(now time.Time) Session {
	out := s.clone()
	out.Phase = PhaseIdle
	out.Pending = nil
	out.SuggestedName = ""
	out.LastError = ""
	out.UpdatedAt = now
	return out
}

// PairingFailed stays in pairing so the operator can correct the input.
func (s Session) PairingFailed(err error, now time.Time) Session {
	out := s.clone()
	out.LastError = apperr.MessageOf(err)
	out.UpdatedAt = now
	return out
}

// Cancel abandons whatever the session was doing.
func (s Session) Cancel(now time.Time) Session {
	return NewSession(s.ID, now)
}

// SuggestedName is the candidate's advertised name or "Camera <address>".
func SuggestedName(c model.DiscoveredCandidate) string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return "Camera " + c.Address
}

func hostPort(address string, port int) string {
	if port == 0 {
		return address
	}
	return fmt.Sprintf("%s:%d", address, port)
}
