package events

import (
	"time"

	"github.com/Nixie-Tech-LLC/ekran/internal/model"
)

// Type names an event on the hub and on every outward surface.
type Type string

const (
	PlaybackStateChanged  Type = "playback_state_changed"
	ConnectionLost        Type = "connection_lost"
	OperationRejected     Type = "operation_rejected"
	DiscoveryStateChanged Type = "discovery_state_changed"
	OperationCompleted    Type = "operation_completed"
	SystemInfoUpdated     Type = "system_info_updated"
)

// Event is one message published on the hub. Data holds one of the payload
// types below, chosen by Type.
type Event struct {
	Type Type      `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

// StateChange carries the snapshot after a confirmed command or a successful
// poll.
type StateChange struct {
	Snapshot model.Snapshot `json:"snapshot"`
	// RequestID is set when the change came from a command.
	RequestID string `json:"request_id,omitempty"`
}

// Disconnect reports a failed poll. LastKnown is the state observers should
// treat as possibly stale.
type Disconnect struct {
	Reason    string         `json:"reason"`
	LastKnown model.Snapshot `json:"last_known"`
}

// Rejection reports a command that did not take effect.
type Rejection struct {
	RequestID string `json:"request_id,omitempty"`
	Command   string `json:"command"`
	Kind      string `json:"kind"`
	Reason    string `json:"reason"`
}

// DiscoveryChange reports a discovery session transition.
type DiscoveryChange struct {
	SessionID     string                      `json:"session_id"`
	Phase         string                      `json:"phase"`
	Candidates    []model.DiscoveredCandidate `json:"candidates,omitempty"`
	Pending       *model.DiscoveredCandidate  `json:"pending,omitempty"`
	SuggestedName string                      `json:"suggested_name,omitempty"`
	Error         string                      `json:"error,omitempty"`
}

// Completion is the journal entry of a finished command.
type Completion struct {
	Record model.OperationRecord `json:"record"`
}

// Health carries fresh device metrics.
type Health struct {
	Info model.SystemInfo `json:"info"`
}
