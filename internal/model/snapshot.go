package model

import "slices"

// Snapshot is the merged view published to observers: the playback state,
// the camera inventory and whether the last status fetch succeeded.
type Snapshot struct {
	State     PlaybackState  `json:"state"`
	Cameras   []CameraRecord `json:"cameras"`
	Connected bool           `json:"connected"`
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		State:     s.State.Clone(),
		Cameras:   slices.Clone(s.Cameras),
		Connected: s.Connected,
	}
}
