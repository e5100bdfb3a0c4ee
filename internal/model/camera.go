package model

// CameraRecord is a registered camera. Records are never edited in place;
// a rename is a delete followed by a new registration.
type CameraRecord struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// DiscoveredCandidate is a camera found by a network scan that has not been
// registered yet.
type DiscoveredCandidate struct {
	Address     string `json:"address"`
	Port        int    `json:"port"`
	DisplayName string `json:"display_name,omitempty"`
}

// CredentialPairing combines a candidate with user supplied credentials. It is
// consumed immediately to register a camera and is never stored.
type CredentialPairing struct {
	Candidate DiscoveredCandidate
	Name      string
	Username  string
	Password  string
}
