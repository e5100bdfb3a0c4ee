package packets

// Domain fields are validated by the orchestrator, not by binding tags, so
// that a busy controller answers Busy before it looks at the arguments.

type PlayVideoRequest struct {
	Videos []string `json:"videos"`
}

type PlayCameraRequest struct {
	Name string `json:"name"`
}

// Interval is in seconds.
type PlaySlideshowRequest struct {
	Images   []string `json:"images"`
	Interval float64  `json:"interval"`
}

// Duration is in seconds; zero selects the default.
type AnnounceRequest struct {
	Message  string  `json:"message"`
	Duration float64 `json:"duration"`
}

type AddCameraRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type SelectCandidateRequest struct {
	Address string `json:"address" binding:"required"`
	Port    int    `json:"port"`
}

type PairCameraRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}
