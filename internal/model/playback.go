package model

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"time"
)

// Mode is the exclusive category of what the display is showing.
type Mode string

const (
	ModeIdle         Mode = "idle"
	ModeVideo        Mode = "video"
	ModeCamera       Mode = "camera"
	ModeSlideshow    Mode = "slideshow"
	ModeAnnouncement Mode = "announcement"
)

// ParseMode accepts the wire names above. The empty string is idle.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeIdle:
		return ModeIdle, nil
	case ModeVideo, ModeCamera, ModeSlideshow, ModeAnnouncement:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Source is the mode-specific payload of a PlaybackState. The set of
// implementations is closed; a nil Source means idle.
type Source interface {
	Mode() Mode
	clone() Source
}

// VideoSource plays the selected videos in a loop. An empty selection means
// the device default.
type VideoSource struct {
	Selection []string `json:"selection"`
}

// CameraSource shows the live feed of a registered camera.
type CameraSource struct {
	Name string `json:"name"`
}

// SlideshowSource cycles through images.
type SlideshowSource struct {
	Images   []string      `json:"images"`
	Interval time.Duration `json:"-"`
}

// AnnouncementSource is a transient text overlay.
type AnnouncementSource struct {
	Text     string        `json:"text"`
	Duration time.Duration `json:"-"`
}

func (VideoSource) Mode() Mode        { return ModeVideo }
func (CameraSource) Mode() Mode       { return ModeCamera }
func (SlideshowSource) Mode() Mode    { return ModeSlideshow }
func (AnnouncementSource) Mode() Mode { return ModeAnnouncement }

func (s VideoSource) clone() Source {
	return VideoSource{Selection: slices.Clone(s.Selection)}
}

func (s CameraSource) clone() Source { return s }

func (s SlideshowSource) clone() Source {
	return SlideshowSource{Images: slices.Clone(s.Images), Interval: s.Interval}
}

func (s AnnouncementSource) clone() Source { return s }

// PlaybackState is the single authoritative record of what the device is
// doing. The mode is derived from Source so that exactly one mode is active.
type PlaybackState struct {
	Source           Source
	AutomationPaused bool
	LastConfirmedAt  time.Time
}

// NewState pairs a mode with its source. A source whose variant does not
// match mode is rejected; idle must carry no source.
func NewState(mode Mode, src Source) (PlaybackState, error) {
	if mode == ModeIdle {
		if src != nil {
			return PlaybackState{}, fmt.Errorf("idle state cannot carry a %s source", src.Mode())
		}
		return PlaybackState{}, nil
	}
	if src == nil {
		return PlaybackState{}, fmt.Errorf("%s state requires a source", mode)
	}
	if src.Mode() != mode {
		return PlaybackState{}, fmt.Errorf("%s source does not match mode %s", src.Mode(), mode)
	}
	return PlaybackState{}.WithSource(src), nil
}

// Mode reports the active mode.
func (p PlaybackState) Mode() Mode {
	if p.Source == nil {
		return ModeIdle
	}
	return p.Source.Mode()
}

// Clone returns a deep copy that shares no slices with p.
func (p PlaybackState) Clone() PlaybackState {
	out := p
	if p.Source != nil {
		out.Source = p.Source.clone()
	}
	return out
}

// WithSource returns p with its source fully replaced.
func (p PlaybackState) WithSource(src Source) PlaybackState {
	out := p
	out.Source = nil
	if src != nil {
		out.Source = src.clone()
	}
	return out
}

type playbackStateJSON struct {
	Mode             Mode            `json:"mode"`
	Source           json.RawMessage `json:"source,omitempty"`
	AutomationPaused bool            `json:"automation_paused"`
	LastConfirmedAt  *time.Time      `json:"last_confirmed_at,omitempty"`
}

type slideshowJSON struct {
	Images   []string `json:"images"`
	Interval float64  `json:"interval"`
}

type announcementJSON struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
}

// MarshalJSON renders the tagged union as {"mode": ..., "source": {...}}.
// Durations travel as seconds.
func (p PlaybackState) MarshalJSON() ([]byte, error) {
	out := playbackStateJSON{Mode: p.Mode(), AutomationPaused: p.AutomationPaused}
	if !p.LastConfirmedAt.IsZero() {
		t := p.LastConfirmedAt
		out.LastConfirmedAt = &t
	}

	var (
		raw []byte
		err error
	)
	switch src := p.Source.(type) {
	case nil:
	case SlideshowSource:
		raw, err = json.Marshal(slideshowJSON{Images: src.Images, Interval: src.Interval.Seconds()})
	case AnnouncementSource:
		raw, err = json.Marshal(announcementJSON{Text: src.Text, Duration: src.Duration.Seconds()})
	default:
		raw, err = json.Marshal(src)
	}
	if err != nil {
		return nil, err
	}
	out.Source = raw
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (p *PlaybackState) UnmarshalJSON(data []byte) error {
	var in playbackStateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	mode, err := ParseMode(string(in.Mode))
	if err != nil {
		return err
	}
	src, err := DecodeSource(mode, in.Source)
	if err != nil {
		return err
	}

	*p = PlaybackState{Source: src, AutomationPaused: in.AutomationPaused}
	if in.LastConfirmedAt != nil {
		p.LastConfirmedAt = *in.LastConfirmedAt
	}
	return nil
}

// DecodeSource builds the Source variant for mode from its JSON payload.
func DecodeSource(mode Mode, raw json.RawMessage) (Source, error) {
	empty := len(raw) == 0 || string(raw) == "null"
	switch mode {
	case ModeIdle:
		return nil, nil
	case ModeVideo:
		var v VideoSource
		if !empty {
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("decode video source: %w", err)
			}
		}
		return v, nil
	case ModeCamera:
		var c CameraSource
		if !empty {
			if err := json.Unmarshal(raw, &c); err != nil {
				return nil, fmt.Errorf("decode camera source: %w", err)
			}
		}
		return c, nil
	case ModeSlideshow:
		var s slideshowJSON
		if !empty {
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, fmt.Errorf("decode slideshow source: %w", err)
			}
		}
		return SlideshowSource{Images: s.Images, Interval: Seconds(s.Interval)}, nil
	case ModeAnnouncement:
		var a announcementJSON
		if !empty {
			if err := json.Unmarshal(raw, &a); err != nil {
				return nil, fmt.Errorf("decode announcement source: %w", err)
			}
		}
		return AnnouncementSource{Text: a.Text, Duration: Seconds(a.Duration)}, nil
	}
	return nil, fmt.Errorf("unknown mode %q", mode)
}

// MaxDuration bounds slideshow intervals and announcement durations.
const MaxDuration = 24 * time.Hour

// Seconds converts a wire value in seconds to a duration. Values beyond
// MaxDuration saturate just past it so validation rejects them instead of
// overflowing.
func Seconds(s float64) time.Duration {
	switch {
	case math.IsNaN(s):
		return 0
	case s > MaxDuration.Seconds():
		return MaxDuration + time.Second
	case s < -MaxDuration.Seconds():
		return -MaxDuration
	}
	return time.Duration(s * float64(time.Second))
}
