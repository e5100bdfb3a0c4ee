// Package device is the typed client over the display device's REST API. It
// owns no state: every call is a single request whose outcome is surfaced as
// a value or an apperr-classified error.
package device

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/Nixie-Tech-LLC/ekran/internal/model"
)

// ErrUnconfirmed marks a command the device accepted whose resulting state
// could not be read back. The command took effect; the next poll reports
// the real state.
var ErrUnconfirmed = errors.New("command accepted but resulting state unconfirmed")

// Player issues playback commands. Every method that changes what the device
// shows returns the state the device confirmed.
type Player interface {
	PlayVideo(ctx context.Context, selection []string) (model.PlaybackState, error)
	PlayCamera(ctx context.Context, name string) (model.PlaybackState, error)
	PlaySlideshow(ctx context.Context, images []string, interval time.Duration) (model.PlaybackState, error)
	Announce(ctx context.Context, text string, duration time.Duration) error
	Stop(ctx context.Context) (model.PlaybackState, error)
	Resume(ctx context.Context) (model.PlaybackState, error)
}

// StatusSource answers the queries the status poller issues on every tick.
type StatusSource interface {
	GetStatus(ctx context.Context) (model.PlaybackState, error)
	GetCameras(ctx context.Context) ([]model.CameraRecord, error)
	GetSystemInfo(ctx context.Context) (model.SystemInfo, error)
}

// CameraRegistry manages the device's persistent camera list and its network
// probe.
type CameraRegistry interface {
	GetCameras(ctx context.Context) ([]model.CameraRecord, error)
	RegisterCamera(ctx context.Context, name, url string) (model.CameraRecord, error)
	DeleteCamera(ctx context.Context, name string) error
	DiscoverCameras(ctx context.Context) ([]model.DiscoveredCandidate, error)
}

// MediaLibrary manages uploaded videos and images on the device.
type MediaLibrary interface {
	GetVideos(ctx context.Context) ([]string, error)
	GetImages(ctx context.Context) ([]string, error)
	DeleteVideo(ctx context.Context, name string) error
	DeleteImage(ctx context.Context, name string) error
	UploadVideo(ctx context.Context, files []File) error
	UploadImage(ctx context.Context, files []File) error
}

// Gateway is the full device API.
type Gateway interface {
	Player
	StatusSource
	CameraRegistry
	MediaLibrary
}

// File is one upload part.
type File struct {
	Name   string
	Reader io.Reader
}
