package device

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ekran/internal/apperr"
	"github.com/Nixie-Tech-LLC/ekran/internal/model"
)

// Config locates the device API.
type Config struct {
	BaseURL string
	// Timeout bounds every request except the camera probe.
	Timeout time.Duration
	// DiscoveryTimeout bounds POST /discover_cameras, which blocks on the
	// device until its network scan finishes.
	DiscoveryTimeout time.Duration
}

// Client talks to the device over REST.
type Client struct {
	HTTP   *resty.Client
	Config Config
}

var _ Gateway = (*Client)(nil)

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.DiscoveryTimeout <= 0 {
		cfg.DiscoveryTimeout = 30 * time.Second
	}

	r := resty.New()
	r.SetBaseURL(cfg.BaseURL)
	r.SetHeader("Accept", "application/json")

	return &Client{HTTP: r, Config: cfg}
}

// request builds a call bounded by d. The returned cancel must be called once
// the response has been read.
func (c *Client) request(ctx context.Context, d time.Duration) (*resty.Request, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, d)
	return c.HTTP.R().SetContext(ctx).SetError(&envelope{}), cancel
}

// check turns a transport error, an HTTP failure or a success:false envelope
// into a classified error.
func check(op string, resp *resty.Response, err error, body *envelope) error {
	if err != nil {
		return apperr.Wrap(apperr.DeviceUnreachable, err, op+": device unreachable")
	}

	if resp.IsError() {
		msg := resp.Status()
		if e, ok := resp.Error().(*envelope); ok && e.reason() != "" {
			msg = e.reason()
		}
		return apperr.New(kindForStatus(resp.StatusCode()), "%s: %s", op, msg)
	}

	if body != nil && body.failed() {
		msg := body.reason()
		if msg == "" {
			msg = "device reported failure"
		}
		return apperr.New(apperr.DeviceRejected, "%s: %s", op, msg)
	}
	return nil
}

func kindForStatus(code int) apperr.Kind {
	switch code {
	case http.StatusConflict:
		return apperr.Conflict
	case http.StatusNotFound:
		return apperr.NotFound
	case http.StatusBadRequest:
		return apperr.InvalidArgument
	default:
		return apperr.DeviceRejected
	}
}

// QUERIES

func (c *Client) GetStatus(ctx context.Context) (model.PlaybackState, error) {
	req, cancel := c.request(ctx, c.Config.Timeout)
	defer cancel()

	var st model.PlaybackState
	resp, err := req.SetResult(&st).Get("/status")
	if err := check("get status", resp, err, nil); err != nil {
		return model.PlaybackState{}, err
	}
	return st, nil
}

func (c *Client) GetCameras(ctx context.Context) ([]model.CameraRecord, error) {
	req, cancel := c.request(ctx, c.Config.Timeout)
	defer cancel()

	var out camerasResponse
	resp, err := req.SetResult(&out).Get("/cameras")
	if err := check("get cameras", resp, err, &out.envelope); err != nil {
		return nil, err
	}
	if out.Cameras == nil {
		return []model.CameraRecord{}, nil
	}
	return out.Cameras, nil
}

func (c *Client) GetVideos(ctx context.Context) ([]string, error) {
	req, cancel := c.request(ctx, c.Config.Timeout)
	defer cancel()

	var out videosResponse
	resp, err := req.SetResult(&out).Get("/videos")
	if err := check("get videos", resp, err, &out.envelope); err != nil {
		return nil, err
	}
	if out.Videos == nil {
		return []string{}, nil
	}
	return out.Videos, nil
}

func (c *Client) GetImages(ctx context.Context) ([]string, error) {
	req, cancel := c.request(ctx, c.Config.Timeout)
	defer cancel()

	var out imagesResponse
	resp, err := req.SetResult(&out).Get("/images")
	if err := check("get images", resp, err, &out.envelope); err != nil {
		return nil, err
	}
	if out.Images == nil {
		return []string{}, nil
	}
	return out.Images, nil
}

func (c *Client) GetSystemInfo(ctx context.Context) (model.SystemInfo, error) {
	req, cancel := c.request(ctx, c.Config.Timeout)
	defer cancel()

	var out systemInfoResponse
	resp, err := req.SetResult(&out).Get("/system_info")
	if err := check("get system info", resp, err, nil); err != nil {
		return model.SystemInfo{}, err
	}
	return out.toModel(), nil
}

// PLAYBACK

func (c *Client) PlayVideo(ctx context.Context, selection []string) (model.PlaybackState, error) {
	if selection == nil {
		selection = []string{}
	}
	return c.command(ctx, "play video", "/play_video", playVideoRequest{Videos: selection})
}

func (c *Client) PlayCamera(ctx context.Context, name string) (model.PlaybackState, error) {
	return c.command(ctx, "play camera", "/play_camera", playCameraRequest{Name: name})
}

func (c *Client) PlaySlideshow(ctx context.Context, images []string, interval time.Duration) (model.PlaybackState, error) {
	return c.command(ctx, "play slideshow", "/play_slideshow", playSlideshowRequest{
		Images:   images,
		Interval: interval.Seconds(),
	})
}

func (c *Client) Stop(ctx context.Context) (model.PlaybackState, error) {
	return c.command(ctx, "stop", "/stop", nil)
}

func (c *Client) Resume(ctx context.Context) (model.PlaybackState, error) {
	return c.command(ctx, "resume", "/resume", nil)
}

func (c *Client) Announce(ctx context.Context, text string, duration time.Duration) error {
	req, cancel := c.request(ctx, c.Config.Timeout)
	defer cancel()

	var out envelope
	resp, err := req.
		SetBody(announceRequest{Message: text, Duration: duration.Seconds()}).
		SetResult(&out).
		Post("/announce")
	return check("announce", resp, err, &out)
}

// command posts a playback command and returns the state the device reports
// afterwards. Older firmware omits the state from the answer, in which case it
// is read back with GET /status.
func (c *Client) command(ctx context.Context, op, path string, body any) (model.PlaybackState, error) {
	req, cancel := c.request(ctx, c.Config.Timeout)
	defer cancel()

	var out commandResponse
	req.SetResult(&out)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Post(path)
	if err := check(op, resp, err, &out.envelope); err != nil {
		return model.PlaybackState{}, err
	}

	if out.Status != nil {
		return *out.Status, nil
	}

	log.Debug().Str("op", op).Msg("device answer carried no status, reading it back")
	st, err := c.GetStatus(ctx)
	if err != nil {
		return model.PlaybackState{}, fmt.Errorf("%s: %w: %w", op, ErrUnconfirmed, err)
	}
	return st, nil
}

// CAMERAS

func (c *Client) RegisterCamera(ctx context.Context, name, url string) (model.CameraRecord, error) {
	req, cancel := c.request(ctx, c.Config.Timeout)
	defer cancel()

	var out cameraResponse
	resp, err := req.
		SetBody(cameraRequest{Name: name, URL: url}).
		SetResult(&out).
		Post("/cameras")
	if err := check("register camera", resp, err, &out.envelope); err != nil {
		return model.CameraRecord{}, err
	}
	if out.Camera != nil {
		return *out.Camera, nil
	}
	return model.CameraRecord{Name: name, URL: url}, nil
}

func (c *Client) DeleteCamera(ctx context.Context, name string) error {
	req, cancel := c.request(ctx, c.Config.Timeout)
	defer cancel()

	var out envelope
	resp, err := req.
		SetBody(cameraRequest{Name: name}).
		SetResult(&out).
		Delete("/cameras")
	return check("delete camera", resp, err, &out)
}

func (c *Client) DiscoverCameras(ctx context.Context) ([]model.DiscoveredCandidate, error) {
	req, cancel := c.request(ctx, c.Config.DiscoveryTimeout)
	defer cancel()

	var out discoverResponse
	resp, err := req.SetResult(&out).Post("/discover_cameras")
	if err := check("discover cameras", resp, err, &out.envelope); err != nil {
		return nil, err
	}

	candidates := make([]model.DiscoveredCandidate, 0, len(out.Cameras))
	for _, cam := range out.Cameras {
		if cam.IP == "" {
			continue
		}
		candidates = append(candidates, model.DiscoveredCandidate{
			Address:     cam.IP,
			Port:        int(cam.Port),
			DisplayName: cam.Hostname,
		})
	}
	return candidates, nil
}

// MEDIA

func (c *Client) DeleteVideo(ctx context.Context, name string) error {
	return c.deleteFile(ctx, "delete video", "/delete_video", name)
}

func (c *Client) DeleteImage(ctx context.Context, name string) error {
	return c.deleteFile(ctx, "delete image", "/delete_image", name)
}

func (c *Client) deleteFile(ctx context.Context, op, path, name string) error {
	req, cancel := c.request(ctx, c.Config.Timeout)
	defer cancel()

	var out envelope
	resp, err := req.
		SetBody(deleteFileRequest{Filename: name}).
		SetResult(&out).
		Post(path)
	return check(op, resp, err, &out)
}

func (c *Client) UploadVideo(ctx context.Context, files []File) error {
	return c.upload(ctx, "upload video", "/upload", files)
}

func (c *Client) UploadImage(ctx context.Context, files []File) error {
	return c.upload(ctx, "upload image", "/upload_image", files)
}

func (c *Client) upload(ctx context.Context, op, path string, files []File) error {
	if len(files) == 0 {
		return apperr.New(apperr.InvalidArgument, "%s: no files", op)
	}

	// Uploads can be large; they are bounded by the caller's context only.
	req := c.HTTP.R().SetContext(ctx).SetError(&envelope{})
	for _, f := range files {
		if f.Reader == nil {
			return apperr.New(apperr.InvalidArgument, "%s: %q has no content", op, f.Name)
		}
		req.SetFileReader("files[]", f.Name, f.Reader)
	}

	var out envelope
	resp, err := req.SetResult(&out).Post(path)
	if err != nil && errors.Is(err, context.Canceled) {
		return apperr.Wrap(apperr.Timeout, err, op+": cancelled")
	}
	return check(op, resp, err, &out)
}
