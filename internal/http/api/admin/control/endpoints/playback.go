package endpoints

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/ekran/internal/http/api"
	"github.com/Nixie-Tech-LLC/ekran/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/ekran/internal/model"
	"github.com/Nixie-Tech-LLC/ekran/internal/orchestrator"
)

// Playback is what the playback endpoints need from the orchestrator.
type Playback interface {
	PlayVideo(ctx context.Context, selection []string) (orchestrator.Result, error)
	PlayCamera(ctx context.Context, name string) (orchestrator.Result, error)
	PlaySlideshow(ctx context.Context, images []string, interval time.Duration) (orchestrator.Result, error)
	Announce(ctx context.Context, text string, duration time.Duration) (orchestrator.Result, error)
	Stop(ctx context.Context) (orchestrator.Result, error)
	Resume(ctx context.Context) (orchestrator.Result, error)
	Snapshot() model.Snapshot
}

type PlaybackController struct {
	orch Playback
}

// PlaybackModule mounts /status and the /playback commands
func PlaybackModule(orch Playback) api.Module {
	ctl := &PlaybackController{orch: orch}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/status", ctl.status)
		c.POST("/playback/video", ctl.playVideo)
		c.POST("/playback/camera", ctl.playCamera)
		c.POST("/playback/slideshow", ctl.playSlideshow)
		c.POST("/playback/announce", ctl.announce)
		c.POST("/playback/stop", ctl.stop)
		c.POST("/playback/resume", ctl.resume)
	})
}

// commandResult turns an orchestrator answer into a response.
func commandResult(res orchestrator.Result, err error) (any, *api.APIError) {
	if err != nil {
		return nil, api.FromError(err)
	}
	return res, nil
}

// GET /api/status
func (p *PlaybackController) status(ctx *gin.Context) (any, *api.APIError) {
	return p.orch.Snapshot(), nil
}

// POST /api/playback/video
func (p *PlaybackController) playVideo(ctx *gin.Context) (any, *api.APIError) {
	var request packets.PlayVideoRequest
	if err := bindOptionalJSON(ctx, &request); err != nil {
		return nil, api.BadRequest(err)
	}
	return commandResult(p.orch.PlayVideo(ctx.Request.Context(), request.Videos))
}

// POST /api/playback/camera
func (p *PlaybackController) playCamera(ctx *gin.Context) (any, *api.APIError) {
	var request packets.PlayCameraRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err)
	}
	return commandResult(p.orch.PlayCamera(ctx.Request.Context(), request.Name))
}

// POST /api/playback/slideshow
func (p *PlaybackController) playSlideshow(ctx *gin.Context) (any, *api.APIError) {
	var request packets.PlaySlideshowRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err)
	}
	return commandResult(p.orch.PlaySlideshow(ctx.Request.Context(), request.Images, model.Seconds(request.Interval)))
}

// POST /api/playback/announce
func (p *PlaybackController) announce(ctx *gin.Context) (any, *api.APIError) {
	var request packets.AnnounceRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err)
	}
	return commandResult(p.orch.Announce(ctx.Request.Context(), request.Message, model.Seconds(request.Duration)))
}

// POST /api/playback/stop
func (p *PlaybackController) stop(ctx *gin.Context) (any, *api.APIError) {
	return commandResult(p.orch.Stop(ctx.Request.Context()))
}

// POST /api/playback/resume
func (p *PlaybackController) resume(ctx *gin.Context) (any, *api.APIError) {
	return commandResult(p.orch.Resume(ctx.Request.Context()))
}

// bindOptionalJSON accepts an empty body as the zero request.
func bindOptionalJSON(ctx *gin.Context, dest any) error {
	if ctx.Request.ContentLength == 0 {
		return nil
	}
	if err := ctx.ShouldBindJSON(dest); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
