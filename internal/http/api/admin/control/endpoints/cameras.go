package endpoints

import (
	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/ekran/internal/discovery"
	"github.com/Nixie-Tech-LLC/ekran/internal/http/api"
	"github.com/Nixie-Tech-LLC/ekran/internal/http/api/admin/control/packets"
)

type CameraController struct {
	wf *discovery.Workflow
}

// CameraModule mounts the /cameras registry and the /discovery onboarding flow
func CameraModule(wf *discovery.Workflow) api.Module {
	ctl := &CameraController{wf: wf}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/cameras", ctl.listCameras)
		c.POST("/cameras", ctl.addCamera)
		c.DELETE("/cameras/:name", ctl.deleteCamera)

		c.POST("/discovery", ctl.openSession)
		c.GET("/discovery/:id", ctl.getSession)
		c.POST("/discovery/:id/scan", ctl.scan)
		c.POST("/discovery/:id/select", ctl.selectCandidate)
		c.POST("/discovery/:id/pair", ctl.pair)
		c.POST("/discovery/:id/cancel", ctl.cancel)
		c.DELETE("/discovery/:id", ctl.closeSession)
	})
}

// GET /api/cameras
func (cc *CameraController) listCameras(ctx *gin.Context) (any, *api.APIError) {
	cams, err := cc.wf.Cameras(ctx.Request.Context())
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.CamerasResponse{Cameras: cams}, nil
}

// POST /api/cameras
func (cc *CameraController) addCamera(ctx *gin.Context) (any, *api.APIError) {
	var request packets.AddCameraRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err)
	}
	rec, err := cc.wf.AddCamera(ctx.Request.Context(), request.Name, request.URL)
	if err != nil {
		return nil, api.FromError(err)
	}
	return rec, nil
}

// DELETE /api/cameras/:name
func (cc *CameraController) deleteCamera(ctx *gin.Context) (any, *api.APIError) {
	name := ctx.Param("name")
	if err := cc.wf.RemoveCamera(ctx.Request.Context(), name); err != nil {
		return nil, api.FromError(err)
	}
	return packets.SuccessResponse{Success: true, Message: "camera " + name + " removed"}, nil
}

// POST /api/discovery
func (cc *CameraController) openSession(ctx *gin.Context) (any, *api.APIError) {
	s, err := cc.wf.Open(ctx.Request.Context())
	if err != nil {
		return nil, api.FromError(err)
	}
	return s, nil
}

// GET /api/discovery/:id
func (cc *CameraController) getSession(ctx *gin.Context) (any, *api.APIError) {
	s, err := cc.wf.Session(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		return nil, api.FromError(err)
	}
	return s, nil
}

// POST /api/discovery/:id/scan
// Blocks until the device probe finishes.
func (cc *CameraController) scan(ctx *gin.Context) (any, *api.APIError) {
	s, err := cc.wf.StartScan(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		return nil, api.FromError(err)
	}
	return s, nil
}

// POST /api/discovery/:id/select
func (cc *CameraController) selectCandidate(ctx *gin.Context) (any, *api.APIError) {
	var request packets.SelectCandidateRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err)
	}
	s, err := cc.wf.SelectForPairing(ctx.Request.Context(), ctx.Param("id"), request.Address, request.Port)
	if err != nil {
		return nil, api.FromError(err)
	}
	return s, nil
}

// POST /api/discovery/:id/pair
func (cc *CameraController) pair(ctx *gin.Context) (any, *api.APIError) {
	var request packets.PairCameraRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err)
	}
	rec, s, err := cc.wf.CompletePairing(ctx.Request.Context(), ctx.Param("id"), request.Name, request.Username, request.Password)
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.PairCameraResponse{Camera: rec, Session: s}, nil
}

// POST /api/discovery/:id/cancel
func (cc *CameraController) cancel(ctx *gin.Context) (any, *api.APIError) {
	s, err := cc.wf.Cancel(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		return nil, api.FromError(err)
	}
	return s, nil
}

// DELETE /api/discovery/:id
func (cc *CameraController) closeSession(ctx *gin.Context) (any, *api.APIError) {
	if err := cc.wf.Close(ctx.Request.Context(), ctx.Param("id")); err != nil {
		return nil, api.FromError(err)
	}
	return packets.SuccessResponse{Success: true}, nil
}
