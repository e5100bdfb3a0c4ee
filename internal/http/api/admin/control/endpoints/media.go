package endpoints

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ekran/internal/device"
	"github.com/Nixie-Tech-LLC/ekran/internal/http/api"
	"github.com/Nixie-Tech-LLC/ekran/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/ekran/internal/storage"
)

// MaxUploadMemory is how much of a multipart body is kept in memory before
// spilling to temporary files.
const MaxUploadMemory = 32 << 20

type MediaController struct {
	library device.MediaLibrary
	archive storage.Storage
}

// MediaModule mounts /videos and /images. archive may be nil, in which case
// uploads are only forwarded to the device.
func MediaModule(library device.MediaLibrary, archive storage.Storage) api.Module {
	ctl := &MediaController{library: library, archive: archive}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/videos", ctl.listVideos)
		c.POST("/videos", ctl.uploadVideos)
		c.DELETE("/videos/:name", ctl.deleteVideo)

		c.GET("/images", ctl.listImages)
		c.POST("/images", ctl.uploadImages)
		c.DELETE("/images/:name", ctl.deleteImage)
	})
}

// GET /api/videos
func (m *MediaController) listVideos(ctx *gin.Context) (any, *api.APIError) {
	videos, err := m.library.GetVideos(ctx.Request.Context())
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.VideosResponse{Videos: videos}, nil
}

// GET /api/images
func (m *MediaController) listImages(ctx *gin.Context) (any, *api.APIError) {
	images, err := m.library.GetImages(ctx.Request.Context())
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.ImagesResponse{Images: images}, nil
}

// POST /api/videos
func (m *MediaController) uploadVideos(ctx *gin.Context) (any, *api.APIError) {
	return m.upload(ctx, "videos", m.library.UploadVideo)
}

// POST /api/images
func (m *MediaController) uploadImages(ctx *gin.Context) (any, *api.APIError) {
	return m.upload(ctx, "images", m.library.UploadImage)
}

// DELETE /api/videos/:name
func (m *MediaController) deleteVideo(ctx *gin.Context) (any, *api.APIError) {
	name := ctx.Param("name")
	if err := m.library.DeleteVideo(ctx.Request.Context(), name); err != nil {
		return nil, api.FromError(err)
	}
	log.Info().Str("video", name).Msg("video deleted")
	return packets.SuccessResponse{Success: true, Message: "video " + name + " deleted"}, nil
}

// DELETE /api/images/:name
func (m *MediaController) deleteImage(ctx *gin.Context) (any, *api.APIError) {
	name := ctx.Param("name")
	if err := m.library.DeleteImage(ctx.Request.Context(), name); err != nil {
		return nil, api.FromError(err)
	}
	log.Info().Str("image", name).Msg("image deleted")
	return packets.SuccessResponse{Success: true, Message: "image " + name + " deleted"}, nil
}

type uploadFunc func(ctx context.Context, files []device.File) error

func (m *MediaController) upload(ctx *gin.Context, folder string, forward uploadFunc) (any, *api.APIError) {
	form, err := ctx.MultipartForm()
	if err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "multipart form with files[] is required"}
	}
	headers := form.File["files[]"]
	if len(headers) == 0 {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "no files selected"}
	}

	var resp packets.UploadResponse
	if m.archive != nil {
		for _, fh := range headers {
			where, err := m.archive.SaveFile(fh, folder)
			if err != nil {
				log.Error().Err(err).Str("file", fh.Filename).Msg("[media] archive failed")
				return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not archive " + fh.Filename}
			}
			resp.Archived = append(resp.Archived, where)
		}
	}

	files, closeAll, err := openAll(headers)
	if err != nil {
		log.Error().Err(err).Msg("[media] could not open upload")
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}
	defer closeAll()

	if err := forward(ctx.Request.Context(), files); err != nil {
		return nil, api.FromError(err)
	}
	for _, f := range files {
		resp.Uploaded = append(resp.Uploaded, f.Name)
	}
	log.Info().Str("folder", folder).Int("count", len(files)).Msg("media uploaded to device")
	return resp, nil
}

func openAll(headers []*multipart.FileHeader) ([]device.File, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	files := make([]device.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		opened = append(opened, f)
		files = append(files, device.File{Name: fh.Filename, Reader: f})
	}
	return files, closeAll, nil
}
