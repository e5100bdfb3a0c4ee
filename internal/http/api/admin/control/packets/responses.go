package packets

import (
	"github.com/Nixie-Tech-LLC/ekran/internal/discovery"
	"github.com/Nixie-Tech-LLC/ekran/internal/model"
)

type VideosResponse struct {
	Videos []string `json:"videos"`
}

type ImagesResponse struct {
	Images []string `json:"images"`
}

type CamerasResponse struct {
	Cameras []model.CameraRecord `json:"cameras"`
}

// UploadResponse lists what was forwarded to the device and, when archiving
// is on, where each file was archived.
type UploadResponse struct {
	Uploaded []string `json:"uploaded"`
	Archived []string `json:"archived,omitempty"`
}

type PairCameraResponse struct {
	Camera  model.CameraRecord `json:"camera"`
	Session discovery.Session  `json:"session"`
}

type LogsResponse struct {
	Entries []model.OperationRecord `json:"entries"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
