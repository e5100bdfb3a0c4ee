package device

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Nixie-Tech-LLC/ekran/internal/model"
)

// REQUESTS SENT TO THE DEVICE

type playVideoRequest struct {
	Videos []string `json:"videos"`
}

type playCameraRequest struct {
	Name string `json:"name"`
}

type playSlideshowRequest struct {
	Images   []string `json:"images"`
	Interval float64  `json:"interval"` // seconds
}

type announceRequest struct {
	Message  string  `json:"message"`
	Duration float64 `json:"duration"` // seconds
}

type cameraRequest struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

type deleteFileRequest struct {
	Filename string `json:"filename"`
}

// RESPONSES RECEIVED FROM THE DEVICE

// envelope is the common {success, message} wrapper the device puts around
// command answers and failures.
type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e envelope) failed() bool { return e.Success != nil && !*e.Success }

func (e envelope) reason() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

type commandResponse struct {
	envelope
	Status *model.PlaybackState `json:"status"`
}

type camerasResponse struct {
	envelope
	Cameras []model.CameraRecord `json:"cameras"`
}

type cameraResponse struct {
	envelope
	Camera *model.CameraRecord `json:"camera"`
}

type videosResponse struct {
	envelope
	Videos []string `json:"videos"`
}

type imagesResponse struct {
	envelope
	Images []string `json:"images"`
}

type discoveredCamera struct {
	IP       string   `json:"ip"`
	Port     flexPort `json:"port"`
	Hostname string   `json:"hostname"`
}

type discoverResponse struct {
	envelope
	Cameras []discoveredCamera `json:"cameras"`
}

type systemInfoResponse struct {
	CPUUsage float64 `json:"cpu_usage"`
	Memory   struct {
		Percent float64 `json:"percent"`
	} `json:"memory"`
	Temperature flexString `json:"temperature"`
	DiskUsage   flexString `json:"disk_usage"`
}

func (r systemInfoResponse) toModel() model.SystemInfo {
	return model.SystemInfo{
		CPUUsage:      r.CPUUsage,
		MemoryPercent: r.Memory.Percent,
		Temperature:   string(r.Temperature),
		DiskUsage:     string(r.DiskUsage),
	}
}

// flexPort accepts a port written either as a number or as a string.
type flexPort int

func (p *flexPort) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*p = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid port %s: %w", data, err)
	}
	*p = flexPort(n)
	return nil
}

// flexString accepts any JSON scalar and keeps its textual form.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	if string(data) == "null" {
		*f = ""
		return nil
	}
	*f = flexString(strings.TrimSpace(string(data)))
	return nil
}
