package model

// SystemInfo is the subset of device health the controller consumes.
type SystemInfo struct {
	CPUUsage      float64 `json:"cpu_usage"`
	MemoryPercent float64 `json:"memory_percent"`
	Temperature   string  `json:"temperature"`
	DiskUsage     string  `json:"disk_usage"`
}
