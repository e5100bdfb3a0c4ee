package endpoints

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/ekran/internal/db"
	"github.com/Nixie-Tech-LLC/ekran/internal/http/api"
	"github.com/Nixie-Tech-LLC/ekran/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/ekran/internal/model"
)

// SystemInfoSource reports device health.
type SystemInfoSource interface {
	GetSystemInfo(ctx context.Context) (model.SystemInfo, error)
}

type SystemController struct {
	source  SystemInfoSource
	journal db.Store
}

// SystemModule mounts /system_info and /logs
func SystemModule(source SystemInfoSource, journal db.Store) api.Module {
	ctl := &SystemController{source: source, journal: journal}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/system_info", ctl.systemInfo)
		c.GET("/logs", ctl.logs)
	})
}

// GET /api/system_info
func (s *SystemController) systemInfo(ctx *gin.Context) (any, *api.APIError) {
	info, err := s.source.GetSystemInfo(ctx.Request.Context())
	if err != nil {
		return nil, api.FromError(err)
	}
	return info, nil
}

// GET /api/logs?limit=
func (s *SystemController) logs(ctx *gin.Context) (any, *api.APIError) {
	limit := db.DefaultListLimit
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, &api.APIError{Code: http.StatusBadRequest, Message: "limit must be a non-negative integer"}
		}
		limit = n
	}

	entries, err := s.journal.ListOperations(ctx.Request.Context(), limit)
	if err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not read operation log"}
	}
	if entries == nil {
		entries = []model.OperationRecord{}
	}
	return packets.LogsResponse{Entries: entries}, nil
}
