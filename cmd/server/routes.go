package main

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ekran/internal/http/api"
	authapi "github.com/Nixie-Tech-LLC/ekran/internal/http/api/admin/auth/endpoints"
	controlapi "github.com/Nixie-Tech-LLC/ekran/internal/http/api/admin/control/endpoints"
	"github.com/Nixie-Tech-LLC/ekran/internal/storage"
)

// RegisterRoutes sets up all application routes
func RegisterRoutes(r *gin.Engine, a *app) {
	r.Use(gin.Recovery(), requestLogger())
	// CORS
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods: []string{
			"GET",
			"POST",
			"PUT",
			"DELETE",
			"OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Authorization",
			"Accept",
		},
		ExposeHeaders: []string{
			"Content-Length",
		},
		AllowCredentials: false,
	}))

	r.GET("/metrics", gin.WrapH(a.metrics.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"connected": a.orch.Snapshot().Connected, "in_flight": a.orch.InFlight()})
	})

	if a.cfg.AuthEnabled {
		api.MountGroup(r, api.GroupConfig{
			Prefix: "/api",
		},
			authapi.AuthPublicModule(a.cfg.JWTSecret, authapi.Credentials{
				Username:     a.cfg.AdminUsername,
				PasswordHash: a.cfg.AdminPasswordHash,
			}),
		)
	} else {
		log.Warn().Msg("AUTH_ENABLED=false, the operator API is open")
	}

	modules := []api.Module{
		controlapi.PlaybackModule(a.orch),
		controlapi.CameraModule(a.workflow),
		controlapi.MediaModule(a.device, a.archive),
		controlapi.SystemModule(a.device, a.journal),
		controlapi.EventsModule(a.hub, a.orch.Snapshot),
	}
	if a.cfg.AuthEnabled {
		modules = append(modules, authapi.AuthSessionModule())
	}
	api.MountGroup(r, api.GroupConfig{
		Prefix:    "/api",
		Auth:      a.cfg.AuthEnabled,
		SecretKey: a.cfg.JWTSecret,
	}, modules...)

	// Archived uploads
	if _, ok := a.archive.(*storage.LocalStorage); ok {
		r.Static("/uploads", a.cfg.UploadDir)
	}
}

// requestLogger writes one structured line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		if status >= 500 {
			ev = log.Error()
		} else if status >= 400 {
			ev = log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("took", time.Since(start)).
			Str("ip", c.ClientIP()).
			Msg("request")
	}
}
