package endpoints

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ekran/internal/http/api"
	"github.com/Nixie-Tech-LLC/ekran/internal/http/api/admin/auth/packets"
	"github.com/Nixie-Tech-LLC/ekran/internal/http/middleware"
)

// Credentials is the single operator account.
type Credentials struct {
	Username     string
	PasswordHash string
}

// AuthPublicModule mounts public auth endpoints (/auth/login)
func AuthPublicModule(jwtSecret string, creds Credentials) api.Module {
	ctl := newAccountManager(jwtSecret, creds)
	return api.ModuleFunc(func(c *api.Controller) {
		c.POST("/auth/login", ctl.login)
	})
}

// AuthSessionModule mounts private session endpoints (JWT required)
func AuthSessionModule() api.Module {
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/auth/current_profile", getCurrentProfile)
	})
}

type AccountManager struct {
	jwtSecret string
	creds     Credentials
	now       func() time.Time
}

func newAccountManager(secret string, creds Credentials) *AccountManager {
	return &AccountManager{jwtSecret: secret, creds: creds, now: time.Now}
}

// POST /api/auth/login
func (a *AccountManager) login(ctx *gin.Context) (any, *api.APIError) {
	var request packets.LoginRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err)
	}

	if request.Username != a.creds.Username || !middleware.CheckPassword(a.creds.PasswordHash, request.Password) {
		log.Warn().Str("username", request.Username).Str("ip", ctx.ClientIP()).Msg("failed login")
		return nil, &api.APIError{Code: http.StatusUnauthorized, Message: middleware.ErrInvalidCredentials.Error()}
	}

	token, err := middleware.GenerateJWT(request.Username, a.jwtSecret)
	if err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not generate token"}
	}

	log.Info().Str("username", request.Username).Msg("operator logged in")
	return packets.LoginResponse{
		Token:     token,
		ExpiresAt: a.now().Add(middleware.TokenLifetime).UTC().Format(time.RFC3339),
	}, nil
}

// GET /api/auth/current_profile
func getCurrentProfile(ctx *gin.Context) (any, *api.APIError) {
	name, ok := middleware.GetCurrentAdmin(ctx)
	if !ok {
		return nil, &api.APIError{Code: http.StatusUnauthorized, Message: "unauthorized"}
	}
	return packets.ProfileResponse{Username: name}, nil
}
