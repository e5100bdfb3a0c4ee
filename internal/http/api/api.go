package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ekran/internal/apperr"
)

// APIError is what a handler returns instead of writing an error response
// itself.
type APIError struct {
	Code    int
	Kind    apperr.Kind
	Message string
}

type HandlerFunc func(ctx *gin.Context) (any, *APIError)

// FromError converts a classified error into an APIError with the matching
// status code.
func FromError(err error) *APIError {
	if err == nil {
		return nil
	}
	kind := apperr.KindOf(err)
	return &APIError{Code: apperr.HTTPStatus(kind), Kind: kind, Message: apperr.MessageOf(err)}
}

// BadRequest is the usual answer to a body that fails binding.
func BadRequest(err error) *APIError {
	return &APIError{Code: http.StatusBadRequest, Kind: apperr.InvalidArgument, Message: err.Error()}
}

func ResolveEndpoint(h HandlerFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		result, apiErr := h(ctx)
		if apiErr != nil {
			if apiErr.Code >= http.StatusInternalServerError {
				log.Error().Str("path", ctx.FullPath()).Int("status", apiErr.Code).Str("kind", string(apiErr.Kind)).Msg(apiErr.Message)
			}
			body := gin.H{"error": apiErr.Message}
			if apiErr.Kind != "" {
				body["kind"] = apiErr.Kind
			}
			ctx.JSON(apiErr.Code, body)
			return
		}

		ctx.JSON(http.StatusOK, result)
	}
}
