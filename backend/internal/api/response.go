package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sciencetopia/backend/pkg/errors"
)

// APIError is the body of every error response
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope wraps APIError as {"error": {...}}
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func respondError(c *gin.Context, log *zap.Logger, err error) {
	status := errors.HTTPStatus(err)
	code := string(errors.TypeOf(err))
	if status == http.StatusInternalServerError {
		log.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		code = "internal"
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{Message: errors.PublicMessage(err), Code: code},
	})
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: APIError{Message: message, Code: code}})
}

func badRequest(c *gin.Context, err error) {
	abort(c, http.StatusBadRequest, string(errors.ErrorTypeValidation), err.Error())
}

// respondDone reports a boolean outcome; false becomes 404 with message
func respondDone(c *gin.Context, done bool, message string) {
	if !done {
		abort(c, http.StatusNotFound, string(errors.ErrorTypeNotFound), message)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
