package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "aurora/backend/pkg/errors"
)

// statusFor maps an error category onto an HTTP status
func statusFor(err error) int {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict
	case apperrors.ErrorTypeAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondError(c *gin.Context, err error) {
	status, body := s.errorBody(c, err)
	c.JSON(status, body)
}

func (s *Server) abortWithError(c *gin.Context, err error) {
	status, body := s.errorBody(c, err)
	c.AbortWithStatusJSON(status, body)
}

func (s *Server) errorBody(c *gin.Context, err error) (int, gin.H) {
	status := statusFor(err)
	switch status {
	case http.StatusUnauthorized:
		// never say which part of the credentials was wrong
		c.Header("WWW-Authenticate", "Bearer")
		return status, gin.H{"error": "Incorrect username or password"}
	case http.StatusInternalServerError:
		s.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		return status, gin.H{"error": "Internal server error"}
	}

	body := gin.H{"error": err.Error()}
	var v *apperrors.ErrValidation
	if errors.As(err, &v) {
		body["field"] = v.Field
		body["error"] = v.Reason
	}
	return status, body
}
