package middleware

import (
	"github.com/gin-gonic/gin"

	"room_link/pkg/errors"
)

// ErrorHandler turns errors attached via c.Error into a JSON response.
// Handlers never write error status codes themselves; the mapping from
// error kind to status lives in one place.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last()

		statusCode := errors.HTTPStatusFromError(err.Err)
		c.JSON(statusCode, gin.H{
			"error": err.Error(),
		})
	}
}
