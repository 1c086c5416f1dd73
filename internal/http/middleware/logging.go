// README: Request logging middleware.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"chomp/internal/logging"
)

func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Log(logging.Fields{
			Component: "http",
			Status:    strconv.Itoa(c.Writer.Status()),
			Message:   c.Request.Method + " " + c.Request.URL.Path + " " + time.Since(start).String(),
		})
	}
}
