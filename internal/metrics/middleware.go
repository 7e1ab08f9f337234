package metrics

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

const unmatchedRoute = "unmatched"

// Middleware records request count, in-flight gauge and latency. The path
// label is the route template (e.g. /users/:uid) so uids do not explode the
// label cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedRoute
		}
		status := fmt.Sprintf("%dxx", c.Writer.Status()/100)
		method := c.Request.Method

		HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		HTTPRequestDurationSeconds.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
	}
}
