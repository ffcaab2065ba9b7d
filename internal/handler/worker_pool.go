package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// BoundedWorkerPool is an Echo middleware realizing the RPC server's
// bounded worker pool: at most size requests execute an engine operation
// concurrently, mirroring a thread-pool-backed RPC server. Requests beyond
// the pool size queue for a free slot rather than being rejected, matching
// a thread-pool executor's own queuing behavior; a slot wait that outlives
// the request context gives up and returns 503 instead of queuing forever.
func BoundedWorkerPool(size int) echo.MiddlewareFunc {
	if size <= 0 {
		size = 10
	}
	sem := make(chan struct{}, size)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			select {
			case sem <- struct{}{}:
			case <-c.Request().Context().Done():
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "worker pool wait canceled"})
			}
			defer func() { <-sem }()
			return next(c)
		}
	}
}
