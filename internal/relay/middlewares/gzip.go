package middlewares

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// encrypted snapshot blobs do not compress, and the websocket must not be wrapped
var excludedPaths = []string{
	"/healthz",
	"/api/v1/events",
	"/api/v1/sync/snapshot",
}

func GZIP() gin.HandlerFunc {
	return gzip.Gzip(
		gzip.BestSpeed,
		gzip.WithExcludedPaths(excludedPaths),
	)
}
