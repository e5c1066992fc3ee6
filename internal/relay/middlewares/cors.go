package middlewares

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Device-Id", "X-LedgerSync-Version", "X-Snapshot-Event-Id", "X-Snapshot-Seq", "X-Snapshot-Key-Version", "X-Snapshot-Checksum"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowCredentials: false,
		AllowWebSockets:  true,
	})
}
